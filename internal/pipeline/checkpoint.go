package pipeline

// checkpoint.go implements the fingerprint change-detection strategy: a JSON
// tracking file maps every input filename to its last-known content hash,
// byte size, and processing timestamp. A candidate whose hash or size differs
// from the stored entry (or which has no entry) is selected for processing.
//
// The tracker refreshes its in-memory entry for every candidate it sees, even
// unchanged ones, so the next run's diff stays accurate — but the state only
// reaches disk through Persist, which the batch driver calls once after the
// batch outcome is known. A crash or storage failure therefore never advances
// the checkpoint past work that was not durably stored.

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// FileState is the persisted fingerprint of one processed input file.
type FileState struct {
	Size        int64     `json:"size"`
	MTime       time.Time `json:"mtime"`
	Hash        string    `json:"hash"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TrackingState is the full persisted change-tracking document.
type TrackingState struct {
	LastRun        *time.Time            `json:"last_run"`
	FilesProcessed map[string]*FileState `json:"files_processed"`
	TotalFiles     int                   `json:"total_files"`
}

// Detector decides which candidate inputs a batch run must process, and owns
// the durable checkpoint state. Advance is called once per successfully
// processed file; Persist exactly once, after the batch's records are durably
// stored (or when nothing was selected).
type Detector interface {
	Select(candidates []FileCandidate) ([]FileCandidate, error)
	Advance(seq int64)
	Persist() error
}

// FingerprintTracker is the content-hash Detector strategy.
type FingerprintTracker struct {
	path  string
	log   *slog.Logger
	state TrackingState
}

// NewFingerprintTracker loads tracking state from path. A missing or corrupt
// state file is treated as a first run: everything gets selected.
func NewFingerprintTracker(path string, log *slog.Logger) *FingerprintTracker {
	if log == nil {
		log = slog.Default()
	}
	t := &FingerprintTracker{
		path: path,
		log:  log,
		state: TrackingState{
			FilesProcessed: make(map[string]*FileState),
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("tracking state unreadable, starting fresh", "path", path, "error", err)
		}
		return t
	}
	var state TrackingState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn("tracking state corrupt, starting fresh", "path", path, "error", err)
		return t
	}
	if state.FilesProcessed == nil {
		state.FilesProcessed = make(map[string]*FileState)
	}
	t.state = state
	return t
}

// Select classifies each candidate as new, modified, or unchanged against the
// stored fingerprints and returns the new and modified subset. Every readable
// candidate's stored entry is refreshed regardless of classification.
func (t *FingerprintTracker) Select(candidates []FileCandidate) ([]FileCandidate, error) {
	var selected []FileCandidate

	for _, c := range candidates {
		data, err := os.ReadFile(c.Path)
		if err != nil {
			t.log.Error("cannot fingerprint file, skipping", "file", c.Name, "error", err)
			continue
		}
		sum := md5.Sum(data)
		hash := hex.EncodeToString(sum[:])
		size := int64(len(data))

		var mtime time.Time
		if info, err := os.Stat(c.Path); err == nil {
			mtime = info.ModTime()
		}

		prev, seen := t.state.FilesProcessed[c.Name]
		switch {
		case !seen:
			t.log.Info("new file detected", "file", c.Name)
			selected = append(selected, c)
		case prev.Hash != hash || prev.Size != size:
			t.log.Info("modified file detected", "file", c.Name)
			selected = append(selected, c)
		}

		t.state.FilesProcessed[c.Name] = &FileState{
			Size:        size,
			MTime:       mtime,
			Hash:        hash,
			ProcessedAt: time.Now().UTC(),
		}
	}

	t.state.TotalFiles = len(candidates)
	return selected, nil
}

// Advance is a no-op: fingerprints carry no ordering.
func (t *FingerprintTracker) Advance(int64) {}

// Persist writes the refreshed tracking state, stamping the run time. It is
// called even when nothing changed so last_run stays current.
func (t *FingerprintTracker) Persist() error {
	now := time.Now().UTC()
	t.state.LastRun = &now

	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tracking state: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0644); err != nil {
		return fmt.Errorf("write tracking state: %w", err)
	}
	return nil
}

// State exposes the current in-memory tracking state for reporting.
func (t *FingerprintTracker) State() TrackingState {
	return t.state
}
