package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCandidate(t *testing.T, dir, name, content string) FileCandidate {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	seq, _ := SequenceFromFilename(name)
	return FileCandidate{Name: name, Path: path, Seq: seq}
}

// ----------------------------------------------------------------------------
// Fingerprint Tracker Tests
// ----------------------------------------------------------------------------

func TestFingerprintTracker_FirstRunSelectsAll(t *testing.T) {
	dir := t.TempDir()
	candidates := []FileCandidate{
		writeCandidate(t, dir, "user_0.json", `{"user_id": 1}`),
		writeCandidate(t, dir, "user_1.json", `{"user_id": 2}`),
	}

	tracker := NewFingerprintTracker(filepath.Join(dir, "tracking.json"), testLogger())
	selected, err := tracker.Select(candidates)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 2 {
		t.Errorf("first run selected %d files, want all 2", len(selected))
	}
}

func TestFingerprintTracker_UnchangedFilesSkipped(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "tracking.json")
	candidates := []FileCandidate{
		writeCandidate(t, dir, "user_0.json", `{"user_id": 1}`),
		writeCandidate(t, dir, "user_1.json", `{"user_id": 2}`),
	}

	tracker := NewFingerprintTracker(statePath, testLogger())
	if _, err := tracker.Select(candidates); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := tracker.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	// A fresh tracker loading the persisted state sees nothing new.
	tracker = NewFingerprintTracker(statePath, testLogger())
	selected, err := tracker.Select(candidates)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 0 {
		t.Errorf("second run selected %d files, want 0", len(selected))
	}
}

func TestFingerprintTracker_ModifiedFileReselected(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "tracking.json")
	candidates := []FileCandidate{
		writeCandidate(t, dir, "user_0.json", `{"user_id": 1}`),
		writeCandidate(t, dir, "user_1.json", `{"user_id": 2}`),
	}

	tracker := NewFingerprintTracker(statePath, testLogger())
	if _, err := tracker.Select(candidates); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := tracker.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	writeCandidate(t, dir, "user_1.json", `{"user_id": 2, "name": "changed"}`)

	tracker = NewFingerprintTracker(statePath, testLogger())
	selected, err := tracker.Select(candidates)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 1 || selected[0].Name != "user_1.json" {
		t.Errorf("selected = %v, want only user_1.json", selected)
	}
}

func TestFingerprintTracker_CorruptStateStartsFresh(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "tracking.json")
	if err := os.WriteFile(statePath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt state: %v", err)
	}
	candidates := []FileCandidate{
		writeCandidate(t, dir, "user_0.json", `{"user_id": 1}`),
	}

	tracker := NewFingerprintTracker(statePath, testLogger())
	selected, err := tracker.Select(candidates)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 1 {
		t.Errorf("corrupt state selected %d files, want all 1", len(selected))
	}
}

func TestFingerprintTracker_PersistStampsRun(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "tracking.json")
	candidates := []FileCandidate{
		writeCandidate(t, dir, "user_0.json", `{"user_id": 1}`),
	}

	tracker := NewFingerprintTracker(statePath, testLogger())
	if _, err := tracker.Select(candidates); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if err := tracker.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		t.Fatalf("read persisted state: %v", err)
	}
	var state TrackingState
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatalf("persisted state unparseable: %v", err)
	}
	if state.LastRun == nil {
		t.Error("persisted state missing last_run")
	}
	if state.TotalFiles != 1 {
		t.Errorf("TotalFiles = %d, want 1", state.TotalFiles)
	}
	entry, ok := state.FilesProcessed["user_0.json"]
	if !ok {
		t.Fatal("persisted state missing user_0.json entry")
	}
	if entry.Hash == "" || entry.Size == 0 {
		t.Errorf("entry = %+v, want hash and size recorded", entry)
	}
}

// ----------------------------------------------------------------------------
// Sequence Tracker Tests
// ----------------------------------------------------------------------------

func TestSequenceTracker_SelectAboveWatermark(t *testing.T) {
	dir := t.TempDir()
	watermarkPath := filepath.Join(dir, "watermark.txt")
	if err := os.WriteFile(watermarkPath, []byte("3\n"), 0644); err != nil {
		t.Fatalf("write watermark: %v", err)
	}

	candidates := []FileCandidate{
		{Name: "user_2.json", Seq: 2},
		{Name: "user_3.json", Seq: 3},
		{Name: "user_4.json", Seq: 4},
		{Name: "user_10.json", Seq: 10},
	}

	tracker := NewSequenceTracker(watermarkPath, testLogger())
	selected, err := tracker.Select(candidates)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 2 || selected[0].Seq != 4 || selected[1].Seq != 10 {
		t.Errorf("selected = %v, want sequences 4 and 10", selected)
	}
}

func TestSequenceTracker_FirstRunSelectsAll(t *testing.T) {
	tracker := NewSequenceTracker(filepath.Join(t.TempDir(), "missing.txt"), testLogger())
	candidates := []FileCandidate{
		{Name: "user_0.json", Seq: 0},
		{Name: "user_1.json", Seq: 1},
	}

	selected, err := tracker.Select(candidates)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 2 {
		t.Errorf("first run selected %d files, want all 2", len(selected))
	}
}

func TestSequenceTracker_AdvanceAndPersist(t *testing.T) {
	dir := t.TempDir()
	watermarkPath := filepath.Join(dir, "watermark.txt")

	tracker := NewSequenceTracker(watermarkPath, testLogger())
	tracker.Advance(7)
	tracker.Advance(12)
	tracker.Advance(9) // out of order, must not regress
	if err := tracker.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	reloaded := NewSequenceTracker(watermarkPath, testLogger())
	if reloaded.Watermark() != 12 {
		t.Errorf("Watermark() = %d, want 12", reloaded.Watermark())
	}

	selected, err := reloaded.Select([]FileCandidate{{Name: "user_12.json", Seq: 12}, {Name: "user_13.json", Seq: 13}})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(selected) != 1 || selected[0].Seq != 13 {
		t.Errorf("selected = %v, want only sequence 13", selected)
	}
}

func TestSequenceTracker_PersistWithoutAdvanceWritesNothing(t *testing.T) {
	dir := t.TempDir()
	watermarkPath := filepath.Join(dir, "watermark.txt")

	tracker := NewSequenceTracker(watermarkPath, testLogger())
	if err := tracker.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if _, err := os.Stat(watermarkPath); !os.IsNotExist(err) {
		t.Error("watermark file written despite no processed files")
	}
}

// ----------------------------------------------------------------------------
// Store Watermark Tests
// ----------------------------------------------------------------------------

type fakeWatermarkSource struct {
	maxID int64
	found bool
	err   error
}

func (f *fakeWatermarkSource) MaxProcessedID(context.Context) (int64, bool, error) {
	return f.maxID, f.found, f.err
}

func TestStoreSequenceTracker(t *testing.T) {
	tests := []struct {
		name    string
		source  *fakeWatermarkSource
		want    int64
		wantLen int
	}{
		// user_id = sequence + 1, so max id 5 means sequence 4 was processed.
		{"populated store", &fakeWatermarkSource{maxID: 5, found: true}, 4, 2},
		{"empty store", &fakeWatermarkSource{found: false}, -1, 4},
		{"unreachable store", &fakeWatermarkSource{err: errors.New("connection refused")}, -1, 4},
	}

	candidates := []FileCandidate{
		{Name: "user_3.json", Seq: 3},
		{Name: "user_4.json", Seq: 4},
		{Name: "user_5.json", Seq: 5},
		{Name: "user_6.json", Seq: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewStoreSequenceTracker(context.Background(), tt.source, testLogger())
			if tracker.Watermark() != tt.want {
				t.Errorf("Watermark() = %d, want %d", tracker.Watermark(), tt.want)
			}
			selected, err := tracker.Select(candidates)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if len(selected) != tt.wantLen {
				t.Errorf("selected %d files, want %d", len(selected), tt.wantLen)
			}
		})
	}
}

func TestStoreSequenceTracker_PersistIsNoOp(t *testing.T) {
	tracker := NewStoreSequenceTracker(context.Background(), &fakeWatermarkSource{maxID: 5, found: true}, testLogger())
	tracker.Advance(9)
	if err := tracker.Persist(); err != nil {
		t.Errorf("Persist() error = %v, want nil for store-derived watermark", err)
	}
}
