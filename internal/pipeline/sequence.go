package pipeline

// sequence.go implements the watermark change-detection strategy: a single
// "last processed sequence number" selects every candidate whose filename
// number exceeds it. The watermark comes from a counter file or from the
// store's highest assigned user_id, and advances only past files that were
// successfully processed, so an interrupted run simply reprocesses the tail.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// noWatermark means no files were processed yet: everything is selected.
const noWatermark = -1

// WatermarkSource exposes the store's highest assigned identifier; the
// second result is false when the store holds no rows yet.
type WatermarkSource interface {
	MaxProcessedID(ctx context.Context) (int64, bool, error)
}

// SequenceTracker is the watermark Detector strategy.
type SequenceTracker struct {
	path      string // counter file; empty for store-derived watermarks
	log       *slog.Logger
	watermark int64
	highest   int64
	advanced  bool
}

// NewSequenceTracker loads the watermark from a counter file. A missing or
// unreadable file is a first run.
func NewSequenceTracker(path string, log *slog.Logger) *SequenceTracker {
	if log == nil {
		log = slog.Default()
	}
	t := &SequenceTracker{path: path, log: log, watermark: noWatermark, highest: noWatermark}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("watermark file unreadable, starting from zero", "path", path, "error", err)
		}
		return t
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		log.Warn("watermark file corrupt, starting from zero", "path", path, "error", err)
		return t
	}
	t.watermark = n
	t.highest = n
	return t
}

// NewStoreSequenceTracker derives the watermark from the store's highest
// assigned user_id (user_id = sequence + 1). An unreachable store degrades to
// a first run with a logged warning rather than failing the batch. The
// watermark lives in the store, so Persist is a no-op for this variant.
func NewStoreSequenceTracker(ctx context.Context, src WatermarkSource, log *slog.Logger) *SequenceTracker {
	if log == nil {
		log = slog.Default()
	}
	t := &SequenceTracker{log: log, watermark: noWatermark, highest: noWatermark}

	maxID, found, err := src.MaxProcessedID(ctx)
	if err != nil {
		log.Warn("cannot query max processed id, starting from zero", "error", err)
		return t
	}
	if found {
		t.watermark = maxID - 1
		t.highest = t.watermark
	}
	return t
}

// Select returns the candidates whose sequence number exceeds the watermark,
// preserving the ascending order of the input.
func (t *SequenceTracker) Select(candidates []FileCandidate) ([]FileCandidate, error) {
	var selected []FileCandidate
	for _, c := range candidates {
		if c.Seq > t.watermark {
			selected = append(selected, c)
		}
	}
	t.log.Info("watermark selection", "watermark", t.watermark, "selected", len(selected))
	return selected, nil
}

// Advance records a successfully processed sequence number. The watermark
// only ever moves forward.
func (t *SequenceTracker) Advance(seq int64) {
	if seq > t.highest {
		t.highest = seq
		t.advanced = true
	}
}

// Persist writes the advanced watermark to the counter file. Nothing is
// written when no file advanced the watermark or when the watermark is
// store-derived.
func (t *SequenceTracker) Persist() error {
	if !t.advanced || t.path == "" {
		return nil
	}
	if err := os.WriteFile(t.path, []byte(strconv.FormatInt(t.highest, 10)), 0644); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	t.watermark = t.highest
	t.advanced = false
	return nil
}

// Watermark exposes the current watermark for reporting.
func (t *SequenceTracker) Watermark() int64 {
	return t.watermark
}
