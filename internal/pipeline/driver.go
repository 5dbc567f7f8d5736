package pipeline

// driver.go runs one batch: the detector narrows the candidate set, each
// selected file is normalized in ascending sequence order, and the combined
// record list goes to the sink in one upsert pass. A file that fails to read
// or parse is logged, counted, and skipped — it never aborts the batch. The
// checkpoint is persisted exactly once, after the sink accepted the records;
// a sink failure leaves the checkpoint untouched so the next run retries the
// same inputs.

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// DefaultProgressEvery is how many files are processed between progress logs.
const DefaultProgressEvery = 100

// Sink is the storage boundary the driver hands accumulated records to.
// Implementations must be duplicate-safe: the pipeline gives at-least-once
// semantics across interrupted runs.
type Sink interface {
	UpsertBatch(ctx context.Context, records []NormalizedRecord) (int64, error)
}

// BatchResult summarizes one driver run. Records stays populated even when
// the sink failed, so computed work remains available for inspection or
// retry.
type BatchResult struct {
	FilesSeen      int
	FilesSelected  int
	FilesProcessed int
	FilesFailed    int
	Records        []NormalizedRecord
	Inserted       int64
	Duration       time.Duration
}

// Driver iterates a candidate set sequentially and aggregates the results.
type Driver struct {
	normalizer    *Normalizer
	detector      Detector
	sink          Sink // optional; nil skips the storage boundary
	progressEvery int
	log           *slog.Logger
}

// NewDriver wires a batch driver. The sink may be nil for normalize-only
// runs; a nil logger falls back to slog.Default().
func NewDriver(n *Normalizer, d Detector, sink Sink, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{
		normalizer:    n,
		detector:      d,
		sink:          sink,
		progressEvery: DefaultProgressEvery,
		log:           log,
	}
}

// SetProgressEvery overrides the progress-log interval.
func (d *Driver) SetProgressEvery(n int) {
	if n > 0 {
		d.progressEvery = n
	}
}

// Run processes the candidates and returns the accumulated records with
// per-file success and failure counts. The returned error is batch-level:
// a sink write failure or a checkpoint persistence failure. Per-file
// failures only raise the FilesFailed count.
func (d *Driver) Run(ctx context.Context, candidates []FileCandidate) (*BatchResult, error) {
	start := time.Now()
	res := &BatchResult{FilesSeen: len(candidates)}

	selected, err := d.detector.Select(candidates)
	if err != nil {
		return res, fmt.Errorf("select candidates: %w", err)
	}
	res.FilesSelected = len(selected)

	if len(selected) == 0 {
		d.log.Info("no new or modified files to process", "seen", res.FilesSeen)
		// The tracking state still gets refreshed so last_run stays current.
		if err := d.detector.Persist(); err != nil {
			return res, fmt.Errorf("persist checkpoint: %w", err)
		}
		res.Duration = time.Since(start)
		return res, nil
	}

	d.log.Info("processing batch", "files", len(selected))

	for i, c := range selected {
		data, err := os.ReadFile(c.Path)
		if err != nil {
			res.FilesFailed++
			d.log.Error("cannot read file", "file", c.Name, "error", err)
			continue
		}

		records, err := d.normalizer.NormalizeDocument(data, c.Name)
		if err != nil {
			res.FilesFailed++
			d.log.Error("cannot process file", "file", c.Name, "error", err)
			continue
		}

		res.Records = append(res.Records, records...)
		res.FilesProcessed++
		d.detector.Advance(c.Seq)

		if (i+1)%d.progressEvery == 0 {
			d.log.Info("progress", "processed", i+1, "total", len(selected))
		}
	}

	if d.sink != nil && len(res.Records) > 0 {
		inserted, err := d.sink.UpsertBatch(ctx, res.Records)
		if err != nil {
			// Checkpoint deliberately not persisted: the next run must
			// reprocess this range.
			return res, fmt.Errorf("store upsert: %w", err)
		}
		res.Inserted = inserted
	}

	if err := d.detector.Persist(); err != nil {
		return res, fmt.Errorf("persist checkpoint: %w", err)
	}

	res.Duration = time.Since(start)
	d.log.Info("batch complete",
		"processed", res.FilesProcessed,
		"failed", res.FilesFailed,
		"records", len(res.Records),
		"inserted", res.Inserted,
		"duration", res.Duration,
	)
	return res, nil
}
