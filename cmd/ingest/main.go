package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/advocateiq/ingest/internal/config"
	"github.com/advocateiq/ingest/internal/logging"
	"github.com/advocateiq/ingest/internal/pipeline"
	"github.com/advocateiq/ingest/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"input_dir", cfg.Input.Dir,
		"checkpoint_strategy", cfg.Checkpoint.Strategy,
		"numeric_failure_policy", cfg.Pipeline.NumericFailurePolicy,
		"database", cfg.HasDatabase(),
	)

	ctx := context.Background()

	// The storage boundary is optional: without DATABASE_URL the run
	// normalizes and writes JSON artifacts only. An unreachable database
	// degrades the same way, with a warning, rather than failing the batch.
	var st *store.Postgres
	if cfg.HasDatabase() {
		pool := openPool(ctx, cfg, logger)
		if pool != nil {
			defer pool.Close()
			st = store.New(pool, cfg.Pipeline.UpsertChunkSize, logger)
			if err := st.CreateSchema(ctx); err != nil {
				logger.Error("failed to ensure schema", "error", err)
				os.Exit(1)
			}
		}
	}

	detector := buildDetector(ctx, cfg, st, logger)
	normalizer := pipeline.NewNormalizer(
		pipeline.NumericPolicy(cfg.Pipeline.NumericFailurePolicy), logger)

	var sink pipeline.Sink
	if st != nil {
		sink = st
	}
	driver := pipeline.NewDriver(normalizer, detector, sink, logger)
	driver.SetProgressEvery(cfg.Pipeline.ProgressEvery)

	candidates, err := pipeline.ScanDirectory(cfg.Input.Dir, cfg.Input.Prefix)
	if err != nil {
		logger.Error("failed to scan input directory", "dir", cfg.Input.Dir, "error", err)
		os.Exit(1)
	}

	result, err := driver.Run(ctx, candidates)
	if err != nil {
		// Records computed before the failure stay available for retry
		// or inspection; the checkpoint was not advanced past them.
		if len(result.Records) > 0 {
			if werr := pipeline.WriteRecords(cfg.Output.RecordsFile, result.Records); werr == nil {
				logger.Info("partial records saved", "file", cfg.Output.RecordsFile, "records", len(result.Records))
			}
		}
		logger.Error("batch failed", "error", err)
		os.Exit(1)
	}

	if result.FilesSelected == 0 {
		logger.Info("no new data to process or upload")
		return
	}

	if err := pipeline.WriteRecords(cfg.Output.RecordsFile, result.Records); err != nil {
		logger.Error("failed to write records", "error", err)
		os.Exit(1)
	}

	summary := pipeline.Analyze(result.Records)
	if err := pipeline.WriteSummary(cfg.Output.StatsFile, summary); err != nil {
		logger.Error("failed to write statistics", "error", err)
		os.Exit(1)
	}

	if st != nil {
		runID := uuid.New().String()
		if err := st.LogRunStats(ctx, runID, result.FilesProcessed, summary); err != nil {
			logger.Warn("failed to log run stats", "run_id", runID, "error", err)
		}
	}

	logger.Info("run complete",
		"files_seen", result.FilesSeen,
		"files_processed", result.FilesProcessed,
		"files_failed", result.FilesFailed,
		"records", len(result.Records),
		"inserted", result.Inserted,
		"duration", result.Duration,
	)
}

// openPool connects the pgx pool, returning nil when the database is
// unreachable so the run can proceed without a storage boundary.
func openPool(ctx context.Context, cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Warn("database unavailable, continuing without store", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Warn("database unreachable, continuing without store", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// buildDetector wires the configured change-detection strategy. When the
// sequence-store strategy has no reachable store, the run degrades to a
// first run (process everything) with a logged warning.
func buildDetector(ctx context.Context, cfg *config.Config, st *store.Postgres, logger *slog.Logger) pipeline.Detector {
	switch cfg.Checkpoint.Strategy {
	case config.StrategySequence:
		return pipeline.NewSequenceTracker(cfg.Checkpoint.WatermarkFile, logger)
	case config.StrategySequenceStore:
		if st == nil {
			logger.Warn("store unavailable for watermark, starting from zero")
			return pipeline.NewSequenceTracker("", logger)
		}
		return pipeline.NewStoreSequenceTracker(ctx, st, logger)
	default:
		return pipeline.NewFingerprintTracker(cfg.Checkpoint.TrackingFile, logger)
	}
}
