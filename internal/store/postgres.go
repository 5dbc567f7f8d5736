// Package store implements the Postgres storage boundary for normalized
// advocacy records. Writes are idempotent: the natural key
// (user_id, program_id, task_id, post_url) carries a NULLS NOT DISTINCT
// unique constraint and inserts conflict-ignore on it, so the pipeline's
// at-least-once reprocessing never duplicates rows.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/advocateiq/ingest/internal/pipeline"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// DefaultChunkSize is the number of records per upsert round trip.
const DefaultChunkSize = 1000

const createProcessedData = `
CREATE TABLE IF NOT EXISTS processed_data (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	name TEXT,
	email TEXT,
	email_valid BOOLEAN NOT NULL DEFAULT FALSE,
	instagram_handle TEXT,
	tiktok_handle TEXT,
	joined_at TIMESTAMPTZ,
	program_id TEXT,
	brand TEXT,
	total_sales_attributed NUMERIC(12,2),
	task_id TEXT,
	platform TEXT,
	post_url TEXT,
	url_valid BOOLEAN NOT NULL DEFAULT FALSE,
	likes DOUBLE PRECISION,
	comments DOUBLE PRECISION,
	shares DOUBLE PRECISION,
	reach DOUBLE PRECISION,
	source_file TEXT NOT NULL,
	issues_found INTEGER NOT NULL DEFAULT 0,
	issues_list JSONB NOT NULL DEFAULT '[]'::jsonb,
	processed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE NULLS NOT DISTINCT (user_id, program_id, task_id, post_url)
);`

const createProcessingLog = `
CREATE TABLE IF NOT EXISTS processing_log (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	total_records INTEGER NOT NULL,
	valid_emails_percentage DOUBLE PRECISION NOT NULL,
	valid_urls_percentage DOUBLE PRECISION NOT NULL,
	missing_user_ids_percentage DOUBLE PRECISION NOT NULL,
	files_processed INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

var createIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_processed_data_user_id ON processed_data(user_id);",
	"CREATE INDEX IF NOT EXISTS idx_processed_data_email ON processed_data(email);",
	"CREATE INDEX IF NOT EXISTS idx_processed_data_platform ON processed_data(platform);",
	"CREATE INDEX IF NOT EXISTS idx_processed_data_task_id ON processed_data(task_id);",
	"CREATE INDEX IF NOT EXISTS idx_processed_data_program_id ON processed_data(program_id);",
	"CREATE INDEX IF NOT EXISTS idx_processed_data_created_at ON processed_data(created_at);",
}

const upsertRecord = `
INSERT INTO processed_data
	(user_id, name, email, email_valid, instagram_handle, tiktok_handle,
	 joined_at, program_id, brand, total_sales_attributed, task_id, platform,
	 post_url, url_valid, likes, comments, shares, reach, source_file,
	 issues_found, issues_list)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
ON CONFLICT (user_id, program_id, task_id, post_url) DO NOTHING`

// Postgres is the single concrete storage implementation.
type Postgres struct {
	db        DBTX
	chunkSize int
	log       *slog.Logger
}

// New wraps a pgx connection source. A non-positive chunkSize falls back to
// DefaultChunkSize; a nil logger falls back to slog.Default().
func New(db DBTX, chunkSize int, log *slog.Logger) *Postgres {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Postgres{db: db, chunkSize: chunkSize, log: log}
}

// CreateSchema creates the processed_data and processing_log tables and
// their indexes if they do not exist.
func (p *Postgres) CreateSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createProcessedData); err != nil {
		return fmt.Errorf("create processed_data: %w", err)
	}
	if _, err := p.db.Exec(ctx, createProcessingLog); err != nil {
		return fmt.Errorf("create processing_log: %w", err)
	}
	for _, stmt := range createIndexes {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	p.log.Info("schema ensured")
	return nil
}

// TableExists reports whether a table is present in the current schema.
func (p *Postgres) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return exists, nil
}

// UpsertBatch inserts records in chunks, ignoring rows that already exist
// under the natural key. Returns the number of rows actually inserted. Chunk
// boundaries are independent round trips; a failure mid-batch may leave a
// committed prefix, which the conflict-ignore key makes safe to retry.
func (p *Postgres) UpsertBatch(ctx context.Context, records []pipeline.NormalizedRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	var total int64
	for start := 0; start < len(records); start += p.chunkSize {
		end := start + p.chunkSize
		if end > len(records) {
			end = len(records)
		}

		b := &pgx.Batch{}
		for _, rec := range records[start:end] {
			issues, err := json.Marshal(rec.IssuesList)
			if err != nil {
				return total, fmt.Errorf("encode issues for %s: %w", rec.SourceFile, err)
			}
			b.Queue(upsertRecord,
				rec.UserID, rec.Name, rec.Email, rec.EmailValid,
				rec.InstagramHandle, rec.TiktokHandle, rec.JoinedAt,
				rec.ProgramID, rec.Brand, rec.TotalSalesAttributed,
				rec.TaskID, rec.Platform, rec.PostURL, rec.URLValid,
				rec.Likes, rec.Comments, rec.Shares, rec.Reach,
				rec.SourceFile, rec.IssuesFound, string(issues),
			)
		}

		br := p.db.SendBatch(ctx, b)
		for i := start; i < end; i++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, fmt.Errorf("upsert chunk at %d: %w", start, err)
			}
			total += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return total, fmt.Errorf("close batch at %d: %w", start, err)
		}
	}

	p.log.Info("records upserted", "inserted", total, "submitted", len(records))
	return total, nil
}

// MaxProcessedID returns the highest user_id assigned so far. The second
// result is false when the table holds no rows.
func (p *Postgres) MaxProcessedID(ctx context.Context) (int64, bool, error) {
	var max *int64
	err := p.db.QueryRow(ctx, "SELECT MAX(user_id) FROM processed_data").Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("query max user_id: %w", err)
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

// LogRunStats appends one processing_log row summarizing a completed run.
func (p *Postgres) LogRunStats(ctx context.Context, runID string, filesProcessed int, s pipeline.Summary) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO processing_log
			(run_id, total_records, valid_emails_percentage,
			 valid_urls_percentage, missing_user_ids_percentage, files_processed)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		runID, s.TotalRecords, s.ValidEmailsPercentage,
		s.ValidURLsPercentage, s.MissingUserIDsPercentage, filesProcessed,
	)
	if err != nil {
		return fmt.Errorf("log run stats: %w", err)
	}
	return nil
}
