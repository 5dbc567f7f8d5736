// Package config provides centralized configuration management for the
// ingest pipeline. Settings load from environment variables with sensible
// defaults, optionally layered over a YAML config file, and are validated on
// startup to fail fast on misconfiguration.
package config

import "time"

// Checkpoint strategy names.
const (
	StrategyFingerprint   = "fingerprint"
	StrategySequence      = "sequence"
	StrategySequenceStore = "sequence-store"
)

// Config holds all pipeline configuration.
// All settings can be configured via environment variables; the YAML keys
// apply when an INGEST_CONFIG file is provided.
type Config struct {
	Input      InputConfig      `yaml:"input"`
	Database   DatabaseConfig   `yaml:"database"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InputConfig describes where candidate JSON documents live.
type InputConfig struct {
	// Dir is the directory holding the input documents (default: mixed)
	Dir string `yaml:"dir" env:"INPUT_DIR" default:"mixed"`

	// Prefix is the filename prefix before the sequence number:
	// <prefix>_<N>.json (default: user)
	Prefix string `yaml:"prefix" env:"INPUT_PREFIX" default:"user"`
}

// DatabaseConfig holds database connection settings. URL is optional: when
// empty the pipeline runs normalize-only and writes JSON artifacts without a
// storage boundary.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and HEROKU_DATABASE_URL for compatibility.
	URL string `yaml:"url" env:"DATABASE_URL" envAlt:"HEROKU_DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `yaml:"max_conns" env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `yaml:"min_conns" env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// PipelineConfig holds normalization and batching settings.
type PipelineConfig struct {
	// NumericFailurePolicy is what an unparseable numeric field becomes:
	// "null" or "zero" (default: null). Applied uniformly to all engagement
	// fields and the sales field.
	NumericFailurePolicy string `yaml:"numeric_failure_policy" env:"NUMERIC_FAILURE_POLICY" default:"null"`

	// UpsertChunkSize is records per database round trip (default: 1000)
	UpsertChunkSize int `yaml:"upsert_chunk_size" env:"UPSERT_CHUNK_SIZE" default:"1000"`

	// ProgressEvery is how many files between progress log lines (default: 100)
	ProgressEvery int `yaml:"progress_every" env:"PROGRESS_EVERY" default:"100"`
}

// CheckpointConfig selects and parameterizes the change-detection strategy.
type CheckpointConfig struct {
	// Strategy is one of: fingerprint, sequence, sequence-store
	// (default: fingerprint)
	Strategy string `yaml:"strategy" env:"CHECKPOINT_STRATEGY" default:"fingerprint"`

	// TrackingFile is the fingerprint state path (default: file_tracking.json)
	TrackingFile string `yaml:"tracking_file" env:"CHECKPOINT_TRACKING_FILE" default:"file_tracking.json"`

	// WatermarkFile is the sequence counter path (default: last_processed_file.txt)
	WatermarkFile string `yaml:"watermark_file" env:"CHECKPOINT_WATERMARK_FILE" default:"last_processed_file.txt"`
}

// OutputConfig names the JSON artifacts a run writes.
type OutputConfig struct {
	// RecordsFile is the flat record array output (default: processed_data.json)
	RecordsFile string `yaml:"records_file" env:"OUTPUT_RECORDS_FILE" default:"processed_data.json"`

	// StatsFile is the aggregate statistics output (default: data_statistics.json)
	StatsFile string `yaml:"stats_file" env:"OUTPUT_STATS_FILE" default:"data_statistics.json"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// HasDatabase reports whether a storage boundary is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}
