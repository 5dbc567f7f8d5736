package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable that points at an optional
// YAML configuration file.
const ConfigFileEnv = "INGEST_CONFIG"

// Load reads configuration in three layers: an optional YAML file named by
// INGEST_CONFIG, then environment variables on top, then defaults for
// anything still unset. The result is validated before use.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
	}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadFile overlays YAML settings from path onto cfg.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadStruct recursively populates struct fields from environment variables.
// A default applies only when the field is still zero, so YAML-provided
// values survive the overlay.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default only when nothing else set the field
		if value == "" {
			if !fieldVal.IsZero() {
				continue
			}
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Input validation
	if c.Input.Dir == "" {
		errs = append(errs, "INPUT_DIR must not be empty")
	}
	if c.Input.Prefix == "" {
		errs = append(errs, "INPUT_PREFIX must not be empty")
	}

	// Database validation only applies when a store is configured
	if c.HasDatabase() {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}

	// Pipeline validation
	switch c.Pipeline.NumericFailurePolicy {
	case "null", "zero":
	default:
		errs = append(errs, fmt.Sprintf("NUMERIC_FAILURE_POLICY (%q) must be one of: null, zero",
			c.Pipeline.NumericFailurePolicy))
	}
	if c.Pipeline.UpsertChunkSize <= 0 {
		errs = append(errs, "UPSERT_CHUNK_SIZE must be positive")
	}
	if c.Pipeline.ProgressEvery <= 0 {
		errs = append(errs, "PROGRESS_EVERY must be positive")
	}

	// Checkpoint validation
	switch c.Checkpoint.Strategy {
	case StrategyFingerprint, StrategySequence, StrategySequenceStore:
	default:
		errs = append(errs, fmt.Sprintf("CHECKPOINT_STRATEGY (%q) must be one of: %s, %s, %s",
			c.Checkpoint.Strategy, StrategyFingerprint, StrategySequence, StrategySequenceStore))
	}
	if c.Checkpoint.Strategy == StrategyFingerprint && c.Checkpoint.TrackingFile == "" {
		errs = append(errs, "CHECKPOINT_TRACKING_FILE must be set for the fingerprint strategy")
	}
	if c.Checkpoint.Strategy == StrategySequence && c.Checkpoint.WatermarkFile == "" {
		errs = append(errs, "CHECKPOINT_WATERMARK_FILE must be set for the sequence strategy")
	}
	if c.Checkpoint.Strategy == StrategySequenceStore && !c.HasDatabase() {
		errs = append(errs, "CHECKPOINT_STRATEGY sequence-store requires DATABASE_URL")
	}

	// Output validation
	if c.Output.RecordsFile == "" {
		errs = append(errs, "OUTPUT_RECORDS_FILE must not be empty")
	}
	if c.Output.StatsFile == "" {
		errs = append(errs, "OUTPUT_STATS_FILE must not be empty")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Input: {Dir: %q, Prefix: %q}, ", c.Input.Dir, c.Input.Prefix))
	url := "[NONE]"
	if c.HasDatabase() {
		url = "[MASKED]"
	}
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		url, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Pipeline: {NumericFailurePolicy: %q, UpsertChunkSize: %d}, ",
		c.Pipeline.NumericFailurePolicy, c.Pipeline.UpsertChunkSize))
	b.WriteString(fmt.Sprintf("Checkpoint: {Strategy: %q}, ", c.Checkpoint.Strategy))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
