// Package config defines service configuration structures and loading hooks.
package config

import "time"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// DBDriver selects the audit store: sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBPath is the SQLite history file.
	DBPath string `koanf:"db_path"`

	// DBDSN is the PostgreSQL connection string.
	DBDSN string `koanf:"db_dsn"`

	// ModelDir is the model bundle directory holding manifest.yaml.
	ModelDir string `koanf:"model_dir"`

	// ONNXLibraryPath pins the onnxruntime shared library.
	ONNXLibraryPath string `koanf:"onnx_library_path"`

	// HistoryDefaultLimit is used when a history request omits limit.
	HistoryDefaultLimit int `koanf:"history_default_limit"`

	// MaxHistoryLimit caps GET /v1/predictions?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// ValidateRanges rejects requests outside the documented numeric ranges.
	ValidateRanges bool `koanf:"validate_ranges"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":8080",
		ShutdownTimeout:     10 * time.Second,
		DBDriver:            "sqlite",
		DBPath:              "history.db",
		ModelDir:            "models/reference",
		HistoryDefaultLimit: 50,
		MaxHistoryLimit:     1000,
		ValidateRanges:      true,
	}
}
