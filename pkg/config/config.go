// Package config provides the configuration surface for the bridge: the
// reader settings validated before any engine call, and YAML loading with
// environment-variable substitution.
package config

import (
	"fmt"
)

// ReaderConfig configures one open reader.
type ReaderConfig struct {
	// Path is the source file to open.
	Path string `yaml:"path" json:"path"`
	// Engine selects the registered decoding engine.
	Engine string `yaml:"engine" json:"engine"`
	// BatchSize is the requested rows per batch; 0 requests the engine
	// default. Negative values are rejected before the engine is touched.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level    string `yaml:"level" json:"level"`
	Encoding string `yaml:"encoding" json:"encoding"` // json or console
}

// NewReaderConfig returns a config with defaults for the given path.
func NewReaderConfig(path string) *ReaderConfig {
	return &ReaderConfig{
		Path:   path,
		Engine: "arrowfile",
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate checks the configuration before any engine call.
func (c *ReaderConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.Engine == "" {
		return fmt.Errorf("engine is required")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be non-negative, got %d", c.BatchSize)
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("log encoding must be json or console, got %q", c.Log.Encoding)
	}
	return nil
}
