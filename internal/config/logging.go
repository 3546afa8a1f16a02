package config

import (
	"tasknerd/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, console
	File       string          `yaml:"file" json:"file,omitempty"`             // optional extra output
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // Per-category toggles
}

// Options converts the section into logger options.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
	}
}

// Validate checks the level string.
func (c LoggingConfig) Validate() error {
	_, err := logging.ParseLevel(c.Level)
	return err
}
