package config

import "owlreasoner/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Format     string          `yaml:"format"`     // json, console
	DebugMode  bool            `yaml:"debug_mode"` // forces debug level
	Categories map[string]bool `yaml:"categories"` // per-category toggles
}

// Options converts the config section into logging options.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		DebugMode:  c.DebugMode,
		Categories: c.Categories,
	}
}
