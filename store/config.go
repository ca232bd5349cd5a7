package store

import "log/slog"

// Config holds configuration for the Store.
type Config struct {
	// Logger receives debug records for committed writes and warnings for
	// partially applied owned-field operations.
	// Default: slog.Default()
	Logger *slog.Logger

	// LogValues adds raw attribute values to debug records.
	// Default: false
	LogValues bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Logger: slog.Default(),
	}
}

// validate fills in defaults.
func (c *Config) validate() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
