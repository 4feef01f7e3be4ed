package cache

import "time"

// Config holds the settings shared by every wrapped call of a Cacher.
type Config struct {
	// TTL applies when Options.TTL is zero.
	TTL time.Duration

	// MaxKeyLength bounds derived keys. Longer keys keep their scope and
	// method prefix and replace the argument part with its xxhash digest.
	// Zero disables the bound.
	MaxKeyLength int
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:          60 * time.Second,
		MaxKeyLength: 250,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.MaxKeyLength < 0 {
		return &ConfigError{Field: "MaxKeyLength", Message: "must be non-negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
