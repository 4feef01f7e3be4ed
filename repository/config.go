package repository

// Config holds the fallbacks Base applies when a request leaves them unset.
type Config struct {
	// DefaultLimit is the page size used when a request's Limit is 0.
	DefaultLimit int

	// MaxLimit caps request limits. Zero disables the cap.
	MaxLimit int

	// DefaultSort orders offset and search pagination when no sort is given.
	DefaultSort Sort

	// CursorSort orders cursor pagination when no sort is given. Its primary
	// field must be IDField.
	CursorSort Sort

	// IDField names the identifier field used for cursor bounds.
	IDField string
}

// DefaultConfig returns page size 10, newest first for offset pages and
// ascending ids for cursors.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 10,
		DefaultSort:  Sort{Descending("created_at")},
		CursorSort:   Sort{Ascending("id")},
		IDField:      "id",
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.DefaultLimit <= 0 {
		return &ConfigError{Field: "DefaultLimit", Message: "must be greater than 0"}
	}
	if c.MaxLimit < 0 {
		return &ConfigError{Field: "MaxLimit", Message: "must be non-negative"}
	}
	if c.MaxLimit > 0 && c.DefaultLimit > c.MaxLimit {
		return &ConfigError{Field: "DefaultLimit", Message: "must not exceed MaxLimit"}
	}
	if c.IDField == "" {
		return &ConfigError{Field: "IDField", Message: "cannot be empty"}
	}
	if err := c.DefaultSort.Validate(); err != nil {
		return &ConfigError{Field: "DefaultSort", Message: err.Error()}
	}
	if err := c.CursorSort.Validate(); err != nil {
		return &ConfigError{Field: "CursorSort", Message: err.Error()}
	}
	return nil
}
