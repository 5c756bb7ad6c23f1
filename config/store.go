package config

import "fmt"

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is either "sqlite" or "memory".
	Backend string `json:"backend"`
	// Path is the SQLite database file, ignored by the memory backend.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Path == "" {
		c.Path = "wastemaster.db"
	}
}

// Validate checks mandatory fields.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "sqlite":
		if c.Path == "" {
			return fmt.Errorf("store path is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store backend %s", c.Backend)
	}
	return nil
}
