package config

import "fmt"

// PassLogConfig defines settings for pass log storage and rotation.
type PassLogConfig struct {
	// Backend selects the log store type: "jsonl", "jsonl_rotating" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *PassLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "passes.log"
	}
}

// Validate checks mandatory fields.
func (c PassLogConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "jsonl_rotating", "sqlite":
	default:
		return fmt.Errorf("unknown pass log backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("pass log path is required")
	}
	return nil
}
