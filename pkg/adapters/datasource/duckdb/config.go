package duckdb

import (
	"fmt"
	"net/url"
)

// Config contains DuckDB-specific connection options.
type Config struct {
	// Path to the database file. Empty opens a private in-memory database.
	Path     string
	ReadOnly bool
	// Threads caps DuckDB worker threads; 0 keeps the engine default.
	Threads int
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}

	if path, ok := config["path"].(string); ok {
		cfg.Path = path
	}

	switch ro := config["read_only"].(type) {
	case bool:
		cfg.ReadOnly = ro
	case string:
		cfg.ReadOnly = ro == "true"
	}

	if threads, ok := config["threads"].(float64); ok { // JSON numbers are float64
		cfg.Threads = int(threads)
	} else if threads, ok := config["threads"].(int); ok {
		cfg.Threads = threads
	}
	if cfg.Threads < 0 {
		return nil, fmt.Errorf("threads must not be negative")
	}

	if cfg.ReadOnly && cfg.Path == "" {
		return nil, fmt.Errorf("read_only requires a database path")
	}

	return cfg, nil
}

// DSN builds the duckdb-go connection string.
func (c *Config) DSN() string {
	params := url.Values{}
	if c.ReadOnly {
		params.Set("access_mode", "READ_ONLY")
	}
	if c.Threads > 0 {
		params.Set("threads", fmt.Sprintf("%d", c.Threads))
	}
	if len(params) == 0 {
		return c.Path
	}
	return c.Path + "?" + params.Encode()
}
