package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/config"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSchema is the schema tables are listed from when none is given.
const DefaultSchema = "public"

// FromMap creates a Config from a generic config map.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort(),
		Schema:  DefaultSchema,
		SSLMode: "disable",
	}

	host, _ := m["host"].(string)
	if host == "" {
		return nil, fmt.Errorf("host is required")
	}
	cfg.Host = host

	if port, ok := m["port"].(float64); ok { // JSON numbers are float64
		cfg.Port = int(port)
	} else if port, ok := m["port"].(int); ok {
		cfg.Port = port
	}

	user, _ := m["user"].(string)
	if user == "" {
		return nil, fmt.Errorf("user is required")
	}
	cfg.User = user
	cfg.Password, _ = m["password"].(string)

	database, _ := m["database"].(string)
	if database == "" {
		return nil, fmt.Errorf("database is required")
	}
	cfg.Database = database

	if schema, ok := m["schema"].(string); ok && schema != "" {
		cfg.Schema = schema
	}
	if sslMode, ok := m["ssl_mode"].(string); ok && sslMode != "" {
		cfg.SSLMode = sslMode
	}

	return cfg, nil
}

// URL builds a PostgreSQL URL with every user-provided part escaped.
// localhost is mapped to host.docker.internal when running in a container.
func (c *Config) URL() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", config.ResolveHostForDocker(c.Host), c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
