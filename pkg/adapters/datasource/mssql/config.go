package mssql

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-nlsql/pkg/config"
)

// Auth methods.
const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	Schema   string

	AuthMethod string

	// SQL authentication
	Username string
	Password string

	// Azure AD service principal
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultSchema is the schema tables are listed from when none is given.
const DefaultSchema = "dbo"

// FromMap creates a Config from a generic config map. The auth method is
// detected from the credentials present unless auth_method is set.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort(),
		Schema:            DefaultSchema,
		Encrypt:           true,
		ConnectionTimeout: 30,
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

	database, _ := m["database"].(string)
	if database == "" {
		return nil, fmt.Errorf("database is required")
	}
	cfg.Database = database

	if schema, ok := m["schema"].(string); ok && schema != "" {
		cfg.Schema = schema
	}

	switch v := m["encrypt"].(type) {
	case bool:
		cfg.Encrypt = v
	case string:
		cfg.Encrypt = v == "true" || v == "strict"
	}
	if trust, ok := m["trust_server_certificate"].(bool); ok {
		cfg.TrustServerCertificate = trust
	}
	if timeout, ok := m["connection_timeout"].(float64); ok {
		cfg.ConnectionTimeout = int(timeout)
	} else if timeout, ok := m["connection_timeout"].(int); ok {
		cfg.ConnectionTimeout = timeout
	}

	cfg.AuthMethod, _ = m["auth_method"].(string)
	if cfg.AuthMethod == "" {
		if _, ok := m["client_id"].(string); ok {
			cfg.AuthMethod = AuthServicePrincipal
		} else {
			cfg.AuthMethod = AuthSQL
		}
	}

	switch cfg.AuthMethod {
	case AuthSQL:
		cfg.Username, _ = m["user"].(string)
		if cfg.Username == "" {
			cfg.Username, _ = m["username"].(string)
		}
		cfg.Password, _ = m["password"].(string)
	case AuthServicePrincipal:
		cfg.TenantID, _ = m["tenant_id"].(string)
		cfg.ClientID, _ = m["client_id"].(string)
		cfg.ClientSecret, _ = m["client_secret"].(string)
	default:
		return nil, fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", cfg.AuthMethod)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the fields required by the auth method are present.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			return fmt.Errorf("user is required for SQL authentication")
		}
	case AuthServicePrincipal:
		if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("tenant_id, client_id and client_secret are required for service principal")
		}
	}
	return nil
}

// DriverName returns the database/sql driver to open: "azuresql" for Azure AD.
func (c *Config) DriverName() string {
	if c.AuthMethod == AuthServicePrincipal {
		return "azuresql"
	}
	return "sqlserver"
}

// URL builds the sqlserver:// connection string.
func (c *Config) URL() string {
	q := url.Values{}
	q.Set("database", c.Database)
	q.Set("encrypt", strconv.FormatBool(c.Encrypt))
	if c.TrustServerCertificate {
		q.Set("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		q.Set("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}

	u := &url.URL{
		Scheme: "sqlserver",
		Host:   fmt.Sprintf("%s:%d", config.ResolveHostForDocker(c.Host), c.Port),
	}
	if c.AuthMethod == AuthServicePrincipal {
		q.Set("fedauth", "ActiveDirectoryServicePrincipal")
		q.Set("user id", c.ClientID+"@"+c.TenantID)
		q.Set("password", c.ClientSecret)
	} else {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
