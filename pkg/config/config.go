package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for ekaya-nlsql.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Warehouse is the primary analytic query target.
	Warehouse WarehouseConfig `yaml:"warehouse"`

	// Relational is an optional second backend with equivalent semantics.
	Relational RelationalConfig `yaml:"relational"`

	// Registry is the metadata store holding data source registrations.
	Registry RegistryConfig `yaml:"registry"`

	LLM        LLMConfig        `yaml:"llm"`
	Compiler   CompilerConfig   `yaml:"compiler"`
	Validation ValidationConfig `yaml:"validation"`
	Cache      CacheConfig      `yaml:"cache"`
	Redis      RedisConfig      `yaml:"redis"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

// WarehouseConfig configures the columnar warehouse backend.
type WarehouseConfig struct {
	Type string `yaml:"type" env:"WAREHOUSE_TYPE" env-default:"duckdb"`
	// Path is the DuckDB database file. Empty means an in-memory database.
	Path     string `yaml:"path" env:"WAREHOUSE_PATH" env-default:""`
	ReadOnly bool   `yaml:"read_only" env:"WAREHOUSE_READ_ONLY" env-default:"false"`
}

// RelationalConfig configures the optional relational backend.
// Type is "postgres", "sqlserver" or empty (disabled).
type RelationalConfig struct {
	Type     string `yaml:"type" env:"RELATIONAL_TYPE" env-default:""`
	Host     string `yaml:"host" env:"RELATIONAL_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"RELATIONAL_PORT" env-default:"0"`
	User     string `yaml:"user" env:"RELATIONAL_USER" env-default:""`
	Password string `yaml:"-" env:"RELATIONAL_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"RELATIONAL_DATABASE" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"RELATIONAL_SSLMODE" env-default:"disable"`
}

// Enabled returns true if a relational backend is configured.
func (c *RelationalConfig) Enabled() bool {
	return c.Type != ""
}

// AdapterConfig converts the relational settings into the generic map consumed
// by the datasource adapter registry.
func (c *RelationalConfig) AdapterConfig() map[string]any {
	m := map[string]any{
		"host":     c.Host,
		"user":     c.User,
		"password": c.Password,
		"database": c.Database,
		"ssl_mode": c.SSLMode,
	}
	if c.Port > 0 {
		m["port"] = c.Port
	}
	return m
}

// RegistryConfig holds the PostgreSQL metadata store configuration.
// When Host is empty the registry falls back to an in-memory store.
type RegistryConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:""`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_nlsql"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// URL builds the pgx connection URL for the registry database.
func (c *RegistryConfig) URL() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Enabled returns true if a PostgreSQL registry is configured.
func (c *RegistryConfig) Enabled() bool {
	return c.Host != ""
}

// LLMConfig configures the completion collaborator.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint), "anthropic" or "none".
	Provider            string  `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Endpoint            string  `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model               string  `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	APIKey              string  `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	Temperature         float64 `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0"`
	MaxTokens           int     `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"1024"`
	TimeoutSeconds      int     `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"30"`
	CircuitThreshold    int     `yaml:"circuit_threshold" env:"LLM_CIRCUIT_THRESHOLD" env-default:"5"`
	CircuitResetSeconds int     `yaml:"circuit_reset_seconds" env:"LLM_CIRCUIT_RESET_SECONDS" env-default:"30"`
}

// Enabled returns true if an LLM provider is configured.
func (c *LLMConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != "none"
}

// Timeout returns the per-call completion timeout.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CompilerConfig holds SQL compilation and execution limits.
type CompilerConfig struct {
	QueryTimeoutSeconds int  `yaml:"query_timeout_seconds" env:"COMPILER_QUERY_TIMEOUT_SECONDS" env-default:"30"`
	MaxRows             int  `yaml:"max_rows" env:"COMPILER_MAX_ROWS" env-default:"1000"`
	MaxPromptColumns    int  `yaml:"max_prompt_columns" env:"COMPILER_MAX_PROMPT_COLUMNS" env-default:"20"`
	EnableFallback      bool `yaml:"enable_fallback" env:"COMPILER_ENABLE_FALLBACK" env-default:"true"`
}

// QueryTimeout returns the per-execution timeout.
func (c *CompilerConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// ValidationConfig holds the ETL null-rate thresholds. The defaults are
// empirically chosen and meant to be overridden per deployment.
type ValidationConfig struct {
	// IdentifierNullFailPct fails an identifier/key column above this null percentage.
	IdentifierNullFailPct float64 `yaml:"identifier_null_fail_pct" env:"VALIDATION_IDENTIFIER_NULL_FAIL_PCT" env-default:"95"`
	// WarnNullPct records a warning above this null percentage.
	WarnNullPct float64 `yaml:"warn_null_pct" env:"VALIDATION_WARN_NULL_PCT" env-default:"80"`
	// NullIncreaseWarnPct warns when a conversion raised the null rate by more than this many points.
	NullIncreaseWarnPct float64 `yaml:"null_increase_warn_pct" env:"VALIDATION_NULL_INCREASE_WARN_PCT" env-default:"20"`
	// CriticalShare fails the run when critical failures exceed this share of columns.
	CriticalShare float64 `yaml:"critical_share" env:"VALIDATION_CRITICAL_SHARE" env-default:"0.5"`
}

// DefaultValidationConfig returns the thresholds used when no config is loaded.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		IdentifierNullFailPct: 95,
		WarnNullPct:           80,
		NullIncreaseWarnPct:   20,
		CriticalShare:         0.5,
	}
}

// CacheConfig holds TTLs for the advisory read-through caches.
type CacheConfig struct {
	SchemaTTLMinutes  int `yaml:"schema_ttl_minutes" env:"CACHE_SCHEMA_TTL_MINUTES" env-default:"10"`
	LocatorTTLMinutes int `yaml:"locator_ttl_minutes" env:"CACHE_LOCATOR_TTL_MINUTES" env-default:"30"`
}

// SchemaTTL returns the schema and alias map cache TTL.
func (c *CacheConfig) SchemaTTL() time.Duration {
	return time.Duration(c.SchemaTTLMinutes) * time.Minute
}

// LocatorTTL returns the table locator cache TTL.
func (c *CacheConfig) LocatorTTL() time.Duration {
	return time.Duration(c.LocatorTTLMinutes) * time.Minute
}

// RedisConfig configures the optional shared locator cache. When Host is
// empty each process keeps its own in-memory cache.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Enabled returns true if a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// CatalogConfig points at an optional pattern catalogue override file.
type CatalogConfig struct {
	OverridesPath string `yaml:"overrides_path" env:"CATALOG_OVERRIDES_PATH" env-default:""`
}

// Load reads configuration from the YAML file at path with environment variable
// overrides. A missing file is not an error: defaults and environment apply.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.resolveHosts()

	return cfg, nil
}

// validate checks cross-field constraints that struct tags cannot express.
func (c *Config) validate() error {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	switch c.LLM.Provider {
	case "", "none", "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}

	switch c.Relational.Type {
	case "", "postgres", "sqlserver":
	default:
		return fmt.Errorf("unsupported relational backend %q", c.Relational.Type)
	}

	v := c.Validation
	if v.IdentifierNullFailPct <= 0 || v.IdentifierNullFailPct > 100 {
		return fmt.Errorf("validation.identifier_null_fail_pct must be in (0, 100], got %v", v.IdentifierNullFailPct)
	}
	if v.CriticalShare <= 0 || v.CriticalShare > 1 {
		return fmt.Errorf("validation.critical_share must be in (0, 1], got %v", v.CriticalShare)
	}

	if c.Compiler.MaxPromptColumns <= 0 {
		return fmt.Errorf("compiler.max_prompt_columns must be positive")
	}

	return nil
}
