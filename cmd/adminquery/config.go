package main

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/adminquery/pkg/export"
	"github.com/ruslano69/adminquery/pkg/resultcache"
	"github.com/ruslano69/adminquery/pkg/retry"
)

// Config represents the main configuration structure
type Config struct {
	Database    DatabaseConfig `yaml:"database"`
	SchemaFile  string         `yaml:"schema_file"`
	Cache       CacheConfig    `yaml:"cache,omitempty"`
	Retry       RetryConfig    `yaml:"retry,omitempty"`
	Logging     LoggingConfig  `yaml:"logging,omitempty"`
	MetricsFile string         `yaml:"metrics_file,omitempty"`
	Export      ExportConfig   `yaml:"export,omitempty"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Type     string `yaml:"type"`               // sqlite, postgres, mysql, mssql
	Host     string `yaml:"host,omitempty"`     // For network databases
	Port     int    `yaml:"port,omitempty"`     // Database port
	Database string `yaml:"database"`           // Database name or file path
	User     string `yaml:"user,omitempty"`     // Username
	Password string `yaml:"password,omitempty"` // Password
	Schema   string `yaml:"schema,omitempty"`   // PostgreSQL/MS SQL schema
	SSLMode  string `yaml:"sslmode,omitempty"`  // PostgreSQL SSL mode
	MaxConns int    `yaml:"max_conns,omitempty"`
	MinConns int    `yaml:"min_conns,omitempty"`

	ConnectTimeout int `yaml:"connect_timeout,omitempty"` // seconds
	QueryTimeout   int `yaml:"query_timeout,omitempty"`   // seconds, per statement
}

// CacheConfig - Redis кеш результатов графиков
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	TTL      int    `yaml:"ttl,omitempty"` // seconds
}

// RetryConfig for retry mechanism settings
type RetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MaxAttempts int    `yaml:"max_attempts"`
	Strategy    string `yaml:"strategy"` // constant, linear, exponential
	InitialWait int    `yaml:"initial_wait_ms"`
	MaxWait     int    `yaml:"max_wait_ms"`
	Jitter      bool   `yaml:"jitter"`
}

// LoggingConfig - уровень и формат логов
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // console, json
}

// ExportConfig contains export settings
type ExportConfig struct {
	BatchSize   int    `yaml:"batch_size,omitempty"`
	S3Bucket    string `yaml:"s3_bucket,omitempty"`
	S3Region    string `yaml:"s3_region,omitempty"`
	S3Prefix    string `yaml:"s3_prefix,omitempty"`
	S3Endpoint  string `yaml:"s3_endpoint,omitempty"`
	S3AccessKey string `yaml:"s3_access_key,omitempty"`
	S3SecretKey string `yaml:"s3_secret_key,omitempty"`
}

// LoadConfig loads configuration from YAML file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.Database.Type == "" {
		return nil, fmt.Errorf("database.type is required")
	}
	if config.SchemaFile == "" {
		return nil, fmt.Errorf("schema_file is required")
	}

	return &config, nil
}

// SaveConfig saves configuration to YAML file
func SaveConfig(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateSampleConfig creates a sample configuration
func CreateSampleConfig(dbType string) *Config {
	config := &Config{
		Database:   DatabaseConfig{Type: dbType, ConnectTimeout: 10, QueryTimeout: 30},
		SchemaFile: "schema.yaml",
		Cache: CacheConfig{
			Address: "localhost:6379",
			TTL:     300,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Strategy:    "exponential",
			InitialWait: 50,
			MaxWait:     2000,
			Jitter:      true,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Export:  ExportConfig{BatchSize: export.DefaultBatchSize},
	}

	switch dbType {
	case "postgres":
		config.Database.Host = "localhost"
		config.Database.Port = 5432
		config.Database.Database = "mydb"
		config.Database.User = "postgres"
		config.Database.Password = "password"
		config.Database.Schema = "public"
		config.Database.SSLMode = "disable"

	case "mssql":
		config.Database.Host = "localhost"
		config.Database.Port = 1433
		config.Database.Database = "mydb"
		config.Database.User = "sa"
		config.Database.Password = "Password123!"
		config.Database.Schema = "dbo"

	case "sqlite":
		config.Database.Database = "database.db"

	case "mysql":
		config.Database.Host = "localhost"
		config.Database.Port = 3306
		config.Database.Database = "mydb"
		config.Database.User = "root"
		config.Database.Password = "password"
	}

	return config
}

// BuildDSN constructs database connection string from config
func (c *DatabaseConfig) BuildDSN() string {
	switch c.Type {
	case "postgres", "postgresql":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:     "/" + c.Database,
			RawQuery: "sslmode=" + url.QueryEscape(sslMode),
		}
		return u.String()

	case "mssql", "sqlserver":
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			RawQuery: "database=" + url.QueryEscape(c.Database),
		}
		return u.String()

	case "sqlite", "sqlite3":
		return c.Database

	case "mysql":
		// parseTime и loc=UTC задает адаптер
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			c.User, c.Password, c.Host, c.Port, c.Database)

	default:
		return ""
	}
}

// Timeouts returns the connect and per-statement timeouts; zero disables one.
func (c *DatabaseConfig) Timeouts() (connect, query time.Duration) {
	return time.Duration(c.ConnectTimeout) * time.Second, time.Duration(c.QueryTimeout) * time.Second
}

// RetryConfig converts the retry section to retry.Config.
func (r RetryConfig) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.Enabled = r.Enabled
	if r.MaxAttempts > 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.Strategy != "" {
		cfg.BackoffStrategy = retry.BackoffStrategy(r.Strategy)
	}
	if r.InitialWait > 0 {
		cfg.InitialDelay = time.Duration(r.InitialWait) * time.Millisecond
	}
	if r.MaxWait > 0 {
		cfg.MaxDelay = time.Duration(r.MaxWait) * time.Millisecond
	}
	if !r.Jitter {
		cfg.Jitter = 0
	}
	return cfg
}

// CacheConfig converts the cache section to resultcache.Config.
func (c CacheConfig) CacheConfig() resultcache.Config {
	return resultcache.Config{
		Address:  c.Address,
		Password: c.Password,
		DB:       c.DB,
		TTL:      time.Duration(c.TTL) * time.Second,
	}
}

// S3Config converts the export section to export.S3Config.
func (e ExportConfig) S3Config() export.S3Config {
	return export.S3Config{
		Bucket:    e.S3Bucket,
		Region:    e.S3Region,
		Prefix:    e.S3Prefix,
		Endpoint:  e.S3Endpoint,
		AccessKey: e.S3AccessKey,
		SecretKey: e.S3SecretKey,
	}
}
