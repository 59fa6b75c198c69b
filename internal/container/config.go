// Package container provides dependency injection and lifecycle management
// for the document workflow service.
package container

import (
	"fmt"
	"time"

	"github.com/ebaz7/lepan-crm-sub000/internal/domain/entity"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/fiscal"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Workflow  WorkflowConfig
	Sequence  SequenceConfig
	Companies []fiscal.CompanyConfig
	// Actors maps actor IDs to role names
	Actors  map[string]string
	Lark    LarkConfig
	NATS    NATSConfig
	Metrics MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the store: sqlite or postgres
	Driver string

	// Path to SQLite database file
	Path string

	// DSN is the Postgres connection string
	DSN string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long SQLite waits on a locked database
	BusyTimeout time.Duration

	// AutoMigrate applies pending migrations on start
	AutoMigrate bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// AuthConfig holds bearer-token settings.
type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	Issuer    string
}

// WorkflowConfig holds approval engine settings.
type WorkflowConfig struct {
	// AdminRole may perform any action at any stage
	AdminRole string
}

// SequenceConfig holds document number allocator settings.
type SequenceConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// LarkConfig holds Lark notifier settings.
type LarkConfig struct {
	Enabled       bool
	AppID         string
	AppSecret     string
	ReceiveID     string
	ReceiveIDType string
	BaseURL       string
}

// NATSConfig holds NATS publisher settings.
type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            "data/docflow.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     5 * time.Second,
			AutoMigrate:     true,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{
			AdminRole: string(entity.RoleAdmin),
		},
		Sequence: SequenceConfig{
			MaxAttempts:  5,
			RetryBackoff: 10 * time.Millisecond,
		},
		Actors: map[string]string{},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "docflow.transitions",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}

	if c.Workflow.AdminRole != "" && !entity.Role(c.Workflow.AdminRole).IsValid() {
		return fmt.Errorf("workflow.admin_role %q is not a known role", c.Workflow.AdminRole)
	}

	if len(c.Companies) == 0 {
		return fmt.Errorf("at least one company is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_id and lark.app_secret are required when lark is enabled")
		}
		if c.Lark.ReceiveID == "" {
			return fmt.Errorf("lark.receive_id is required when lark is enabled")
		}
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}

	return nil
}
