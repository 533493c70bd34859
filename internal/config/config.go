// Package config provides configuration management for the CKD risk
// prediction service.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/obiboss/ckd/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ckd-api/")

	// Environment variables take the CKD_ prefix, e.g. CKD_SERVER_PORT.
	viper.SetEnvPrefix("CKD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// The config file is optional; defaults and env vars suffice for the
	// standalone demo mode.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.rate_limit", 20)
	viper.SetDefault("server.rate_burst", 40)

	// Database defaults. The host is intentionally empty: without it the
	// service runs on the embedded SQLite store.
	viper.SetDefault("database.host", "")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "ckd")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_conns", 25)
	viper.SetDefault("database.min_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "30m")
	viper.SetDefault("database.migrations_path", "migrations")

	// Prediction log store defaults
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.sqlite_path", "data/predictions.db")

	// Result cache defaults
	viper.SetDefault("cache.max_items", 1000)
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", "24h")

	// Auth defaults. The secret default exists for the thesis demo only
	// and must be overridden in any shared deployment.
	viper.SetDefault("auth.jwt_secret", "ckd-demo-secret")
	viper.SetDefault("auth.token_ttl", "12h")
	viper.SetDefault("auth.issuer", "ckd-api")

	// CORS defaults mirror the local frontend dev servers.
	viper.SetDefault("cors.allowed_origins", []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"http://localhost:5173",
		"http://127.0.0.1:5173",
	})

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	// Model tunables; zero means "use the built-in default".
	viper.SetDefault("model.low_cutoff", 0.0)
	viper.SetDefault("model.high_cutoff", 0.0)
	viper.SetDefault("model.baseline", 0.0)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// DatabaseEnabled reports whether a PostgreSQL host is configured.
func (m *Manager) DatabaseEnabled() bool {
	return m.config.Database.Host != ""
}

// GetDatabaseURL returns a postgres:// connection URL for migrations and
// database/sql consumers.
func (m *Manager) GetDatabaseURL() string {
	db := m.config.Database
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.Username, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Database,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	return u.String()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if m.DatabaseEnabled() {
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	}

	switch config.Store.Driver {
	case "sqlite":
		if config.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if !m.DatabaseEnabled() {
			return fmt.Errorf("store.driver postgres requires a database host")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", config.Store.Driver)
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c := config.Model; c.LowCutoff != 0 && c.HighCutoff != 0 && c.LowCutoff >= c.HighCutoff {
		return fmt.Errorf("model.low_cutoff must be below model.high_cutoff")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
