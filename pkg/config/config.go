// Package config loads and stores application configuration.
// Configuration is read from a JSON file with environment overrides; the
// feed section can additionally be mutated at runtime via FeedSettings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Auth modes reported by FeedConfig.AuthMode, in precedence order.
const (
	AuthModeOAuth2    = "oauth2"
	AuthModeBasic     = "basic"
	AuthModeAnonymous = "anonymous"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Feed     FeedConfig     `json:"feed"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host"`
}

// DatabaseConfig contains PostgreSQL connection settings for the
// watchlist and fleet repositories.
type DatabaseConfig struct {
	// Enabled determines whether persistence is used at all; the server
	// runs fully in-memory when false
	Enabled bool `json:"enabled"`

	// Host is the database server hostname
	Host string `json:"host"`

	// Port is the database server port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// Username for database authentication
	Username string `json:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns"`
}

// FeedConfig contains OpenSky live-state feed settings.
//
// Credential precedence: OAuth2 client credentials (ClientID+ClientSecret)
// over Basic (Username+Password) over anonymous access.
type FeedConfig struct {
	// BaseURL is the OpenSky REST API base URL
	BaseURL string `json:"base_url"`

	// AuthURL is the OAuth2 token endpoint for client-credentials exchange
	AuthURL string `json:"auth_url"`

	// Username and Password enable Basic auth (legacy OpenSky accounts)
	Username string `json:"username"`
	Password string `json:"password"`

	// ClientID and ClientSecret enable OAuth2 client-credentials auth
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`

	// Enabled gates outbound feed traffic; health reports "disabled" when false
	Enabled bool `json:"enabled"`

	// RateLimitSeconds is the minimum spacing between snapshot requests.
	// OpenSky allows one /states/all call per 5 seconds for authenticated
	// accounts.
	RateLimitSeconds float64 `json:"rate_limit_seconds"`

	// TimeoutSeconds bounds each feed and token HTTP round trip
	TimeoutSeconds float64 `json:"timeout_seconds"`

	// CacheTTLSeconds is how long per-aircraft telemetry stays fresh
	CacheTTLSeconds float64 `json:"cache_ttl_seconds"`
}

// AuthMode returns which credential mode the configuration selects.
func (f FeedConfig) AuthMode() string {
	if f.ClientID != "" && f.ClientSecret != "" {
		return AuthModeOAuth2
	}
	if f.Username != "" && f.Password != "" {
		return AuthModeBasic
	}
	return AuthModeAnonymous
}

// Load reads configuration from a JSON file.
// If the file doesn't exist, returns a default configuration.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "openskyprox",
			Username:     "openskyprox",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		Feed: FeedConfig{
			BaseURL:          "https://opensky-network.org/api",
			AuthURL:          "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token",
			Enabled:          true,
			RateLimitSeconds: 5.0,
			TimeoutSeconds:   5.0,
			CacheTTLSeconds:  10.0,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the
// config. This keeps credentials out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("PROX_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("PROX_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if baseURL := os.Getenv("OPENSKY_BASE_URL"); baseURL != "" {
		c.Feed.BaseURL = baseURL
	}
	if authURL := os.Getenv("OPENSKY_AUTH_URL"); authURL != "" {
		c.Feed.AuthURL = authURL
	}
	if username := os.Getenv("OPENSKY_USERNAME"); username != "" {
		c.Feed.Username = username
	}
	if password := os.Getenv("OPENSKY_PASSWORD"); password != "" {
		c.Feed.Password = password
	}
	if clientID := os.Getenv("OPENSKY_CLIENT_ID"); clientID != "" {
		c.Feed.ClientID = clientID
	}
	if clientSecret := os.Getenv("OPENSKY_CLIENT_SECRET"); clientSecret != "" {
		c.Feed.ClientSecret = clientSecret
	}
	if enabled := os.Getenv("OPENSKY_ENABLED"); enabled != "" {
		c.Feed.Enabled = enabled == "true"
	}
}
