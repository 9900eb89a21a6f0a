package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// ClientIDEnv names the environment variable that overrides the configured Spotify client ID.
const ClientIDEnv = "SPOTIFY_CLIENT_ID"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Search      SearchConfig      `toml:"search"`
	API         APIConfig         `toml:"api"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains the public client settings for the implicit grant flow.
//
// There is no client secret: the implicit flow never exchanges a code.
type SpotifyConfig struct {
	ClientID          string   `toml:"client_id"`
	DeploymentHost    string   `toml:"deployment_host"`
	HostedRedirectURI string   `toml:"hosted_redirect_uri"`
	LocalRedirectURI  string   `toml:"local_redirect_uri"`
	Scopes            []string `toml:"scopes"`
	ShowDialog        bool     `toml:"show_dialog"`
}

// ServerConfig contains settings for the local callback server.
//
// Location is the URL the application is reachable at and is compared against
// [SpotifyConfig.DeploymentHost] to pick a redirect target.
type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Location string `toml:"location"`
}

// SearchConfig tunes the meditation search.
type SearchConfig struct {
	Query                   string `toml:"query"`
	NamePrefix              string `toml:"name_prefix"`
	BatchSize               int    `toml:"batch_size"`
	ToleranceMS             int    `toml:"tolerance_ms"`
	MaxAttempts             int    `toml:"max_attempts"`
	DefaultMinutes          int    `toml:"default_minutes"`
	ValidateIntervalMinutes int    `toml:"validate_interval_minutes"`
	Market                  string `toml:"market"`
}

// APIConfig contains Web API client settings.
type APIConfig struct {
	BaseURL        string  `toml:"base_url"`
	RateLimit      float64 `toml:"rate_limit"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values with environment variables.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(ClientIDEnv); ok && strings.TrimSpace(v) != "" {
		c.Credentials.Spotify.ClientID = strings.TrimSpace(v)
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Search.Query) == "":
		return fmt.Errorf("%w: search.query is empty", ErrInvalidConfig)
	case c.Search.BatchSize <= 0 || c.Search.BatchSize > 50:
		return fmt.Errorf("%w: search.batch_size must be within 1..50, got %d", ErrInvalidConfig, c.Search.BatchSize)
	case strings.TrimSpace(c.Search.NamePrefix) == "":
		return fmt.Errorf("%w: search.name_prefix is empty", ErrInvalidConfig)
	case c.Search.ToleranceMS <= 0:
		return fmt.Errorf("%w: search.tolerance_ms must be positive", ErrInvalidConfig)
	case c.Search.MaxAttempts <= 0:
		return fmt.Errorf("%w: search.max_attempts must be positive", ErrInvalidConfig)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port out of range: %d", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}

// ValidateCredentials reports whether a usable client ID is configured.
func (c *Config) ValidateCredentials() error {
	id := c.Credentials.Spotify.ClientID
	if id == "" || id == "your_spotify_client_id" {
		return fmt.Errorf("%w: set credentials.spotify.client_id or %s", ErrMissingCredentials, ClientIDEnv)
	}
	return nil
}

// Addr returns the host:port the callback server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Tolerance returns the duration window as a [time.Duration].
func (s SearchConfig) Tolerance() time.Duration {
	return time.Duration(s.ToleranceMS) * time.Millisecond
}

// ValidateInterval returns how often a session re-validates its credential.
func (s SearchConfig) ValidateInterval() time.Duration {
	if s.ValidateIntervalMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.ValidateIntervalMinutes) * time.Minute
}

// Timeout returns the HTTP client timeout.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}
