package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel     string             `toml:"log_level"`
	ListenBrainz ListenBrainzConfig `toml:"listenbrainz"`
	MusicBrainz  MusicBrainzConfig  `toml:"musicbrainz"`
	Library      LibraryConfig      `toml:"library"`
	Database     DatabaseConfig     `toml:"database"`
	Server       ServerConfig       `toml:"server"`
}

// ListenBrainzConfig contains the remote account and playlist import settings.
//
// An empty SearchSchemes list means track searches are not restricted to any URI scheme.
type ListenBrainzConfig struct {
	Token             string   `toml:"token"`
	URL               string   `toml:"url"`
	ImportPlaylists   bool     `toml:"import_playlists"`
	SearchSchemes     []string `toml:"search_schemes"`
	FallbackSchemes   []string `toml:"fallback_schemes"`
	Proxy             string   `toml:"proxy"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
}

// MusicBrainzConfig controls the recording lookup used when a track id is unknown to the library.
type MusicBrainzConfig struct {
	Enabled           bool    `toml:"enabled"`
	URL               string  `toml:"url"`
	Contact           string  `toml:"contact"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LibraryConfig points the scanner at the local music collection.
type LibraryConfig struct {
	Root            string `toml:"root"`
	Watch           bool   `toml:"watch"`
	DebounceSeconds int    `toml:"debounce_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Timeout returns the HTTP timeout for remote calls, defaulting to 30 seconds.
func (c ListenBrainzConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Debounce returns the watcher settle period, defaulting to 5 seconds.
func (c LibraryConfig) Debounce() time.Duration {
	if c.DebounceSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.DebounceSeconds) * time.Second
}

// Validate checks the settings needed to talk to ListenBrainz.
func (c *Config) Validate() error {
	if c.ListenBrainz.Token == "" {
		return fmt.Errorf("%w: listenbrainz.token is empty", ErrMissingCredentials)
	}
	if c.ListenBrainz.URL == "" {
		return fmt.Errorf("%w: listenbrainz.url is empty", ErrInvalidConfig)
	}
	if c.ListenBrainz.RequestsPerSecond < 0 || c.MusicBrainz.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their values from [DefaultConfig].
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

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
