// Package config handles the XDG configuration directory, its files and the
// optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application directory name.
	AppName = "quicktodo"

	// ConfigFile is the optional settings filename.
	ConfigFile = "config.yaml"

	// OAuthClientFile is the OAuth client credentials filename (googletasks backend).
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename (googletasks backend).
	TokenFile = "token.json"
)

// Backend names.
const (
	BackendREST        = "rest"
	BackendGoogleTasks = "googletasks"
)

// Defaults.
const (
	DefaultBaseURL = "https://jsonplaceholder.typicode.com"
	DefaultLimit   = 10
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string `yaml:"-"`

	// Debug enables debug logging.
	Debug bool `yaml:"-"`

	// Quiet suppresses informational output.
	Quiet bool `yaml:"-"`

	// In is the input stream for interactive commands. Nil means os.Stdin.
	In io.Reader `yaml:"-"`

	// Backend selects the remote task store.
	Backend string `yaml:"backend"`

	// BaseURL is the REST store root.
	BaseURL string `yaml:"base_url"`

	// Limit caps the number of tasks fetched.
	Limit int `yaml:"limit"`

	// StaleTime is how long a fetched list counts as fresh.
	StaleTime time.Duration `yaml:"stale_time"`

	// Timeout bounds each REST call. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout"`

	// Token is an optional bearer token for the REST store.
	Token string `yaml:"token"`
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/quicktodo or $HOME/.config/quicktodo.
// Settings from config.yaml, when present, override the defaults.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{
		Dir:     dir,
		Backend: BackendREST,
		BaseURL: DefaultBaseURL,
		Limit:   DefaultLimit,
	}
	if err := cfg.load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) load() error {
	data, err := os.ReadFile(c.ConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid %s: %w", ConfigFile, err)
	}
	return c.validate()
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendREST, BackendGoogleTasks:
	default:
		return fmt.Errorf("invalid %s: unknown backend: %s", ConfigFile, c.Backend)
	}
	if c.Limit < 0 {
		return fmt.Errorf("invalid %s: limit must not be negative", ConfigFile)
	}
	if c.StaleTime < 0 || c.Timeout < 0 {
		return fmt.Errorf("invalid %s: durations must not be negative", ConfigFile)
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// Input returns the interactive input stream.
func (c *Config) Input() io.Reader {
	if c.In == nil {
		return os.Stdin
	}
	return c.In
}

// ConfigPath returns the path to config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Dir, ConfigFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}
