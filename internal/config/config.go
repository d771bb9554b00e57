package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when a field is absent from config.toml. The connect
// timeout and poll interval match the backend's published contract.
const (
	DefaultAPIBase           = "http://localhost:5000/api"
	DefaultSocketURL         = "ws://localhost:5000/ws"
	DefaultConnectTimeout    = 5 * time.Second
	DefaultPollInterval      = 30 * time.Second
	DefaultReconnectAttempts = 3
)

// Config represents the global ~/.sdesk/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	APIBase   string `toml:"api_base"`
	SocketURL string `toml:"socket_url"`

	ConnectTimeoutSec int `toml:"connect_timeout_sec"`
	PollIntervalSec   int `toml:"poll_interval_sec"`
	ReconnectAttempts int `toml:"reconnect_attempts"`
}

// Load reads config from the given path and fills in defaults.
// Returns an error if the file is missing or malformed.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from the given path, returning defaults when
// no config file exists yet.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Default returns a config with all defaults applied, used when no
// config.toml exists yet.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.SocketURL == "" {
		c.SocketURL = DefaultSocketURL
	}
	if c.ConnectTimeoutSec <= 0 {
		c.ConnectTimeoutSec = int(DefaultConnectTimeout / time.Second)
	}
	if c.PollIntervalSec <= 0 {
		c.PollIntervalSec = int(DefaultPollInterval / time.Second)
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = DefaultReconnectAttempts
	}
}

// ConnectTimeout returns the transport connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

// PollInterval returns the notification polling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
