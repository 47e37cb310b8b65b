package app

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BackendURL      string `yaml:"backend_url"`
	APIToken        string `yaml:"api_token"`
	UserID          string `yaml:"user_id"`
	SessionPageSize int    `yaml:"session_page_size"`
	HistoryPageSize int    `yaml:"history_page_size"`
	RequestTimeout  int    `yaml:"request_timeout_seconds"`
}

func DefaultConfig() Config {
	return Config{
		BackendURL:      "http://localhost:8000",
		SessionPageSize: 10,
		HistoryPageSize: 20,
		RequestTimeout:  30,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if v := os.Getenv("HUGG_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("HUGG_API_TOKEN"); v != "" {
		cfg.APIToken = v
	}
	if v := os.Getenv("HUGG_USER_ID"); v != "" {
		cfg.UserID = v
	}

	if cfg.BackendURL == "" {
		cfg.BackendURL = "http://localhost:8000"
	}
	if cfg.SessionPageSize <= 0 {
		cfg.SessionPageSize = 10
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return errors.New("no path provided for config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "hugg-cli", "config.yml")
}

// DefaultTitledSetPath is where the ids of sessions that already carry a real
// title are persisted between runs.
func DefaultTitledSetPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "hugg-cli", "titled.json")
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}
