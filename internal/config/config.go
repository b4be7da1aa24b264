package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TASKDESK_API_URL.
const EnvPrefix = "TASKDESK"

const defaultTimeout = 15 * time.Second

type Config struct {
	APIURL         string `json:"api_url" mapstructure:"api_url"`
	DBPath         string `json:"db_path" mapstructure:"db_path"`
	WebEnabled     bool   `json:"web_enabled" mapstructure:"web_enabled"`
	WebPort        int    `json:"web_port" mapstructure:"web_port"`
	RequestTimeout string `json:"request_timeout" mapstructure:"request_timeout"`
	LogPath        string `json:"log_path,omitempty" mapstructure:"log_path"`
}

func Default() Config {
	return Config{
		APIURL:         "http://localhost:5000/api",
		WebPort:        8080,
		RequestTimeout: defaultTimeout.String(),
	}
}

// Timeout parses RequestTimeout. It returns 15s if unset or invalid.
func (c Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return defaultTimeout
	}
	return d
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "taskdesk", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads the JSON config at path (a missing file is fine) and applies
// TASKDESK_* environment overrides on top.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("api_url", defaults.APIURL)
	v.SetDefault("db_path", defaults.DBPath)
	v.SetDefault("web_enabled", defaults.WebEnabled)
	v.SetDefault("web_port", defaults.WebPort)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("log_path", defaults.LogPath)

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		return Config{}, errors.New("config: api_url must be set")
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
