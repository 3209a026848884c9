package server

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds server configuration. Values are layered: defaults, then the
// YAML config file, then CHAT_* environment variables, then CLI flags
// applied by the caller.
type Config struct {
	Addr        string `yaml:"addr" envconfig:"addr"`                 // TCP bind address (e.g. ":55555")
	MetricsAddr string `yaml:"metrics_addr" envconfig:"metrics_addr"` // HTTP bind address for /metrics (empty = disabled)
	AccountsDB  string `yaml:"accounts_db" envconfig:"accounts_db"`   // credential store SQLite path
	MessagesDB  string `yaml:"messages_db" envconfig:"messages_db"`   // message log SQLite path
	LogLevel    string `yaml:"log_level" envconfig:"log_level"`       // debug, info, warn, error
	LogFormat   string `yaml:"log_format" envconfig:"log_format"`     // text or json
	MOTD        string `yaml:"motd" envconfig:"motd"`                 // greeting line sent after auth (empty = none)
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        ":55555",
		MetricsAddr: ":55556",
		AccountsDB:  "userdata.db",
		MessagesDB:  "chatdata.db",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// CHAT_* environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
		if err != nil {
			return Config{}, fmt.Errorf("server: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("server: parse config: %w", err)
		}
	}

	if err := envconfig.Process("chat", &cfg); err != nil {
		return Config{}, fmt.Errorf("server: env config: %w", err)
	}
	return cfg, nil
}
