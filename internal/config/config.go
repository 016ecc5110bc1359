package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Agent   AgentConfig   `mapstructure:"agent"`
	UI      UIConfig      `mapstructure:"ui"`
	History HistoryConfig `mapstructure:"history"`
	Log     LogConfig     `mapstructure:"log"`
}

type AgentConfig struct {
	Address string `mapstructure:"address"`
}

type UIConfig struct {
	Theme        string `mapstructure:"theme"`
	MouseEnabled bool   `mapstructure:"mouse_enabled"`
}

type HistoryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxEntries int    `mapstructure:"max_entries"`
}

type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// GetDefaults returns a Config with all default values
func GetDefaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Address: "127.0.0.1:9224",
		},
		UI: UIConfig{
			Theme:        "default",
			MouseEnabled: true,
		},
		History: HistoryConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from files
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// User config directory first, then the working directory
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "dbscope"))
	}
	v.AddConfigPath(".")

	v.SetDefault("agent.address", "127.0.0.1:9224")
	v.SetDefault("ui.theme", "default")
	v.SetDefault("ui.mouse_enabled", true)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.max_entries", 1000)
	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")

	// A missing config file is fine, the defaults cover everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// GetConfigPath returns the user config directory path
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "dbscope"), nil
}

// HistoryPath resolves the history database location, defaulting to the user
// config directory.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// LogPath resolves the log file location, defaulting to the user config
// directory. Logs go to a file because stdout belongs to the TUI.
func (c *Config) LogPath() (string, error) {
	if c.Log.Path != "" {
		return c.Log.Path, nil
	}
	dir, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dbscope.log"), nil
}
