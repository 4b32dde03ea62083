package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	APIURL          string `mapstructure:"api_url"`
	RelayURL        string `mapstructure:"relay_url"`
	Area            string `mapstructure:"area"`
	ProjectID       string `mapstructure:"project_id"`
	LogLevel        string `mapstructure:"log_level"`
	LogFile         string `mapstructure:"log_file"`
	KeyringDir      string `mapstructure:"keyring_dir"`
	KeyringPassword string `mapstructure:"keyring_password"`
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "portal-watch")
}

func defaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// loadConfig reads the YAML file at path. A missing file is fine; every key
// can also come from PORTAL_<KEY>, e.g. PORTAL_API_URL.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("api_url", "http://localhost:3001")
	v.SetDefault("relay_url", "ws://localhost:8080/ws")
	v.SetDefault("area", "home")
	v.SetDefault("project_id", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("keyring_dir", filepath.Join(configDir(), "keyring"))
	v.SetDefault("keyring_password", "portal-watch-file-key")

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
