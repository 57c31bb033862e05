package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigPathEnv overrides the config file location when no path is given.
const ConfigPathEnv = "TILEBRIDGE_CONFIG_FILE"

// Loader handles configuration loading with Viper.
type Loader struct {
	viper *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(Home())
	v.AddConfigPath(".")

	v.SetEnvPrefix("TILEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v}
}

// Load loads the configuration from file and environment variables.
// If configPath is empty, TILEBRIDGE_CONFIG_FILE and then the default search
// paths are used. A missing file is created with default values.
func (l *Loader) Load(configPath string) (*Config, error) {
	if err := l.setDefaults(DefaultConfig()); err != nil {
		return nil, err
	}

	if strings.TrimSpace(configPath) == "" {
		configPath = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	if configPath != "" {
		resolved, err := resolveConfigPath(configPath)
		if err != nil {
			return nil, err
		}
		l.viper.SetConfigFile(resolved)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		path, err := resolveConfigPath(configPath)
		if err != nil {
			return nil, err
		}
		if err := l.Save(path, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("creating config file: %w", err)
		}
		l.viper.SetConfigFile(path)
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading created config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.normalizePaths()

	return cfg, nil
}

// setDefaults registers every leaf of d as a viper default so that both the
// file and TILEBRIDGE_* variables can override any single key.
func (l *Loader) setDefaults(d *Config) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling defaults: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshaling defaults: %w", err)
	}
	for key, value := range Flatten(tree) {
		l.viper.SetDefault(key, value)
	}
	return nil
}

// Save saves the configuration to a file. The format follows the extension.
func (l *Loader) Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	format := "json"
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".toml":
		format = "toml"
	}

	v := viper.New()
	v.SetConfigType(format)
	v.Set("logger", cfg.Logger)
	v.Set("state", cfg.State)
	v.Set("redis", cfg.Redis)
	v.Set("gateway", cfg.Gateway)
	v.Set("tiling", cfg.Tiling)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveToFile is a convenience function to save config without creating a Loader.
func SaveToFile(cfg *Config, path string) error {
	return NewLoader().Save(path, cfg)
}

// GetConfigPath returns the path of the loaded config file.
func (l *Loader) GetConfigPath() string {
	return l.viper.ConfigFileUsed()
}

func resolveConfigPath(configPath string) (string, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = filepath.Join(Home(), "config.json")
	}
	abs, err := filepath.Abs(expandPath(path))
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}
