package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	xdgAppName = "taskflow"
	configFile = "config.json"

	StorageFile   = "file"
	StorageSQLite = "sqlite"

	defaultCalendar   = "Tasks"
	defaultUndoWindow = 3 * time.Second
)

type Config struct {
	Calendar   string        `json:"calendar" mapstructure:"calendar"`
	Storage    string        `json:"storage" mapstructure:"storage"`
	DataDir    string        `json:"data_dir,omitempty" mapstructure:"data_dir"`
	UndoWindow time.Duration `json:"undo_window" mapstructure:"undo_window"`

	path string
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Calendar:   defaultCalendar,
		Storage:    StorageFile,
		UndoWindow: defaultUndoWindow,
	}
}

// Dir is ~/.config/taskflow.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config file at the default path.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads path, falling back to defaults for a missing file or
// missing keys. TASKFLOW_* environment variables override file values
// (TASKFLOW_CALENDAR, TASKFLOW_STORAGE, TASKFLOW_DATA_DIR,
// TASKFLOW_UNDO_WINDOW).
func LoadFrom(path string) (*Config, error) {
	def := Default()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("TASKFLOW")
	v.AutomaticEnv()
	v.SetDefault("calendar", def.Calendar)
	v.SetDefault("storage", def.Storage)
	v.SetDefault("data_dir", "")
	v.SetDefault("undo_window", def.UndoWindow.String())

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Calendar == "" {
		cfg.Calendar = defaultCalendar
	}
	if cfg.Storage != StorageFile && cfg.Storage != StorageSQLite {
		return nil, fmt.Errorf("unknown storage backend %q (want %s or %s)", cfg.Storage, StorageFile, StorageSQLite)
	}
	if cfg.UndoWindow < 0 {
		cfg.UndoWindow = defaultUndoWindow
	}
	cfg.path = path
	return cfg, nil
}

// HomeDir is the directory of the config file this Config was loaded
// from, or the default directory for one built in memory. OAuth
// credentials and the token live there.
func (c *Config) HomeDir() (string, error) {
	if c.path != "" {
		return filepath.Dir(c.path), nil
	}
	return Dir()
}

// ResolveDataDir returns where task data lives: DataDir if set, otherwise
// HomeDir.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	return c.HomeDir()
}

func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

func SaveTo(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg)
}
