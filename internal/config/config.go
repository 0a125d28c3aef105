package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

type RuntimeConfig struct {
	Store                string `yaml:"store"`
	SQLiteDriver         string `yaml:"sqlite_driver"`
	DBPath               string `yaml:"db_path"`
	StateDir             string `yaml:"state_dir"`
	PollIntervalSeconds  int    `yaml:"poll_interval_seconds"`
	DesktopNotifications bool   `yaml:"desktop_notifications"`
	DefaultSnoozeMinutes int    `yaml:"default_snooze_minutes"`
	LogFile              string `yaml:"log_file"`
	LogLevel             string `yaml:"log_level"`
}

func DefaultRuntimeConfig() RuntimeConfig {
	home := defaultHome()
	return RuntimeConfig{
		Store:                StoreSQLite,
		SQLiteDriver:         "sqlite3",
		DBPath:               filepath.Join(home, "sopd.db"),
		StateDir:             filepath.Join(home, "state"),
		PollIntervalSeconds:  30,
		DesktopNotifications: true,
		DefaultSnoozeMinutes: 10,
		LogFile:              filepath.Join(home, "sopd.log"),
		LogLevel:             "INFO",
	}
}

func defaultHome() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "sopd")
	}
	return ".sopd"
}

// LoadFile overlays the YAML file at path onto base. A missing file is not an error.
func LoadFile(path string, base RuntimeConfig) (RuntimeConfig, error) {
	cfg := base
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func RuntimeConfigFromEnv(base RuntimeConfig) RuntimeConfig {
	cfg := base
	if v := getEnv("SOPD_STORE"); v != "" {
		cfg.Store = strings.ToLower(v)
	}
	if v := getEnv("SOPD_SQLITE_DRIVER"); v != "" {
		cfg.SQLiteDriver = v
	}
	if v := getEnv("SOPD_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getEnv("SOPD_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v, ok := getEnvInt("SOPD_POLL_INTERVAL_SECONDS"); ok && v > 0 {
		cfg.PollIntervalSeconds = v
	}
	if v, ok := getEnvBool("SOPD_DESKTOP_NOTIFICATIONS"); ok {
		cfg.DesktopNotifications = v
	}
	if v, ok := getEnvInt("SOPD_DEFAULT_SNOOZE_MINUTES"); ok && v > 0 {
		cfg.DefaultSnoozeMinutes = v
	}
	if v := getEnv("SOPD_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := getEnv("SOPD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// Load resolves defaults, then the config file, then the environment.
func Load(path string) (RuntimeConfig, error) {
	if path == "" {
		path = getEnv("SOPD_CONFIG")
	}
	if path == "" {
		path = filepath.Join(defaultHome(), "config.yaml")
	}
	cfg, err := LoadFile(path, DefaultRuntimeConfig())
	if err != nil {
		return cfg, err
	}
	cfg = RuntimeConfigFromEnv(cfg)
	return cfg, cfg.Validate()
}

func (c RuntimeConfig) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreFile:
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("config: poll interval must be positive, got %d", c.PollIntervalSeconds)
	}
	return nil
}

func (c RuntimeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c RuntimeConfig) SlogLevel() slog.Level {
	return ParseLogLevel(c.LogLevel)
}

func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func getEnvInt(name string) (int, bool) {
	raw := getEnv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func getEnvBool(name string) (bool, bool) {
	raw := strings.ToLower(getEnv(name))
	if raw == "" {
		return false, false
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
