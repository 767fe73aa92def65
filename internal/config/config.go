package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"todoManager/internal/logger"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	StorageFile     = "file"
	StorageInMemory = "inmemory"
)

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Janitor JanitorConfig `mapstructure:"janitor"`
	Server  ServerConfig  `mapstructure:"server"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"` // "file" или "inmemory"
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

type JanitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type ServerConfig struct {
	Name      string `mapstructure:"name"`
	Version   string `mapstructure:"version"`
	RateLimit int    `mapstructure:"rate_limit_per_minute"` // 0 - без ограничения
}

var defaults = map[string]any{
	"storage.type":                 StorageFile,
	"storage.path":                 "~/.todos.yaml",
	"logging.level":                "info",
	"logging.format":               "console",
	"logging.file":                 "",
	"logging.development":          false,
	"logging.max_size_mb":          10,
	"logging.max_backups":          3,
	"logging.max_age_days":         28,
	"janitor.enabled":              true,
	"janitor.interval":             "10m",
	"janitor.max_age":              "1h",
	"server.name":                  "todo-list-manager",
	"server.version":               "1.0.0",
	"server.rate_limit_per_minute": 0,
}

// переменные окружения исходного сервера; TODO_* для любого ключа работает через AutomaticEnv
var envAliases = map[string][]string{
	"storage.path":        {"TODO_FILE", "TODO_STORAGE_PATH"},
	"logging.level":       {"LOG_LEVEL", "TODO_LOGGING_LEVEL"},
	"logging.format":      {"LOG_FORMAT", "TODO_LOGGING_FORMAT"},
	"logging.file":        {"LOG_FILE", "TODO_LOGGING_FILE"},
	"logging.development": {"LOG_DEVELOPMENT", "TODO_LOGGING_DEVELOPMENT"},
}

// Load собирает конфигурацию: значения по умолчанию, затем файл (если задан), затем окружение
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("TODO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("не могу прочитать %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Storage.Type == StorageFile {
		path, err := ExpandPath(c.Storage.Path)
		if err != nil {
			return fmt.Errorf("storage.path: %w", err)
		}
		c.Storage.Path = path
	}
	if c.Logging.File != "" {
		path, err := ExpandPath(c.Logging.File)
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		c.Logging.File = path
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for storage type %q", StorageFile)
		}
	case StorageInMemory:
	default:
		return fmt.Errorf("unknown storage.type %q: expected %q or %q", c.Storage.Type, StorageFile, StorageInMemory)
	}

	if _, err := zapcore.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("unknown logging.format %q: expected console or json", c.Logging.Format)
	}

	if c.Janitor.Enabled {
		if c.Janitor.Interval <= 0 {
			return fmt.Errorf("janitor.interval must be positive, got %s", c.Janitor.Interval)
		}
		if c.Janitor.MaxAge <= 0 {
			return fmt.Errorf("janitor.max_age must be positive, got %s", c.Janitor.MaxAge)
		}
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit_per_minute must not be negative, got %d", c.Server.RateLimit)
	}
	return nil
}

func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:       c.Logging.Level,
		Format:      c.Logging.Format,
		File:        c.Logging.File,
		Development: c.Logging.Development,
		MaxSizeMB:   c.Logging.MaxSizeMB,
		MaxBackups:  c.Logging.MaxBackups,
		MaxAgeDays:  c.Logging.MaxAgeDays,
	}
}

// ExpandPath раскрывает ~ и делает путь абсолютным
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return abs, nil
}
