package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"taskBoard/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultPath = "config.yml"
	EnvPrefix   = "TASKBOARD"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Scan       ScanConfig       `mapstructure:"scan"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig: пустой Addr значит работу без Redis (локальные подписки и аренды).
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Leeway   time.Duration `mapstructure:"leeway"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type RepositoryConfig struct {
	Type string `mapstructure:"type"` // "postgres" или "inmemory"
}

type ScanConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	LeaseTTL    time.Duration `mapstructure:"lease_ttl"`
	Parallelism int           `mapstructure:"parallelism"`
}

var defaults = map[string]any{
	"server.port":              "8080",
	"server.host":              "",
	"server.read_timeout":      "15s",
	"server.shutdown_timeout":  "10s",
	"server.rate_limit":        100,
	"server.cors_origins":      []string{"*"},
	"database.url":             "",
	"database.max_connections": 10,
	"database.min_connections": 2,
	"database.idle_timeout":    "5m",
	"database.connect_timeout": "30s",
	"redis.addr":               "",
	"redis.password":           "",
	"redis.db":                 0,
	"redis.cache_ttl":          "10m",
	"auth.secret":              "",
	"auth.issuer":              "taskboard",
	"auth.leeway":              "30s",
	"auth.token_ttl":           "24h",
	"logging.development":      false,
	"repository.type":          "inmemory",
	"scan.interval":            "30m",
	"scan.lease_ttl":           "5m",
	"scan.parallelism":         4,
}

// Source - конфиг, прочитанный viper: файл, затем TASKBOARD_* из окружения, затем значения по умолчанию.
type Source struct {
	v *viper.Viper
}

// Open читает файл конфига. Отсутствие файла по умолчанию не ошибка.
func Open(path string) (*Source, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return &Source{v: v}, nil
		}
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
	}
	return &Source{v: v}, nil
}

func (s *Source) Config() (*Config, error) {
	var cfg Config
	if err := s.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("разбор конфига: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch вызывает onChange с новым конфигом после каждого изменения файла.
// Невалидный файл логируется и пропускается.
func (s *Source) Watch(onChange func(*Config)) {
	s.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := s.Config()
		if err != nil {
			logger.Error("Config: Изменённый конфиг отклонён", err, zap.String("file", e.Name))
			return
		}
		logger.Info("Config: Конфиг перечитан", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		onChange(cfg)
	})
	s.v.WatchConfig()
}

func Load(path string) (*Config, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	return s.Config()
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case "inmemory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url обязателен для repository.type=postgres")
		}
	default:
		return fmt.Errorf("неизвестный repository.type %q", c.Repository.Type)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret обязателен")
	}
	if c.Scan.Interval <= 0 {
		return fmt.Errorf("scan.interval должен быть положительным")
	}
	return nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
