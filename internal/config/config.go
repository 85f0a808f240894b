package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

var (
	ErrEmptyBaseURL    = errors.New("joke service base url is required")
	ErrInvalidBaseURL  = errors.New("joke service base url must be an absolute http(s) url")
	ErrEmptyBotToken   = errors.New("telegram bot token is required")
	ErrInvalidInterval = errors.New("background interval must be at least one hour")
	ErrUnknownDriver   = errors.New("unknown store driver")
)

// MinimumBackgroundInterval is the shortest period the scheduler accepts.
const MinimumBackgroundInterval = time.Hour

type Config struct {
	App        AppConfig        `yaml:"app" env-prefix:"APP_"`
	Service    ServiceConfig    `yaml:"service" env-prefix:"JOKE_API_"`
	Store      StoreConfig      `yaml:"store" env-prefix:"STORE_"`
	Database   DatabaseConfig   `yaml:"database" env-prefix:"DB_"`
	Bot        BotConfig        `yaml:"bot" env-prefix:"BOT_"`
	Background BackgroundConfig `yaml:"background" env-prefix:"BACKGROUND_"`
	Notifier   NotifierConfig   `yaml:"notifier" env-prefix:"NOTIFY_"`
	NATS       NATSConfig       `yaml:"nats" env-prefix:"NATS_"`
	Health     HealthConfig     `yaml:"health" env-prefix:"HEALTH_"`
}

type AppConfig struct {
	Name        string `yaml:"name" env:"NAME" env-default:"papa-puns"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"production"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
}

type ServiceConfig struct {
	URL       string `yaml:"url" env:"URL"`
	UserAgent string `yaml:"user_agent" env:"USER_AGENT" env-default:"Papa Puns (https://github.com/vdumitraskovic/papa-puns)"`
}

type StoreDriver string

const (
	DriverPostgres StoreDriver = "postgres"
	DriverSQLite   StoreDriver = "sqlite"
	DriverFile     StoreDriver = "file"
	DriverMemory   StoreDriver = "memory"
)

type StoreConfig struct {
	Driver StoreDriver `yaml:"driver" env:"DRIVER" env-default:"file"`
	Path   string      `yaml:"path" env:"PATH"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PORT" env-default:"5432"`
	User           string `yaml:"user" env:"USER" env-default:"papapuns"`
	Password       string `yaml:"password" env:"PASSWORD"`
	Name           string `yaml:"name" env:"NAME" env-default:"papapuns"`
	MaxConnections int    `yaml:"max_connections" env:"MAX_CONNECTIONS" env-default:"5"`
	MinConnections int    `yaml:"min_connections" env:"MIN_CONNECTIONS" env-default:"1"`
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

type BotConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED" env-default:"false"`
	Token   string `yaml:"token" env:"TOKEN"`
}

type BackgroundConfig struct {
	Enabled         bool          `yaml:"enabled" env:"ENABLED" env-default:"true"`
	Interval        time.Duration `yaml:"interval" env:"INTERVAL" env-default:"1h"`
	StopOnTerminate bool          `yaml:"stop_on_terminate" env:"STOP_ON_TERMINATE" env-default:"false"`
	StartOnBoot     bool          `yaml:"start_on_boot" env:"START_ON_BOOT" env-default:"true"`
}

type NotifierConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED" env-default:"true"`
}

type NATSConfig struct {
	URL        string `yaml:"url" env:"URL" env-default:"nats://localhost:4222"`
	StreamName string `yaml:"stream_name" env:"STREAM_NAME" env-default:"PAPAPUNS"`
}

type HealthConfig struct {
	Port     int    `yaml:"port" env:"PORT" env-default:"8080"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT" env-default:"/healthz"`
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read reads an optional YAML file from CONFIG_PATH, then the environment,
// without validating. A .env file in the working directory is merged into
// the environment first.
func Read() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath != "" {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from %s: %w", configPath, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Service.URL == "" {
		return ErrEmptyBaseURL
	}
	u, err := url.Parse(c.Service.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}

	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite, DriverFile, DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Store.Driver)
	}

	if c.Background.Interval < MinimumBackgroundInterval {
		return ErrInvalidInterval
	}

	if c.Bot.Enabled && c.Bot.Token == "" {
		return ErrEmptyBotToken
	}

	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Database.Password != "" {
		c.Database.Password = "****"
	}
	if c.Bot.Token != "" {
		c.Bot.Token = "****"
	}
	return c
}
