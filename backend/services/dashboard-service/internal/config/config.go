package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"iotdashboard/backend/libs/awsconfig"
	libconfig "iotdashboard/backend/libs/config"
	"iotdashboard/backend/libs/db"
	"iotdashboard/backend/libs/redis"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamodb"
)

// Config defines dashboard service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"DASHBOARD_HTTP_PORT"`
	} `yaml:"http"`
	Backend  string `yaml:"backend" env:"DASHBOARD_BACKEND"`
	Database struct {
		DSN  string         `yaml:"dsn" env:"DASHBOARD_POSTGRES_DSN"`
		Pool db.PoolOptions `yaml:"pool" env:"DASHBOARD_POSTGRES_POOL"`
	} `yaml:"database"`
	Redis struct {
		redis.Options `yaml:",inline"`
		Prefix        string `yaml:"prefix" env:"DASHBOARD_REDIS_PREFIX"`
	} `yaml:"redis" env:"DASHBOARD_REDIS"`
	AWS    awsconfig.Options `yaml:"aws" env:"DASHBOARD_AWS"`
	Dynamo struct {
		SeriesTable string `yaml:"seriesTable" env:"DASHBOARD_DYNAMO_SERIES_TABLE"`
		StatusTable string `yaml:"statusTable" env:"DASHBOARD_DYNAMO_STATUS_TABLE"`
	} `yaml:"dynamo"`
	Query struct {
		Window time.Duration `yaml:"window" env:"DASHBOARD_QUERY_WINDOW"`
		Limit  int           `yaml:"limit" env:"DASHBOARD_QUERY_LIMIT"`
	} `yaml:"query"`
	Auth struct {
		Enabled  bool              `yaml:"enabled" env:"DASHBOARD_AUTH_ENABLED"`
		Secret   string            `yaml:"secret" env:"DASHBOARD_AUTH_SECRET"`
		TokenTTL time.Duration     `yaml:"tokenTtl" env:"DASHBOARD_AUTH_TOKEN_TTL"`
		Users    map[string]string `yaml:"users" env:"DASHBOARD_AUTH_USERS"`
	} `yaml:"auth"`
	Live struct {
		Enabled      bool          `yaml:"enabled" env:"DASHBOARD_LIVE_ENABLED"`
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"DASHBOARD_LIVE_WRITE_TIMEOUT"`
		PingInterval time.Duration `yaml:"pingInterval" env:"DASHBOARD_LIVE_PING_INTERVAL"`
	} `yaml:"live"`
}

// Defaults returns configuration before file and env overrides.
func Defaults() *Config {
	cfg := &Config{Backend: BackendPostgres}
	cfg.HTTP.Port = "8086"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Dynamo.SeriesTable = "DeviceTimeSeries"
	cfg.Dynamo.StatusTable = "DeviceStatus"
	cfg.Query.Window = 300 * time.Second
	cfg.Auth.TokenTTL = time.Hour
	cfg.Live.WriteTimeout = 10 * time.Second
	cfg.Live.PingInterval = 30 * time.Second
	return cfg
}

// Load configuration using shared helper.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields for the selected backend.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("config: redis addr required")
		}
	case BackendDynamo:
		if c.Dynamo.SeriesTable == "" || c.Dynamo.StatusTable == "" {
			return errors.New("config: dynamo table names required")
		}
		if c.Live.Enabled {
			return errors.New("config: live updates need the redis status store")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	if c.Query.Limit < 0 {
		return errors.New("config: query limit must not be negative")
	}
	if c.Auth.Enabled {
		if strings.TrimSpace(c.Auth.Secret) == "" {
			return errors.New("config: auth secret required")
		}
		if len(c.Auth.Users) == 0 {
			return errors.New("config: auth users required")
		}
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8086"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
