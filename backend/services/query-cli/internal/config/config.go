package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"iotdashboard/backend/libs/awsconfig"
	libconfig "iotdashboard/backend/libs/config"
	"iotdashboard/backend/libs/db"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamodb"
)

// Config holds store connection settings. Query parameters come from flags.
type Config struct {
	Backend  string `yaml:"backend" env:"QUERY_BACKEND"`
	Database struct {
		DSN  string         `yaml:"dsn" env:"QUERY_POSTGRES_DSN"`
		Pool db.PoolOptions `yaml:"pool" env:"QUERY_POSTGRES_POOL"`
	} `yaml:"database"`
	AWS    awsconfig.Options `yaml:"aws" env:"QUERY_AWS"`
	Dynamo struct {
		SeriesTable string `yaml:"seriesTable" env:"QUERY_DYNAMO_SERIES_TABLE"`
	} `yaml:"dynamo"`
	Timeout time.Duration `yaml:"timeout" env:"QUERY_TIMEOUT"`
}

// Defaults returns configuration before file and env overrides.
func Defaults() *Config {
	cfg := &Config{Backend: BackendPostgres, Timeout: 30 * time.Second}
	cfg.Dynamo.SeriesTable = "DeviceTimeSeries"
	return cfg
}

// Load configuration using shared helper.
func Load() (*Config, error) {
	cfg := Defaults()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the selected backend's settings.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case BackendPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	case BackendDynamo:
		if c.Dynamo.SeriesTable == "" {
			return errors.New("config: dynamo series table required")
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	return nil
}
