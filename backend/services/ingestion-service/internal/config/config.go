package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"iotdashboard/backend/libs/awsconfig"
	libconfig "iotdashboard/backend/libs/config"
	"iotdashboard/backend/libs/db"
	"iotdashboard/backend/libs/mqtt"
	"iotdashboard/backend/libs/redis"
	"iotdashboard/backend/libs/telemetry"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendDynamo   = "dynamodb"
)

// Notifier kinds.
const (
	NotifierNone    = "none"
	NotifierWebhook = "webhook"
	NotifierSNS     = "sns"
)

// Config defines ingestion service configuration.
type Config struct {
	HTTP struct {
		Port          string `yaml:"port" env:"INGEST_HTTP_PORT"`
		IngestKeyHash string `yaml:"ingestKeyHash" env:"INGEST_HTTP_KEY_HASH"`
	} `yaml:"http"`
	Backend  string `yaml:"backend" env:"INGEST_BACKEND"`
	Database struct {
		DSN             string         `yaml:"dsn" env:"INGEST_POSTGRES_DSN"`
		Pool            db.PoolOptions `yaml:"pool" env:"INGEST_POSTGRES_POOL"`
		Retention       time.Duration  `yaml:"retention" env:"INGEST_POSTGRES_RETENTION"`
		CleanupInterval time.Duration  `yaml:"cleanupInterval" env:"INGEST_POSTGRES_CLEANUP_INTERVAL"`
	} `yaml:"database"`
	Redis struct {
		redis.Options `yaml:",inline"`
		Prefix        string `yaml:"prefix" env:"INGEST_REDIS_PREFIX"`
	} `yaml:"redis" env:"INGEST_REDIS"`
	AWS    awsconfig.Options `yaml:"aws" env:"INGEST_AWS"`
	Dynamo struct {
		SeriesTable string        `yaml:"seriesTable" env:"INGEST_DYNAMO_SERIES_TABLE"`
		StatusTable string        `yaml:"statusTable" env:"INGEST_DYNAMO_STATUS_TABLE"`
		TTL         time.Duration `yaml:"ttl" env:"INGEST_DYNAMO_TTL"`
	} `yaml:"dynamo"`
	MQTT struct {
		Enabled      bool   `yaml:"enabled" env:"INGEST_MQTT_ENABLED"`
		mqtt.Options `yaml:",inline"`
		Topic        string `yaml:"topic" env:"INGEST_MQTT_TOPIC"`
		QoS          uint8  `yaml:"qos" env:"INGEST_MQTT_QOS"`
	} `yaml:"mqtt" env:"INGEST_MQTT"`
	Fanout struct {
		WriteTimeout time.Duration `yaml:"writeTimeout" env:"INGEST_WRITE_TIMEOUT"`
	} `yaml:"fanout"`
	Notify struct {
		Kind       string        `yaml:"kind" env:"INGEST_NOTIFY_KIND"`
		Policy     string        `yaml:"policy" env:"INGEST_NOTIFY_POLICY"`
		Message    string        `yaml:"message" env:"INGEST_NOTIFY_MESSAGE"`
		WebhookURL string        `yaml:"webhookUrl" env:"INGEST_NOTIFY_WEBHOOK_URL"`
		TopicARN   string        `yaml:"topicArn" env:"INGEST_NOTIFY_TOPIC_ARN"`
		Timeout    time.Duration `yaml:"timeout" env:"INGEST_NOTIFY_TIMEOUT"`
	} `yaml:"notify"`
	Thresholds telemetry.Thresholds `yaml:"thresholds" env:"INGEST_THRESHOLDS"`
	Location   struct {
		telemetry.LocationConfig `yaml:",inline"`
		Zone                     string `yaml:"zone" env:"INGEST_LOCATION_ZONE"`
	} `yaml:"location" env:"INGEST_LOCATION"`
}

// Defaults returns configuration before file and env overrides.
func Defaults() *Config {
	cfg := &Config{Backend: BackendPostgres}
	cfg.HTTP.Port = "8085"
	cfg.Database.CleanupInterval = time.Hour
	cfg.Redis.Addr = "localhost:6379"
	cfg.Dynamo.SeriesTable = "DeviceTimeSeries"
	cfg.Dynamo.StatusTable = "DeviceStatus"
	cfg.MQTT.Topic = telemetry.PayloadTopicFilter
	cfg.MQTT.QoS = 1
	cfg.Fanout.WriteTimeout = 5 * time.Second
	cfg.Notify.Kind = NotifierNone
	cfg.Thresholds = telemetry.DefaultThresholds()
	cfg.Location.LocationConfig = telemetry.DefaultLocationConfig()
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

// Validate checks required fields for the selected backend and notifier.
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
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	switch strings.ToLower(strings.TrimSpace(c.Notify.Kind)) {
	case "", NotifierNone:
	case NotifierWebhook:
		if c.Notify.WebhookURL == "" {
			return errors.New("config: notify webhook url required")
		}
	case NotifierSNS:
		if c.Notify.TopicARN == "" {
			return errors.New("config: notify topic arn required")
		}
	default:
		return fmt.Errorf("config: unknown notifier %q", c.Notify.Kind)
	}

	if c.MQTT.Enabled && strings.TrimSpace(c.MQTT.BrokerURL) == "" {
		return errors.New("config: mqtt broker url required")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt qos %d out of range", c.MQTT.QoS)
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// Zone resolves the time zone used for synthesized ISO timestamps.
func (c *Config) Zone() (*time.Location, error) {
	if strings.TrimSpace(c.Location.Zone) == "" {
		return time.Local, nil
	}
	zone, err := time.LoadLocation(c.Location.Zone)
	if err != nil {
		return nil, fmt.Errorf("config: location zone: %w", err)
	}
	return zone, nil
}
