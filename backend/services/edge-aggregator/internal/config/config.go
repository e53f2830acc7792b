package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "iotdashboard/backend/libs/config"
	"iotdashboard/backend/libs/mqtt"
	"iotdashboard/backend/libs/telemetry"
)

// Config defines edge aggregator configuration.
type Config struct {
	Edge struct {
		mqtt.Options `yaml:",inline"`
		Topic        string `yaml:"topic" env:"EDGE_SOURCE_TOPIC"`
	} `yaml:"edge" env:"EDGE_SOURCE"`
	Cloud struct {
		mqtt.Options `yaml:",inline"`
	} `yaml:"cloud" env:"EDGE_CLOUD"`
	QoS          uint8         `yaml:"qos" env:"EDGE_QOS"`
	Passthrough  bool          `yaml:"passthrough" env:"EDGE_PASSTHROUGH"`
	Window       time.Duration `yaml:"window" env:"EDGE_WINDOW"`
	FlushTimeout time.Duration `yaml:"flushTimeout" env:"EDGE_FLUSH_TIMEOUT"`
	Location     struct {
		telemetry.LocationConfig `yaml:",inline"`
		Zone                     string `yaml:"zone" env:"EDGE_LOCATION_ZONE"`
	} `yaml:"location" env:"EDGE_LOCATION"`
}

// Defaults returns configuration before file and env overrides.
func Defaults() *Config {
	cfg := &Config{
		QoS:          1,
		Window:       10 * time.Second,
		FlushTimeout: 5 * time.Second,
	}
	cfg.Edge.BrokerURL = "tcp://localhost:1883"
	cfg.Edge.Topic = telemetry.PayloadTopicFilter
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

// Validate checks broker settings. Forwarding to the broker the records were
// read from on a matching topic would loop forever.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Edge.BrokerURL) == "" {
		return errors.New("config: edge broker url required")
	}
	if strings.TrimSpace(c.Cloud.BrokerURL) == "" {
		return errors.New("config: cloud broker url required")
	}
	if strings.TrimSpace(c.Edge.Topic) == "" {
		return errors.New("config: edge topic required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("config: qos %d out of range", c.QoS)
	}
	if c.Edge.BrokerURL == c.Cloud.BrokerURL && mqtt.TopicMatches(c.Edge.Topic, telemetry.PayloadTopic("any")) {
		return errors.New("config: edge topic would receive forwarded records")
	}
	return nil
}

// WindowOrZero returns the buffering window, zero in passthrough mode.
func (c *Config) WindowOrZero() time.Duration {
	if c.Passthrough {
		return 0
	}
	return c.Window
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
