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

// Config defines device simulator configuration. Command line flags
// override the loaded values.
type Config struct {
	MQTT struct {
		mqtt.Options `yaml:",inline"`
		QoS          uint8 `yaml:"qos" env:"SIM_MQTT_QOS"`
	} `yaml:"mqtt" env:"SIM_MQTT"`
	Mode     string        `yaml:"mode" env:"SIM_MODE"`
	Devices  []string      `yaml:"devices" env:"SIM_DEVICES"`
	Interval time.Duration `yaml:"interval" env:"SIM_INTERVAL"`
	Topic    string        `yaml:"topic" env:"SIM_TOPIC"`
	Message  string        `yaml:"message" env:"SIM_MESSAGE"`
}

// Defaults returns configuration before file and env overrides.
func Defaults() *Config {
	cfg := &Config{
		Mode:     "demo",
		Devices:  append([]string(nil), telemetry.KnownDevices...),
		Interval: time.Second,
		Topic:    "sdk/test/go",
		Message:  "Hello World!",
	}
	cfg.MQTT.BrokerURL = "tcp://localhost:1883"
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

// Validate checks the merged configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.MQTT.BrokerURL) == "" {
		return errors.New("config: mqtt broker url required")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt qos %d out of range", c.MQTT.QoS)
	}
	if c.Interval <= 0 {
		return errors.New("config: interval must be positive")
	}
	if len(c.Devices) == 0 {
		return errors.New("config: at least one device required")
	}
	return nil
}
