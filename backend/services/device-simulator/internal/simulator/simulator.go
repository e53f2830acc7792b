package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/mqtt"
	"iotdashboard/backend/libs/telemetry"
	"iotdashboard/backend/services/device-simulator/internal/generator"
)

// Modes.
const (
	ModeDemo      = "demo"
	ModePublish   = "publish"
	ModeSubscribe = "subscribe"
	ModeBoth      = "both"
)

// ParseMode validates a mode name.
func ParseMode(raw string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case "":
		return ModeDemo, nil
	case ModeDemo, ModePublish, ModeSubscribe, ModeBoth:
		return mode, nil
	default:
		return "", fmt.Errorf("simulator: unknown mode %q, must be one of demo, publish, subscribe, both", raw)
	}
}

// Broker is the MQTT surface the simulator needs.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error
	Subscribe(ctx context.Context, filter string, qos byte, handler mqtt.Handler) error
}

// Options configures a run.
type Options struct {
	Devices  []string
	Interval time.Duration
	Topic    string
	Message  string
	QoS      byte
}

// TestMessage is published in publish mode.
type TestMessage struct {
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
}

// Simulator stands in for the device fleet.
type Simulator struct {
	broker    Broker
	generator *generator.Generator
	opts      Options
	out       io.Writer
	logger    *zap.Logger
}

// New returns simulator. Received messages and published readings are
// echoed to out.
func New(broker Broker, gen *generator.Generator, opts Options, out io.Writer, logger *zap.Logger) *Simulator {
	if len(opts.Devices) == 0 {
		opts.Devices = telemetry.KnownDevices
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Message == "" {
		opts.Message = "Hello World!"
	}
	return &Simulator{broker: broker, generator: gen, opts: opts, out: out, logger: logger}
}

// Run blocks in mode until ctx is done or a publish fails.
func (s *Simulator) Run(ctx context.Context, mode string) error {
	switch mode {
	case ModeDemo:
		return s.runDemo(ctx)
	case ModePublish:
		return s.runPublish(ctx)
	case ModeSubscribe:
		if err := s.subscribe(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	case ModeBoth:
		if err := s.subscribe(ctx); err != nil {
			return err
		}
		return s.runPublish(ctx)
	default:
		return fmt.Errorf("simulator: unknown mode %q", mode)
	}
}

func (s *Simulator) runDemo(ctx context.Context) error {
	return s.every(ctx, func() error {
		for _, id := range s.opts.Devices {
			payload, err := json.Marshal(s.generator.Reading(id))
			if err != nil {
				return err
			}
			topic := telemetry.PayloadTopic(id)
			if err := s.broker.Publish(ctx, topic, payload, s.opts.QoS); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Published topic %s: %s\n", topic, payload)
		}
		return nil
	})
}

func (s *Simulator) runPublish(ctx context.Context) error {
	seq := 0
	return s.every(ctx, func() error {
		payload, err := json.Marshal(TestMessage{Message: s.opts.Message, Sequence: seq})
		if err != nil {
			return err
		}
		if err := s.broker.Publish(ctx, s.opts.Topic, payload, s.opts.QoS); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Published topic %s: %s\n", s.opts.Topic, payload)
		seq++
		return nil
	})
}

func (s *Simulator) subscribe(ctx context.Context) error {
	return s.broker.Subscribe(ctx, s.opts.Topic, s.opts.QoS, func(_ context.Context, topic string, payload []byte) {
		fmt.Fprintf(s.out, "Received message on topic %s: %s\n", topic, payload)
	})
}

// every runs fn immediately and then once per interval.
func (s *Simulator) every(ctx context.Context, fn func() error) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		if err := fn(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("publish failed", zap.Error(err))
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
