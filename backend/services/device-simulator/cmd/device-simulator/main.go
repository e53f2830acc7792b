package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/logging"
	"iotdashboard/backend/libs/mqtt"
	"iotdashboard/backend/services/device-simulator/internal/config"
	"iotdashboard/backend/services/device-simulator/internal/generator"
	"iotdashboard/backend/services/device-simulator/internal/simulator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	flag.StringVar(&cfg.MQTT.BrokerURL, "endpoint", cfg.MQTT.BrokerURL, "broker url, e.g. tcp://localhost:1883 or mqtts://host:8883")
	flag.StringVar(&cfg.MQTT.CAFile, "rootCA", cfg.MQTT.CAFile, "root CA file path")
	flag.StringVar(&cfg.MQTT.CertFile, "cert", cfg.MQTT.CertFile, "client certificate file path")
	flag.StringVar(&cfg.MQTT.KeyFile, "key", cfg.MQTT.KeyFile, "client private key file path")
	flag.StringVar(&cfg.MQTT.ClientID, "thingName", cfg.MQTT.ClientID, "client id (random when empty)")
	flag.StringVar(&cfg.Topic, "topic", cfg.Topic, "topic for publish and subscribe modes")
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "operation mode: demo, publish, subscribe, both")
	flag.StringVar(&cfg.Message, "message", cfg.Message, "message to publish in publish mode")
	flag.Parse()

	mode, err := simulator.ParseMode(cfg.Mode)
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logging.NewCLILogger("device-simulator")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := cfg.MQTT.Options
	if opts.ClientID == "" {
		opts.ClientID = mqtt.ClientID("simulator")
	}
	client, err := mqtt.Dial(ctx, opts, logger.Named("mqtt"))
	if err != nil {
		logger.Fatal("cannot connect to broker", zap.String("broker", opts.BrokerURL), zap.Error(err))
	}
	defer client.Close()

	sim := simulator.New(client, generator.New(generator.DefaultRanges(), nil), simulator.Options{
		Devices:  cfg.Devices,
		Interval: cfg.Interval,
		Topic:    cfg.Topic,
		Message:  cfg.Message,
		QoS:      cfg.MQTT.QoS,
	}, os.Stdout, logger)

	logger.Info("simulator started", zap.String("mode", mode), zap.Strings("devices", cfg.Devices))
	if err := sim.Run(ctx, mode); err != nil {
		logger.Fatal("simulator stopped with error", zap.Error(err))
	}
}
