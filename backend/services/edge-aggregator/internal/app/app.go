package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/mqtt"
	"iotdashboard/backend/libs/telemetry"
	"iotdashboard/backend/services/edge-aggregator/internal/aggregator"
	"iotdashboard/backend/services/edge-aggregator/internal/config"
)

// App wires the edge and cloud broker connections around the aggregator.
type App struct {
	cfg        *config.Config
	edge       *mqtt.Client
	cloud      *mqtt.Client
	aggregator *aggregator.Aggregator
	logger     *zap.Logger
}

// New connects to both brokers.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	zone, err := cfg.Zone()
	if err != nil {
		return nil, err
	}

	cloudOpts := cfg.Cloud.Options
	if cloudOpts.ClientID == "" {
		cloudOpts.ClientID = mqtt.ClientID("edge-cloud")
	}
	cloud, err := mqtt.Dial(ctx, cloudOpts, logger.Named("cloud"))
	if err != nil {
		return nil, fmt.Errorf("app: cloud broker: %w", err)
	}

	edgeOpts := cfg.Edge.Options
	if edgeOpts.ClientID == "" {
		edgeOpts.ClientID = mqtt.ClientID("edge-source")
	}
	edge, err := mqtt.Dial(ctx, edgeOpts, logger.Named("edge"))
	if err != nil {
		_ = cloud.Close()
		return nil, fmt.Errorf("app: edge broker: %w", err)
	}

	normalizer := telemetry.NewNormalizer(telemetry.NewLocationTable(cfg.Location.LocationConfig, nil), telemetry.WithZone(zone))
	agg := aggregator.New(normalizer, cloud, aggregator.Options{Window: cfg.WindowOrZero(), QoS: cfg.QoS}, logger)

	return &App{cfg: cfg, edge: edge, cloud: cloud, aggregator: agg, logger: logger}, nil
}

// Run forwards records until ctx is done, then flushes what is buffered.
func (a *App) Run(ctx context.Context) error {
	if err := a.edge.Subscribe(ctx, a.cfg.Edge.Topic, a.cfg.QoS, a.aggregator.HandleMessage); err != nil {
		return err
	}
	a.logger.Info("edge aggregator running",
		zap.String("topic", a.cfg.Edge.Topic),
		zap.Duration("window", a.cfg.WindowOrZero()))
	return a.aggregator.Run(ctx, a.cfg.FlushTimeout)
}

// Close disconnects both brokers.
func (a *App) Close() {
	if err := a.edge.Close(); err != nil {
		a.logger.Warn("failed to close edge connection", zap.Error(err))
	}
	if err := a.cloud.Close(); err != nil {
		a.logger.Warn("failed to close cloud connection", zap.Error(err))
	}
}
