package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	libhttp "iotdashboard/backend/libs/httpserver"
	"iotdashboard/backend/libs/mqtt"
	"iotdashboard/backend/libs/password"
	"iotdashboard/backend/libs/telemetry"
	"iotdashboard/backend/services/ingestion-service/internal/config"
	httpserver "iotdashboard/backend/services/ingestion-service/internal/http"
	"iotdashboard/backend/services/ingestion-service/internal/http/handlers"
	"iotdashboard/backend/services/ingestion-service/internal/service"
	"iotdashboard/backend/services/ingestion-service/internal/subscriber"
)

// Pipeline is the ingestion service plus the resources backing it. The
// long-running process and the Lambda entry point both build one.
type Pipeline struct {
	Service *service.IngestionService
	stores  *stores
	logger  *zap.Logger
}

// NewPipeline opens the stores and notifier selected by cfg.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	policy, err := service.ParseNotifyPolicy(cfg.Notify.Policy)
	if err != nil {
		return nil, err
	}
	zone, err := cfg.Zone()
	if err != nil {
		return nil, err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(ctx, cfg, logger.Named("notifier"))
	if err != nil {
		closeAll(st.closers, logger)
		return nil, err
	}

	locations := telemetry.NewLocationTable(cfg.Location.LocationConfig, nil)
	normalizer := telemetry.NewNormalizer(locations, telemetry.WithZone(zone))
	fanout := service.NewFanout(st.series, st.status, cfg.Fanout.WriteTimeout, logger.Named("fanout"))
	evaluator := telemetry.NewThresholdEvaluator(cfg.Thresholds, logger.Named("thresholds"))

	svc := service.NewIngestionService(normalizer, fanout, evaluator, notifier, service.Options{
		Policy:  policy,
		Message: cfg.Notify.Message,
	}, logger)

	return &Pipeline{Service: svc, stores: st, logger: logger}, nil
}

// Close releases store connections.
func (p *Pipeline) Close() {
	closeAll(p.stores.closers, p.logger)
}

func closeAll(closers []closer, logger *zap.Logger) {
	for _, c := range closers {
		if err := c.fn(); err != nil {
			logger.Warn("failed to close "+c.name, zap.Error(err))
		}
	}
}

// App wires ingestion service dependencies.
type App struct {
	pipeline        *Pipeline
	server          *libhttp.Server
	subscriber      *subscriber.Subscriber
	cleanupInterval time.Duration
	logger          *zap.Logger
}

// New constructs application components.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pipeline, err := NewPipeline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	routes := httpserver.Routes{
		Telemetry: handlers.NewTelemetryHandler(pipeline.Service, password.NewBcryptHasher(0), cfg.HTTP.IngestKeyHash, logger).ServeHTTP,
		Health:    handlers.NewHealthHandler(),
	}
	interval := cfg.Database.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	a := &App{
		pipeline:        pipeline,
		server:          libhttp.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes), logger),
		cleanupInterval: interval,
		logger:          logger,
	}

	if cfg.MQTT.Enabled {
		opts := cfg.MQTT.Options
		if opts.ClientID == "" {
			opts.ClientID = mqtt.ClientID("ingestion")
		}
		client, err := mqtt.Dial(ctx, opts, logger.Named("mqtt"))
		if err != nil {
			pipeline.Close()
			return nil, err
		}
		a.subscriber = subscriber.New(client, cfg.MQTT.Topic, cfg.MQTT.QoS, pipeline.Service, logger)
	}

	return a, nil
}

// Run serves HTTP, consumes MQTT and runs retention until ctx is done.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(ctx) })
	if a.subscriber != nil {
		g.Go(func() error { return a.subscriber.Run(ctx) })
	}
	if cleaner := a.pipeline.stores.cleaner; cleaner != nil {
		g.Go(func() error {
			cleaner.Run(ctx, a.cleanupInterval)
			return nil
		})
	}
	return g.Wait()
}

// Close releases resources.
func (a *App) Close() {
	a.pipeline.Close()
}
