package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/db"
	"iotdashboard/backend/libs/devicestatus"
	"iotdashboard/backend/libs/dynamostore"
	"iotdashboard/backend/libs/redis"
	"iotdashboard/backend/libs/timeseries"
	"iotdashboard/backend/services/ingestion-service/internal/clients"
	"iotdashboard/backend/services/ingestion-service/internal/config"
	"iotdashboard/backend/services/ingestion-service/internal/service"
)

type closer struct {
	name string
	fn   func() error
}

type stores struct {
	series  service.SeriesWriter
	status  service.StatusWriter
	cleaner *timeseries.Cleaner
	closers []closer
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		sqlDB, err := db.NewPostgresDB(ctx, cfg.Database.DSN, cfg.Database.Pool)
		if err != nil {
			return nil, fmt.Errorf("app: postgres: %w", err)
		}
		repo := timeseries.NewRepository(sqlDB)
		if err := repo.EnsureSchema(ctx); err != nil {
			sqlDB.Close()
			return nil, err
		}

		redisClient, err := redis.NewRedisClient(ctx, cfg.Redis.Options)
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("app: redis: %w", err)
		}

		s := &stores{
			series: repo,
			status: devicestatus.NewStore(redisClient, cfg.Redis.Prefix),
			closers: []closer{
				{name: "postgres", fn: sqlDB.Close},
				{name: "redis", fn: redisClient.Close},
			},
		}
		if cfg.Database.Retention > 0 {
			s.cleaner = timeseries.NewCleaner(repo, cfg.Database.Retention, 0, logger.Named("retention"))
		}
		logger.Info("using postgres time-series and redis status stores")
		return s, nil

	case config.BackendDynamo:
		client, err := dynamostore.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("app: dynamodb: %w", err)
		}
		logger.Info("using dynamodb stores",
			zap.String("series_table", cfg.Dynamo.SeriesTable),
			zap.String("status_table", cfg.Dynamo.StatusTable))
		return &stores{
			series: dynamostore.NewSeriesTable(client, cfg.Dynamo.SeriesTable, cfg.Dynamo.TTL),
			status: dynamostore.NewStatusTable(client, cfg.Dynamo.StatusTable),
		}, nil

	default:
		return nil, fmt.Errorf("app: unknown backend %q", cfg.Backend)
	}
}

func newNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Notify.Kind)) {
	case config.NotifierWebhook:
		return clients.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, logger), nil
	case config.NotifierSNS:
		api, err := clients.NewSNSClient(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("app: sns: %w", err)
		}
		return clients.NewSNSNotifier(api, cfg.Notify.TopicARN, logger), nil
	default:
		return clients.NewDisabledNotifier(logger), nil
	}
}
