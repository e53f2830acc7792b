package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/db"
	"iotdashboard/backend/libs/devicestatus"
	"iotdashboard/backend/libs/dynamostore"
	"iotdashboard/backend/libs/redis"
	"iotdashboard/backend/libs/timeseries"
	"iotdashboard/backend/services/dashboard-service/internal/config"
	"iotdashboard/backend/services/dashboard-service/internal/live"
	"iotdashboard/backend/services/dashboard-service/internal/service"
)

type closer struct {
	name string
	fn   func() error
}

type stores struct {
	series  service.SeriesReader
	status  service.StatusReader
	watcher live.Watcher
	closers []closer
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		sqlDB, err := db.NewPostgresDB(ctx, cfg.Database.DSN, cfg.Database.Pool)
		if err != nil {
			return nil, fmt.Errorf("app: postgres: %w", err)
		}
		redisClient, err := redis.NewRedisClient(ctx, cfg.Redis.Options)
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		status := devicestatus.NewStore(redisClient, cfg.Redis.Prefix)
		logger.Info("reading postgres time-series and redis status stores")
		return &stores{
			series:  timeseries.NewRepository(sqlDB),
			status:  status,
			watcher: status,
			closers: []closer{
				{name: "postgres", fn: sqlDB.Close},
				{name: "redis", fn: redisClient.Close},
			},
		}, nil

	case config.BackendDynamo:
		client, err := dynamostore.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("app: dynamodb: %w", err)
		}
		logger.Info("reading dynamodb stores",
			zap.String("series_table", cfg.Dynamo.SeriesTable),
			zap.String("status_table", cfg.Dynamo.StatusTable))
		return &stores{
			series: dynamostore.NewSeriesTable(client, cfg.Dynamo.SeriesTable, 0),
			status: dynamostore.NewStatusTable(client, cfg.Dynamo.StatusTable),
		}, nil

	default:
		return nil, fmt.Errorf("app: unknown backend %q", cfg.Backend)
	}
}

func closeAll(closers []closer, logger *zap.Logger) {
	for _, c := range closers {
		if err := c.fn(); err != nil {
			logger.Warn("failed to close "+c.name, zap.Error(err))
		}
	}
}
