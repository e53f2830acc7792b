package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/db"
	"iotdashboard/backend/libs/dynamostore"
	"iotdashboard/backend/libs/logging"
	"iotdashboard/backend/libs/timeseries"
	"iotdashboard/backend/services/query-cli/internal/config"
	"iotdashboard/backend/services/query-cli/internal/query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	device := flag.String("device", "", "device id to query (required)")
	window := flag.String("window", query.DefaultWindow, "ISO-8601 duration to look back, e.g. PT5M")
	since := flag.String("since", "", "ISO-8601 instant lower bound, overrides -window")
	limit := flag.Int("limit", 0, "maximum records to print, 0 for all")
	flag.StringVar(&cfg.Backend, "backend", cfg.Backend, "store backend: postgres or dynamodb")
	flag.Parse()

	req, err := query.ParseRequest(*device, *window, *since, *limit)
	if err != nil {
		fail(err)
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	logger, err := logging.NewCLILogger("telemetry-query")
	if err != nil {
		fail(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	querier, closeFn, err := open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("backend", cfg.Backend), zap.Error(err))
	}
	defer closeFn()

	if err := query.Run(ctx, querier, req, time.Now(), os.Stdout); err != nil {
		logger.Error("query failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		os.Exit(1)
	}
}

func open(ctx context.Context, cfg *config.Config) (query.Querier, func(), error) {
	switch cfg.Backend {
	case config.BackendDynamo:
		client, err := dynamostore.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
		return dynamostore.NewSeriesTable(client, cfg.Dynamo.SeriesTable, 0), func() {}, nil
	default:
		sqlDB, err := db.NewPostgresDB(ctx, cfg.Database.DSN, cfg.Database.Pool)
		if err != nil {
			return nil, nil, err
		}
		return timeseries.NewRepository(sqlDB), func() { _ = sqlDB.Close() }, nil
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	flag.Usage()
	os.Exit(2)
}
