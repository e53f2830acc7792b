package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/logging"
	"iotdashboard/backend/services/dashboard-service/internal/app"
	"iotdashboard/backend/services/dashboard-service/internal/config"
	"iotdashboard/backend/services/dashboard-service/internal/service"
)

// Invoked by the API gateway with {"deviceId": "..."} or an empty event.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger("dashboard-lambda")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	gateway, err := app.NewGateway(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to init gateway", zap.Error(err))
	}
	defer gateway.Close()

	lambda.Start(func(ctx context.Context, req service.LookupRequest) (service.LookupResult, error) {
		return gateway.Service.Lookup(ctx, req), nil
	})
}
