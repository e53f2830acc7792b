package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/logging"
	"iotdashboard/backend/services/ingestion-service/internal/app"
	"iotdashboard/backend/services/ingestion-service/internal/config"
	"iotdashboard/backend/services/ingestion-service/internal/service"
)

// The IoT rule forwards the device payload as the invocation event, either a
// single reading or {"records": [...]}.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger("ingestion-lambda")
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	pipeline, err := app.NewPipeline(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to init pipeline", zap.Error(err))
	}
	defer pipeline.Close()

	lambda.Start(func(ctx context.Context, event json.RawMessage) (service.Report, error) {
		return pipeline.Service.HandlePayload(ctx, event), nil
	})
}
