package subscriber

import (
	"context"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/mqtt"
	"iotdashboard/backend/services/ingestion-service/internal/service"
)

// PayloadHandler ingests one message body.
type PayloadHandler interface {
	HandlePayload(ctx context.Context, payload []byte) service.Report
}

// Broker is the subset of the MQTT client the subscriber needs.
type Broker interface {
	Subscribe(ctx context.Context, filter string, qos byte, handler mqtt.Handler) error
	Close() error
}

// Subscriber feeds device payload messages into the ingestion service.
type Subscriber struct {
	broker  Broker
	filter  string
	qos     byte
	handler PayloadHandler
	logger  *zap.Logger
}

// New returns subscriber.
func New(broker Broker, filter string, qos byte, handler PayloadHandler, logger *zap.Logger) *Subscriber {
	return &Subscriber{broker: broker, filter: filter, qos: qos, handler: handler, logger: logger}
}

// Run subscribes and blocks until ctx is done. Messages are handled one at a
// time on the client's delivery goroutine.
func (s *Subscriber) Run(ctx context.Context) error {
	err := s.broker.Subscribe(ctx, s.filter, s.qos, func(_ context.Context, topic string, payload []byte) {
		report := s.handler.HandlePayload(ctx, payload)
		s.logger.Debug("message ingested",
			zap.String("topic", topic),
			zap.Int("processed", report.Processed),
			zap.Int("dropped", report.Dropped))
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	if err := s.broker.Close(); err != nil {
		s.logger.Warn("failed to disconnect from broker", zap.Error(err))
	}
	return nil
}
