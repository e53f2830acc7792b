package subscriber

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/mqtt"
	"iotdashboard/backend/libs/telemetry"
	"iotdashboard/backend/services/ingestion-service/internal/clients"
	"iotdashboard/backend/services/ingestion-service/internal/service"
)

type memStore struct {
	mu      sync.Mutex
	records []telemetry.Record
	written chan struct{}
}

func (m *memStore) save(rec telemetry.Record) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	select {
	case m.written <- struct{}{}:
	default:
	}
	return nil
}

func (m *memStore) Append(_ context.Context, rec telemetry.Record) error { return m.save(rec) }
func (m *memStore) Upsert(_ context.Context, rec telemetry.Record) error { return m.save(rec) }

func TestSubscriberIngestsBrokerMessages(t *testing.T) {
	const port = 18841
	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{Type: "tcp", Address: fmt.Sprintf("127.0.0.1:%d", port)})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { _ = broker.Close() })
	url := fmt.Sprintf("tcp://127.0.0.1:%d", port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger := zap.NewNop()

	series := &memStore{written: make(chan struct{}, 8)}
	status := &memStore{written: make(chan struct{}, 8)}
	svc := service.NewIngestionService(
		telemetry.NewNormalizer(telemetry.NewLocationTable(telemetry.DefaultLocationConfig(), rand.New(rand.NewSource(1)))),
		service.NewFanout(series, status, time.Second, logger),
		telemetry.NewThresholdEvaluator(telemetry.DefaultThresholds(), logger),
		clients.NewDisabledNotifier(logger),
		service.Options{},
		logger,
	)

	client, err := mqtt.Dial(ctx, mqtt.Options{BrokerURL: url, ClientID: "ingest-test"}, logger)
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- New(client, telemetry.PayloadTopicFilter, 1, svc, logger).Run(runCtx) }()

	pub, err := mqtt.Dial(ctx, mqtt.Options{BrokerURL: url, ClientID: "device-test"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	// Retry until the subscription is live on the broker.
	payload := []byte(`{"deviceId":"knuth","sensorReading":33.3,"batteryCharge":5,"batteryDischargeRate":1}`)
	deadline := time.After(3 * time.Second)
	for delivered := false; !delivered; {
		require.NoError(t, pub.Publish(ctx, telemetry.PayloadTopic("knuth"), payload, 1))
		select {
		case <-series.written:
			delivered = true
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("message never ingested")
		}
	}

	stop()
	require.NoError(t, <-done)

	series.mu.Lock()
	defer series.mu.Unlock()
	assert.Equal(t, "knuth", series.records[0].DeviceID)
	assert.InDelta(t, 33.3, series.records[0].SensorReading, 1e-9)
}
