package app

import (
	"context"
	"fmt"
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
	"iotdashboard/backend/services/edge-aggregator/internal/config"
)

func TestForwardsEnrichedRecordsToCloudTopic(t *testing.T) {
	const port = 18851
	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{Type: "tcp", Address: fmt.Sprintf("127.0.0.1:%d", port)})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { _ = broker.Close() })
	url := fmt.Sprintf("tcp://127.0.0.1:%d", port)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger := zap.NewNop()

	cfg := config.Defaults()
	cfg.Edge.BrokerURL = url
	cfg.Edge.Topic = "edge/+/devicePayload"
	cfg.Cloud.BrokerURL = url
	cfg.Passthrough = true
	require.NoError(t, cfg.Validate())

	application, err := New(ctx, cfg, logger)
	require.NoError(t, err)
	defer application.Close()

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- application.Run(runCtx) }()

	cloud, err := mqtt.Dial(ctx, mqtt.Options{BrokerURL: url, ClientID: "cloud-test"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cloud.Close() })
	received := make(chan []byte, 8)
	require.NoError(t, cloud.Subscribe(ctx, telemetry.PayloadTopicFilter, 1, func(_ context.Context, _ string, payload []byte) {
		select {
		case received <- payload:
		default:
		}
	}))

	// Retry until the aggregator subscription is live on the broker.
	var got []byte
	deadline := time.After(3 * time.Second)
	for got == nil {
		require.NoError(t, cloud.Publish(ctx, "edge/knuth/devicePayload", []byte(`{"deviceId":"knuth","batteryCharge":7}`), 1))
		select {
		case got = <-received:
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("record never forwarded")
		}
	}

	stop()
	require.NoError(t, <-done)

	env, err := telemetry.DecodeEnvelope(got)
	require.NoError(t, err)
	events := env.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "knuth", events[0].DeviceID)
	assert.Equal(t, telemetry.Complete, telemetry.Classify(events[0]))
}
