package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
	"iotdashboard/backend/services/ingestion-service/internal/clients"
)

type memStore struct {
	mu      sync.Mutex
	records []telemetry.Record
	err     error
	delay   time.Duration
}

func (m *memStore) write(ctx context.Context, rec telemetry.Record) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return m.err
}

func (m *memStore) Append(ctx context.Context, rec telemetry.Record) error { return m.write(ctx, rec) }
func (m *memStore) Upsert(ctx context.Context, rec telemetry.Record) error { return m.write(ctx, rec) }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type recordingNotifier struct {
	alerts []clients.Alert
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, alert clients.Alert) error {
	r.alerts = append(r.alerts, alert)
	return r.err
}

type harness struct {
	series   *memStore
	status   *memStore
	notifier *recordingNotifier
	svc      *IngestionService
}

func newHarness(t *testing.T, policy NotifyPolicy) *harness {
	t.Helper()
	h := &harness{series: &memStore{}, status: &memStore{}, notifier: &recordingNotifier{}}
	logger := zap.NewNop()
	normalizer := telemetry.NewNormalizer(
		telemetry.NewLocationTable(telemetry.DefaultLocationConfig(), rand.New(rand.NewSource(1))),
		telemetry.WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }),
	)
	h.svc = NewIngestionService(
		normalizer,
		NewFanout(h.series, h.status, time.Second, logger),
		telemetry.NewThresholdEvaluator(telemetry.DefaultThresholds(), logger),
		h.notifier,
		Options{Policy: policy},
		logger,
	)
	return h
}

func okEvent(id string) telemetry.RawEvent {
	return telemetry.RawEvent{DeviceID: id, SensorReading: 35, BatteryCharge: 5, BatteryDischargeRate: 2}
}

func breachingEvent(id string) telemetry.RawEvent {
	return telemetry.RawEvent{DeviceID: id, SensorReading: 35, BatteryCharge: 25, BatteryDischargeRate: 2}
}
