package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
)

// Publisher forwards payloads upstream.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error
}

// Options configures buffering.
type Options struct {
	// Window is how old a device buffer must be before the next record
	// flushes it. Zero disables buffering.
	Window time.Duration
	QoS    byte
}

type buffer struct {
	started time.Time
	records []telemetry.RawEvent
}

// Aggregator enriches device readings at the edge and forwards them to the
// cloud either one by one or batched per device.
type Aggregator struct {
	normalizer *telemetry.Normalizer
	publisher  Publisher
	opts       Options
	now        func() time.Time
	logger     *zap.Logger

	mu      sync.Mutex
	buffers map[string]*buffer
}

// New returns aggregator.
func New(normalizer *telemetry.Normalizer, publisher Publisher, opts Options, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		normalizer: normalizer,
		publisher:  publisher,
		opts:       opts,
		now:        time.Now,
		logger:     logger,
		buffers:    make(map[string]*buffer),
	}
}

// HandleMessage implements the subscriber callback. Invalid payloads and
// events without a device id are dropped.
func (a *Aggregator) HandleMessage(ctx context.Context, topic string, payload []byte) {
	env, err := telemetry.DecodeEnvelope(payload)
	if err != nil {
		a.logger.Warn("dropping invalid payload", zap.String("topic", topic), zap.Error(err))
		return
	}
	for _, event := range env.Events() {
		if err := a.Add(ctx, event); err != nil {
			a.logger.Error("failed to forward records", zap.String("device_id", event.DeviceID), zap.Error(err))
		}
	}
}

// Add normalizes event and publishes or buffers it.
func (a *Aggregator) Add(ctx context.Context, event telemetry.RawEvent) error {
	if err := telemetry.Validate(event); err != nil {
		a.logger.Warn("dropping event", zap.Error(err))
		return nil
	}
	rec := a.normalizer.Normalize(event)

	if a.opts.Window <= 0 {
		return a.publish(ctx, rec.DeviceID, rec.Raw())
	}

	a.mu.Lock()
	buf, ok := a.buffers[rec.DeviceID]
	if !ok {
		buf = &buffer{}
		a.buffers[rec.DeviceID] = buf
	}
	now := a.now()
	if len(buf.records) == 0 {
		buf.started = now
	}
	buf.records = append(buf.records, rec.Raw())
	if now.Sub(buf.started) <= a.opts.Window {
		a.mu.Unlock()
		return nil
	}
	records := buf.records
	buf.records = nil
	a.mu.Unlock()

	return a.publish(ctx, rec.DeviceID, telemetry.Batch{Records: records})
}

// Flush publishes every non-empty buffer regardless of age.
func (a *Aggregator) Flush(ctx context.Context) error {
	a.mu.Lock()
	pending := make(map[string][]telemetry.RawEvent, len(a.buffers))
	for id, buf := range a.buffers {
		if len(buf.records) > 0 {
			pending[id] = buf.records
			buf.records = nil
		}
	}
	a.mu.Unlock()

	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs error
	for _, id := range ids {
		errs = multierr.Append(errs, a.publish(ctx, id, telemetry.Batch{Records: pending[id]}))
	}
	return errs
}

// Pending returns the number of buffered records of deviceID.
func (a *Aggregator) Pending(deviceID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if buf, ok := a.buffers[deviceID]; ok {
		return len(buf.records)
	}
	return 0
}

func (a *Aggregator) publish(ctx context.Context, deviceID string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	topic := telemetry.PayloadTopic(deviceID)
	if err := a.publisher.Publish(ctx, topic, payload, a.opts.QoS); err != nil {
		return err
	}
	a.logger.Debug("published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// Run flushes buffered records once ctx is done.
func (a *Aggregator) Run(ctx context.Context, flushTimeout time.Duration) error {
	<-ctx.Done()
	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := a.Flush(flushCtx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("final flush failed", zap.Error(err))
		return err
	}
	return nil
}
