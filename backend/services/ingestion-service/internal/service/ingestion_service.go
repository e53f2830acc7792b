package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
	"iotdashboard/backend/services/ingestion-service/internal/clients"
)

// NotifyPolicy decides how many alerts one invocation may raise.
type NotifyPolicy string

const (
	// NotifyOncePerBatch raises at most one alert per batch.
	NotifyOncePerBatch NotifyPolicy = "batch"
	// NotifyEveryRecord raises an alert for every breaching record.
	NotifyEveryRecord NotifyPolicy = "record"
)

// ParseNotifyPolicy accepts "batch", "record" or empty (batch).
func ParseNotifyPolicy(raw string) (NotifyPolicy, error) {
	switch NotifyPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", NotifyOncePerBatch:
		return NotifyOncePerBatch, nil
	case NotifyEveryRecord:
		return NotifyEveryRecord, nil
	default:
		return "", fmt.Errorf("service: unknown notify policy %q", raw)
	}
}

// Notifier delivers threshold alerts.
type Notifier interface {
	Notify(ctx context.Context, alert clients.Alert) error
}

// Report summarises one invocation. Ingestion never fails; problems show up
// here and in the logs.
type Report struct {
	Received       int `json:"received"`
	Processed      int `json:"processed"`
	Dropped        int `json:"dropped"`
	WriteFailures  int `json:"writeFailures"`
	Breaches       int `json:"breaches"`
	Notifications  int `json:"notifications"`
	NotifyFailures int `json:"notifyFailures"`
}

// IngestionService normalizes, persists and checks incoming telemetry.
type IngestionService struct {
	normalizer *telemetry.Normalizer
	fanout     *Fanout
	evaluator  *telemetry.ThresholdEvaluator
	notifier   Notifier
	policy     NotifyPolicy
	message    string
	now        func() time.Time
	logger     *zap.Logger
}

// Options tunes alerting.
type Options struct {
	Policy  NotifyPolicy
	Message string
}

// NewIngestionService returns service instance.
func NewIngestionService(normalizer *telemetry.Normalizer, fanout *Fanout, evaluator *telemetry.ThresholdEvaluator, notifier Notifier, opts Options, logger *zap.Logger) *IngestionService {
	if opts.Policy == "" {
		opts.Policy = NotifyOncePerBatch
	}
	return &IngestionService{
		normalizer: normalizer,
		fanout:     fanout,
		evaluator:  evaluator,
		notifier:   notifier,
		policy:     opts.Policy,
		message:    opts.Message,
		now:        time.Now,
		logger:     logger,
	}
}

// HandlePayload decodes a raw message body and ingests it. Undecodable
// payloads are counted as dropped.
func (s *IngestionService) HandlePayload(ctx context.Context, payload []byte) Report {
	env, err := telemetry.DecodeEnvelope(payload)
	if err != nil {
		s.logger.Warn("dropping undecodable payload", zap.Int("bytes", len(payload)), zap.Error(err))
		return Report{Received: 1, Dropped: 1}
	}
	return s.HandleEnvelope(ctx, env)
}

// HandleEnvelope ingests a single event or a batch.
func (s *IngestionService) HandleEnvelope(ctx context.Context, env telemetry.Envelope) Report {
	if env.IsBatch {
		return s.HandleBatch(ctx, env.Records)
	}
	if env.Single == nil {
		return Report{}
	}
	return s.HandleRecord(ctx, *env.Single)
}

// HandleRecord ingests one event. It is always eligible for an alert.
func (s *IngestionService) HandleRecord(ctx context.Context, event telemetry.RawEvent) Report {
	var report Report
	notified := false
	s.process(ctx, event, &report, &notified, false)
	return report
}

// HandleBatch ingests events in order, one at a time.
func (s *IngestionService) HandleBatch(ctx context.Context, events []telemetry.RawEvent) Report {
	var report Report
	notified := false
	for _, event := range events {
		s.process(ctx, event, &report, &notified, true)
	}
	s.logger.Info("batch ingested",
		zap.Int("received", report.Received),
		zap.Int("processed", report.Processed),
		zap.Int("dropped", report.Dropped),
		zap.Int("write_failures", report.WriteFailures),
		zap.Int("notifications", report.Notifications))
	return report
}

func (s *IngestionService) process(ctx context.Context, event telemetry.RawEvent, report *Report, notified *bool, inBatch bool) {
	report.Received++

	if err := telemetry.Validate(event); err != nil {
		report.Dropped++
		s.logger.Warn("dropping invalid event", zap.Error(err))
		return
	}

	class := telemetry.Classify(event)
	rec := s.normalizer.Normalize(event)
	s.logger.Debug("record normalized",
		zap.String("device_id", rec.DeviceID),
		zap.Stringer("completeness", class),
		zap.Int64("payload_timestamp", rec.TimeStampEpoch))

	result := s.fanout.Write(ctx, rec)
	report.Processed++
	report.WriteFailures += result.Failures()

	breach, exceeded := s.evaluator.Evaluate(rec)
	if !exceeded {
		return
	}
	report.Breaches++

	if inBatch && s.policy == NotifyOncePerBatch && *notified {
		s.logger.Debug("alert already sent for batch", zap.String("device_id", rec.DeviceID))
		return
	}
	*notified = true

	alert := clients.NewAlert(s.message, rec, breach, s.now())
	if err := s.notifier.Notify(ctx, alert); err != nil {
		report.NotifyFailures++
		s.logger.Error("alert delivery failed", zap.String("device_id", rec.DeviceID), zap.Error(err))
		return
	}
	report.Notifications++
	s.logger.Info("threshold alert sent",
		zap.String("device_id", rec.DeviceID),
		zap.String("field", breach.Field),
		zap.Float64("value", breach.Value))
}
