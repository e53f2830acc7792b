package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
)

const defaultWriteTimeout = 5 * time.Second

// SeriesWriter appends records keyed by (deviceId, timestamp).
type SeriesWriter interface {
	Append(ctx context.Context, rec telemetry.Record) error
}

// StatusWriter upserts the latest record keyed by deviceId.
type StatusWriter interface {
	Upsert(ctx context.Context, rec telemetry.Record) error
}

// FanoutResult carries the outcome of both writes of one record.
type FanoutResult struct {
	SeriesErr error
	StatusErr error
}

// Err combines both outcomes; nil when both writes succeeded.
func (r FanoutResult) Err() error {
	return multierr.Combine(r.SeriesErr, r.StatusErr)
}

// Failures counts failed writes.
func (r FanoutResult) Failures() int {
	return len(multierr.Errors(r.Err()))
}

// Fanout writes each record to the time-series and status stores concurrently.
type Fanout struct {
	series  SeriesWriter
	status  StatusWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewFanout returns fanout. timeout <= 0 uses five seconds per write.
func NewFanout(series SeriesWriter, status StatusWriter, timeout time.Duration, logger *zap.Logger) *Fanout {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &Fanout{series: series, status: status, timeout: timeout, logger: logger}
}

// Write issues both writes, waits for both and logs each failure. A failing
// write never cancels its sibling.
func (f *Fanout) Write(ctx context.Context, rec telemetry.Record) FanoutResult {
	var (
		res FanoutResult
		wg  sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.SeriesErr = f.do(ctx, "timeseries", rec, f.series.Append)
	}()
	go func() {
		defer wg.Done()
		res.StatusErr = f.do(ctx, "status", rec, f.status.Upsert)
	}()
	wg.Wait()
	return res
}

func (f *Fanout) do(ctx context.Context, store string, rec telemetry.Record, write func(context.Context, telemetry.Record) error) error {
	writeCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := write(writeCtx, rec); err != nil {
		f.logger.Error("store write failed",
			zap.String("store", store),
			zap.String("device_id", rec.DeviceID),
			zap.Int64("payload_timestamp", rec.TimeStampEpoch),
			zap.Error(err))
		return err
	}
	f.logger.Debug("store write ok", zap.String("store", store), zap.String("device_id", rec.DeviceID))
	return nil
}
