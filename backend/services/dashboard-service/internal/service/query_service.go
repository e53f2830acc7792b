package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
)

const defaultWindow = 300 * time.Second

// SeriesReader reads one device's records newer than a bound.
type SeriesReader interface {
	Since(ctx context.Context, deviceID string, afterMs int64, limit int) ([]telemetry.Record, error)
}

// StatusReader lists every device's latest record.
type StatusReader interface {
	All(ctx context.Context) ([]telemetry.Record, error)
}

// LookupRequest selects a device history or, when DeviceID is empty, the
// latest status of every device.
type LookupRequest struct {
	DeviceID string `json:"deviceId"`
}

// Item mirrors a stored row.
type Item struct {
	DeviceID         string           `json:"deviceId"`
	PayloadTimestamp int64            `json:"payloadTimestamp,omitempty"`
	Payload          telemetry.Record `json:"payload"`
}

// LookupResult encodes as {"Items": [...], "Count": n}, or as {} when the
// lookup failed.
type LookupResult struct {
	Items  []Item
	Count  int
	failed bool
}

// Failed reports whether the store returned an error.
func (r LookupResult) Failed() bool {
	return r.failed
}

// MarshalJSON implements json.Marshaler.
func (r LookupResult) MarshalJSON() ([]byte, error) {
	if r.failed {
		return []byte("{}"), nil
	}
	items := r.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(struct {
		Items []Item `json:"Items"`
		Count int    `json:"Count"`
	}{Items: items, Count: r.Count})
}

// QueryService answers dashboard lookups.
type QueryService struct {
	series SeriesReader
	status StatusReader
	window time.Duration
	limit  int
	now    func() time.Time
	logger *zap.Logger
}

// NewQueryService returns service. window <= 0 uses five minutes; limit <= 0
// returns every matching record.
func NewQueryService(series SeriesReader, status StatusReader, window time.Duration, limit int, logger *zap.Logger) *QueryService {
	if window <= 0 {
		window = defaultWindow
	}
	return &QueryService{
		series: series,
		status: status,
		window: window,
		limit:  limit,
		now:    time.Now,
		logger: logger,
	}
}

// Lookup never returns an error; failures produce an empty result object.
func (s *QueryService) Lookup(ctx context.Context, req LookupRequest) LookupResult {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID != "" {
		after := s.now().Add(-s.window).UnixMilli()
		records, err := s.series.Since(ctx, deviceID, after, s.limit)
		if err != nil {
			s.logger.Error("time-series query failed", zap.String("device_id", deviceID), zap.Error(err))
			return LookupResult{failed: true}
		}
		items := make([]Item, 0, len(records))
		for _, rec := range records {
			items = append(items, Item{DeviceID: rec.DeviceID, PayloadTimestamp: rec.TimeStampEpoch, Payload: rec})
		}
		return LookupResult{Items: items, Count: len(items)}
	}

	records, err := s.status.All(ctx)
	if err != nil {
		s.logger.Error("status scan failed", zap.Error(err))
		return LookupResult{failed: true}
	}
	items := make([]Item, 0, len(records))
	for _, rec := range records {
		items = append(items, Item{DeviceID: rec.DeviceID, Payload: rec})
	}
	return LookupResult{Items: items, Count: len(items)}
}
