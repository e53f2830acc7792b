package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/sosodev/duration"

	"iotdashboard/backend/libs/telemetry"
)

// DefaultWindow matches the dashboard gateway.
const DefaultWindow = "PT5M"

// Querier reads one device's records newer than a bound. Each store backend
// implements it.
type Querier interface {
	Since(ctx context.Context, deviceID string, afterMs int64, limit int) ([]telemetry.Record, error)
}

// Request is a validated command line query.
type Request struct {
	DeviceID string
	Window   time.Duration
	Since    time.Time
	Limit    int
}

// ParseRequest validates flag values. since, an ISO-8601 instant, wins over
// window, an ISO-8601 duration.
func ParseRequest(deviceID, window, since string, limit int) (Request, error) {
	req := Request{DeviceID: strings.TrimSpace(deviceID), Limit: limit}
	if req.DeviceID == "" {
		return Request{}, errors.New("query: -device is required")
	}
	if limit < 0 {
		return Request{}, errors.New("query: -limit must not be negative")
	}

	if since = strings.TrimSpace(since); since != "" {
		t, err := iso8601.ParseString(since)
		if err != nil {
			return Request{}, fmt.Errorf("query: -since: %w", err)
		}
		req.Since = t
		return req, nil
	}

	if window = strings.TrimSpace(window); window == "" {
		window = DefaultWindow
	}
	d, err := duration.Parse(window)
	if err != nil {
		return Request{}, fmt.Errorf("query: -window: %w", err)
	}
	req.Window = d.ToTimeDuration()
	if req.Window <= 0 {
		return Request{}, fmt.Errorf("query: -window %s must be positive", window)
	}
	return req, nil
}

// LowerBound returns the exclusive lower timestamp in epoch milliseconds.
func (r Request) LowerBound(now time.Time) int64 {
	if !r.Since.IsZero() {
		return r.Since.UnixMilli()
	}
	return now.Add(-r.Window).UnixMilli()
}

// Result is printed to stdout.
type Result struct {
	DeviceID string             `json:"deviceId"`
	After    int64              `json:"after"`
	AfterISO string             `json:"afterIso"`
	Window   string             `json:"window,omitempty"`
	Count    int                `json:"count"`
	Records  []telemetry.Record `json:"records"`
}

// Run executes req against q and writes the result as indented JSON.
func Run(ctx context.Context, q Querier, req Request, now time.Time, out io.Writer) error {
	after := req.LowerBound(now)
	records, err := q.Since(ctx, req.DeviceID, after, req.Limit)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	if records == nil {
		records = []telemetry.Record{}
	}

	res := Result{
		DeviceID: req.DeviceID,
		After:    after,
		AfterISO: time.UnixMilli(after).UTC().Format(time.RFC3339Nano),
		Count:    len(records),
		Records:  records,
	}
	if req.Since.IsZero() {
		res.Window = duration.Format(req.Window)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
