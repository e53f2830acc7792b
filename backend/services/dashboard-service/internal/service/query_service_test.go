package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iotdashboard/backend/libs/telemetry"
)

type fakeSeries struct {
	device string
	after  int64
	limit  int
	out    []telemetry.Record
	err    error
}

func (f *fakeSeries) Since(_ context.Context, deviceID string, afterMs int64, limit int) ([]telemetry.Record, error) {
	f.device, f.after, f.limit = deviceID, afterMs, limit
	return f.out, f.err
}

type fakeStatus struct {
	out   []telemetry.Record
	err   error
	calls int
}

func (f *fakeStatus) All(context.Context) ([]telemetry.Record, error) {
	f.calls++
	return f.out, f.err
}

func newQuery(series *fakeSeries, status *fakeStatus) *QueryService {
	q := NewQueryService(series, status, 0, 25, zap.NewNop())
	q.now = func() time.Time { return time.UnixMilli(1_700_000_300_000) }
	return q
}

func TestLookupDeviceQueriesLastFiveMinutes(t *testing.T) {
	series := &fakeSeries{out: []telemetry.Record{{DeviceID: "knuth", TimeStampEpoch: 1_700_000_100_000}}}
	status := &fakeStatus{}

	res := newQuery(series, status).Lookup(context.Background(), LookupRequest{DeviceID: "knuth"})

	assert.Equal(t, "knuth", series.device)
	assert.Equal(t, int64(1_700_000_000_000), series.after)
	assert.Equal(t, 25, series.limit)
	assert.Zero(t, status.calls)
	require.False(t, res.Failed())
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, int64(1_700_000_100_000), res.Items[0].PayloadTimestamp)
}

func TestLookupWithoutDeviceScansStatus(t *testing.T) {
	status := &fakeStatus{out: []telemetry.Record{{DeviceID: "hopper"}, {DeviceID: "turing"}}}

	res := newQuery(&fakeSeries{}, status).Lookup(context.Background(), LookupRequest{DeviceID: "  "})

	assert.Equal(t, 1, status.calls)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "hopper", res.Items[0].DeviceID)
}

func TestLookupErrorsBecomeEmptyObject(t *testing.T) {
	series := &fakeSeries{err: errors.New("table missing")}
	status := &fakeStatus{err: errors.New("scan denied")}
	q := newQuery(series, status)

	for _, req := range []LookupRequest{{DeviceID: "knuth"}, {}} {
		res := q.Lookup(context.Background(), req)
		assert.True(t, res.Failed())
		data, err := json.Marshal(res)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(data))
	}
}

func TestLookupResultEncoding(t *testing.T) {
	empty, err := json.Marshal(LookupResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Items":[],"Count":0}`, string(empty))

	res := LookupResult{Items: []Item{{DeviceID: "knuth", Payload: telemetry.Record{DeviceID: "knuth"}}}, Count: 1}
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Items":[{"deviceId":"knuth","payload":{"deviceId":"knuth"`)
}
