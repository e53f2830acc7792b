package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iotdashboard/backend/libs/telemetry"
)

func TestParseRequestWindow(t *testing.T) {
	req, err := ParseRequest("knuth", "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, req.Window)

	req, err = ParseRequest(" hopper ", "PT1H30M", "", 10)
	require.NoError(t, err)
	assert.Equal(t, "hopper", req.DeviceID)
	assert.Equal(t, 90*time.Minute, req.Window)
	assert.Equal(t, 10, req.Limit)
}

func TestParseRequestSinceWinsOverWindow(t *testing.T) {
	req, err := ParseRequest("turing", "PT1M", "2023-11-14T22:13:20Z", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), req.LowerBound(time.Now()))
}

func TestParseRequestErrors(t *testing.T) {
	cases := map[string][3]string{
		"no device":   {"", "", ""},
		"bad window":  {"knuth", "5 minutes", ""},
		"zero window": {"knuth", "PT0S", ""},
		"bad since":   {"knuth", "", "yesterday"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRequest(args[0], args[1], args[2], 0)
			assert.Error(t, err)
		})
	}

	_, err := ParseRequest("knuth", "", "", -1)
	assert.Error(t, err)
}

type stubQuerier struct {
	gotDevice string
	gotAfter  int64
	gotLimit  int
	records   []telemetry.Record
	err       error
}

func (s *stubQuerier) Since(_ context.Context, deviceID string, afterMs int64, limit int) ([]telemetry.Record, error) {
	s.gotDevice, s.gotAfter, s.gotLimit = deviceID, afterMs, limit
	return s.records, s.err
}

func TestRunPrintsRecords(t *testing.T) {
	q := &stubQuerier{records: []telemetry.Record{{DeviceID: "knuth", TimeStampEpoch: 1_700_000_100_000}}}
	now := time.UnixMilli(1_700_000_300_000)
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), q, Request{DeviceID: "knuth", Window: 5 * time.Minute, Limit: 3}, now, &out))

	assert.Equal(t, "knuth", q.gotDevice)
	assert.Equal(t, int64(1_700_000_000_000), q.gotAfter)
	assert.Equal(t, 3, q.gotLimit)

	var res Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, "PT5M", res.Window)
	assert.Equal(t, "2023-11-14T22:13:20Z", res.AfterISO)
}

func TestRunEmptyResultHasEmptyArray(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), &stubQuerier{}, Request{DeviceID: "knuth", Window: time.Minute}, time.Now(), &out))
	assert.Contains(t, out.String(), `"records": []`)
}

func TestRunWrapsStoreError(t *testing.T) {
	boom := errors.New("timeout")
	err := Run(context.Background(), &stubQuerier{err: boom}, Request{DeviceID: "knuth", Window: time.Minute}, time.Now(), &bytes.Buffer{})
	assert.ErrorIs(t, err, boom)
}
