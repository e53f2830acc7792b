package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelopeSingle(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"deviceId":"knuth","sensorReading":31.5,"batteryCharge":12,"batteryDischargeRate":1.25}`))
	require.NoError(t, err)

	assert.False(t, env.IsBatch)
	events := env.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "knuth", events[0].DeviceID)
	assert.Nil(t, events[0].TimeStampEpoch)
	assert.Nil(t, events[0].Location)
}

func TestDecodeEnvelopeBatch(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"records":[
		{"deviceId":"hopper","batteryCharge":1,"timeStampEpoch":10,"timeStampIso":"x","location":{"lat":1,"lon":2}},
		{"deviceId":"turing","batteryCharge":2}
	]}`))
	require.NoError(t, err)

	assert.True(t, env.IsBatch)
	events := env.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "hopper", events[0].DeviceID)
	assert.Equal(t, int64(10), *events[0].TimeStampEpoch)
	assert.Equal(t, Location{Lat: 1, Lon: 2}, *events[0].Location)
	assert.Equal(t, "turing", events[1].DeviceID)
}

func TestDecodeEnvelopeEmptyBatch(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"records":[]}`))
	require.NoError(t, err)
	assert.True(t, env.IsBatch)
	assert.Empty(t, env.Events())
}

func TestDecodeEnvelopeNullRecordsIsSingle(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"records":null,"deviceId":"knuth"}`))
	require.NoError(t, err)
	assert.False(t, env.IsBatch)
	assert.Equal(t, "knuth", env.Events()[0].DeviceID)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	for _, payload := range []string{``, `[]`, `42`, `{"records":"nope"}`, `{"deviceId":`} {
		_, err := DecodeEnvelope([]byte(payload))
		assert.ErrorIsf(t, err, ErrInvalidPayload, "payload %q", payload)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(RawEvent{DeviceID: "knuth"}))
	assert.ErrorIs(t, Validate(RawEvent{DeviceID: "  "}), ErrMissingDeviceID)
}

func TestRecordRawRoundTripIsComplete(t *testing.T) {
	rec := Record{DeviceID: "knuth", TimeStampEpoch: 7, TimeStampISO: "iso", Location: Location{Lat: 1, Lon: 2}}

	raw := rec.Raw()
	assert.Equal(t, Complete, Classify(raw))
	assert.Equal(t, rec, NewNormalizer(NewLocationTable(DefaultLocationConfig(), nil)).Normalize(raw))
}

func TestPayloadTopic(t *testing.T) {
	assert.Equal(t, "device/knuth/devicePayload", PayloadTopic("knuth"))

	id, ok := DeviceFromTopic("device/hopper/devicePayload")
	assert.True(t, ok)
	assert.Equal(t, "hopper", id)

	for _, topic := range []string{"device/devicePayload", "device//devicePayload", "device/a/b/devicePayload", "other/x/devicePayload"} {
		_, ok := DeviceFromTopic(topic)
		assert.Falsef(t, ok, "topic %q", topic)
	}
}
