package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPayload marks a payload that is neither a single event nor a batch envelope.
	ErrInvalidPayload = errors.New("telemetry: invalid payload")
	// ErrMissingDeviceID marks an event without a device identifier.
	ErrMissingDeviceID = errors.New("telemetry: device id is required")
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat" dynamodbav:"lat"`
	Lon float64 `json:"lon" dynamodbav:"lon"`
}

// RawEvent is a reading as published by a device or an edge gateway.
// Timestamp and location are optional on the wire.
type RawEvent struct {
	DeviceID             string    `json:"deviceId"`
	SensorReading        float64   `json:"sensorReading"`
	BatteryCharge        float64   `json:"batteryCharge"`
	BatteryDischargeRate float64   `json:"batteryDischargeRate"`
	TimeStampEpoch       *int64    `json:"timeStampEpoch,omitempty"`
	TimeStampISO         *string   `json:"timeStampIso,omitempty"`
	Location             *Location `json:"location,omitempty"`
}

// Record is a normalized reading. Only the Normalizer and the stores produce it.
type Record struct {
	DeviceID             string   `json:"deviceId" dynamodbav:"deviceId"`
	SensorReading        float64  `json:"sensorReading" dynamodbav:"sensorReading"`
	BatteryCharge        float64  `json:"batteryCharge" dynamodbav:"batteryCharge"`
	BatteryDischargeRate float64  `json:"batteryDischargeRate" dynamodbav:"batteryDischargeRate"`
	TimeStampEpoch       int64    `json:"timeStampEpoch" dynamodbav:"timeStampEpoch"`
	TimeStampISO         string   `json:"timeStampIso" dynamodbav:"timeStampIso"`
	Location             Location `json:"location" dynamodbav:"location"`
}

// Raw converts a record back to its wire form with every optional field set.
func (r Record) Raw() RawEvent {
	epoch := r.TimeStampEpoch
	iso := r.TimeStampISO
	loc := r.Location
	return RawEvent{
		DeviceID:             r.DeviceID,
		SensorReading:        r.SensorReading,
		BatteryCharge:        r.BatteryCharge,
		BatteryDischargeRate: r.BatteryDischargeRate,
		TimeStampEpoch:       &epoch,
		TimeStampISO:         &iso,
		Location:             &loc,
	}
}

// Batch is the aggregated envelope published by edge gateways.
type Batch struct {
	Records []RawEvent `json:"records"`
}

// Envelope is a decoded inbound payload: either one event or a batch.
type Envelope struct {
	Single  *RawEvent
	Records []RawEvent
	IsBatch bool
}

// Events returns the events carried by the envelope in arrival order.
func (e Envelope) Events() []RawEvent {
	if e.IsBatch {
		return e.Records
	}
	if e.Single == nil {
		return nil
	}
	return []RawEvent{*e.Single}
}

// SingleEnvelope wraps one event.
func SingleEnvelope(event RawEvent) Envelope {
	return Envelope{Single: &event}
}

// BatchEnvelope wraps a batch of events.
func BatchEnvelope(events []RawEvent) Envelope {
	return Envelope{Records: events, IsBatch: true}
}

// DecodeEnvelope classifies a JSON payload. An object with a non-null
// "records" member is a batch; any other object is a single event.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, ErrInvalidPayload
	}

	var probe struct {
		Records json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if len(probe.Records) > 0 && !bytes.Equal(probe.Records, []byte("null")) {
		var batch Batch
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return Envelope{}, fmt.Errorf("%w: records: %v", ErrInvalidPayload, err)
		}
		return BatchEnvelope(batch.Records), nil
	}

	var event RawEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return SingleEnvelope(event), nil
}

// Validate rejects events that cannot be keyed in the stores.
func Validate(event RawEvent) error {
	if strings.TrimSpace(event.DeviceID) == "" {
		return ErrMissingDeviceID
	}
	return nil
}
