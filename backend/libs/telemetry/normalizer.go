package telemetry

import "time"

// ISOLayout is the local timestamp layout stored in timeStampIso.
const ISOLayout = "2006-01-02T15:04:05.000"

// Completeness tells whether an event already carries timestamp and location.
type Completeness int

const (
	// NeedsSynthesis means at least one of epoch, ISO or location is absent.
	NeedsSynthesis Completeness = iota
	// Complete means all three are present.
	Complete
)

func (c Completeness) String() string {
	if c == Complete {
		return "complete"
	}
	return "needs_synthesis"
}

// Classify reports whether the event can pass through untouched.
func Classify(event RawEvent) Completeness {
	if event.TimeStampEpoch != nil && event.TimeStampISO != nil && event.Location != nil {
		return Complete
	}
	return NeedsSynthesis
}

// Normalizer turns raw events into records.
type Normalizer struct {
	locations *LocationTable
	now       func() time.Time
	zone      *time.Location
}

// NormalizerOption customises a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithZone sets the zone used to render timeStampIso. Defaults to time.Local.
func WithZone(zone *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if zone != nil {
			n.zone = zone
		}
	}
}

// NewNormalizer builds a normalizer backed by an immutable location table.
func NewNormalizer(locations *LocationTable, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		locations: locations,
		now:       time.Now,
		zone:      time.Local,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns a record with timestamp and location guaranteed. When any
// of the three is missing all three are replaced, never just the missing one.
func (n *Normalizer) Normalize(event RawEvent) Record {
	rec := Record{
		DeviceID:             event.DeviceID,
		SensorReading:        event.SensorReading,
		BatteryCharge:        event.BatteryCharge,
		BatteryDischargeRate: event.BatteryDischargeRate,
	}

	if Classify(event) == Complete {
		rec.TimeStampEpoch = *event.TimeStampEpoch
		rec.TimeStampISO = *event.TimeStampISO
		rec.Location = *event.Location
		return rec
	}

	now := n.now()
	rec.TimeStampEpoch = now.UnixMilli()
	rec.TimeStampISO = now.In(n.zone).Format(ISOLayout)
	rec.Location = n.locations.Lookup(event.DeviceID)
	return rec
}
