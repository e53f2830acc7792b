package generator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"iotdashboard/backend/libs/telemetry"
)

// Range is a half-open interval [Min, Max).
type Range struct {
	Min float64
	Max float64
}

// Ranges bounds every generated field.
type Ranges struct {
	SensorReading        Range
	BatteryCharge        Range
	BatteryDischargeRate Range
}

// DefaultRanges covers both sides of every default alert threshold.
func DefaultRanges() Ranges {
	return Ranges{
		SensorReading:        Range{Min: 30, Max: 40},
		BatteryCharge:        Range{Min: -10, Max: 20},
		BatteryDischargeRate: Range{Min: 0, Max: 5},
	}
}

// Generator produces synthetic device readings without timestamps or
// location, like the real firmware.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	ranges Ranges
}

// New returns generator. A nil rng is seeded from the clock.
func New(ranges Ranges, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rng: rng, ranges: ranges}
}

// Reading returns one reading for deviceID.
func (g *Generator) Reading(deviceID string) telemetry.RawEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return telemetry.RawEvent{
		DeviceID:             deviceID,
		SensorReading:        g.sample(g.ranges.SensorReading),
		BatteryCharge:        g.sample(g.ranges.BatteryCharge),
		BatteryDischargeRate: g.sample(g.ranges.BatteryDischargeRate),
	}
}

func (g *Generator) sample(r Range) float64 {
	v := round2(r.Min + g.rng.Float64()*(r.Max-r.Min))
	// rounding may land on the open end
	if v >= r.Max {
		v = round2(r.Max - 0.01)
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
