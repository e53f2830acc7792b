package generator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadingStaysInRangeWithTwoDecimals(t *testing.T) {
	g := New(DefaultRanges(), rand.New(rand.NewSource(7)))

	for i := 0; i < 1000; i++ {
		ev := g.Reading("knuth")
		assert.Equal(t, "knuth", ev.DeviceID)
		assertInRange(t, ev.SensorReading, 30, 40)
		assertInRange(t, ev.BatteryCharge, -10, 20)
		assertInRange(t, ev.BatteryDischargeRate, 0, 5)
		assert.Nil(t, ev.TimeStampEpoch)
		assert.Nil(t, ev.TimeStampISO)
		assert.Nil(t, ev.Location)
	}
}

func assertInRange(t *testing.T, v, lo, hi float64) {
	t.Helper()
	assert.GreaterOrEqual(t, v, lo)
	assert.Less(t, v, hi)
	assert.InDelta(t, v, math.Round(v*100)/100, 1e-9)
}

func TestSampleClampsOpenEnd(t *testing.T) {
	g := New(Ranges{SensorReading: Range{Min: 0.999, Max: 1}}, rand.New(rand.NewSource(1)))

	for i := 0; i < 100; i++ {
		assert.Less(t, g.Reading("hopper").SensorReading, 1.0)
	}
}
