package telemetry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationTableBands(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		table := NewLocationTable(DefaultLocationConfig(), rand.New(rand.NewSource(seed)))

		for _, id := range KnownDevices {
			assert.Truef(t, table.Band(id).Contains(table.Lookup(id)), "seed %d device %s", seed, id)
		}
	}
}

func TestLocationTableHopperBand(t *testing.T) {
	table := NewLocationTable(DefaultLocationConfig(), rand.New(rand.NewSource(7)))

	loc := table.Lookup("hopper")
	assert.GreaterOrEqual(t, loc.Lat, 35.26)
	assert.LessOrEqual(t, loc.Lat, 36.26)
	assert.GreaterOrEqual(t, loc.Lon, -118.62)
	assert.LessOrEqual(t, loc.Lon, -117.62)
}

func TestLocationTableUnknownDeviceUsesBase(t *testing.T) {
	table := NewLocationTable(DefaultLocationConfig(), rand.New(rand.NewSource(1)))

	assert.Equal(t, Location{Lat: 37.26, Lon: -119.62}, table.Lookup("lovelace"))
	assert.True(t, table.Band("lovelace").Contains(Location{Lat: 37.26, Lon: -119.62}))
}

func TestLocationTableWithoutJitter(t *testing.T) {
	cfg := DefaultLocationConfig()
	cfg.JitterMin, cfg.JitterMax = 0, 0

	table := NewLocationTable(cfg, nil)

	assert.InDelta(t, 47.26, table.Lookup("turing").Lat, 1e-9)
	assert.InDelta(t, -99.62, table.Lookup("turing").Lon, 1e-9)
}

func TestLocationTableIsolatedFromConfigMutation(t *testing.T) {
	cfg := DefaultLocationConfig()
	table := NewLocationTable(cfg, rand.New(rand.NewSource(3)))
	before := table.Lookup("knuth")

	cfg.Offsets["knuth"] = Location{Lat: 100, Lon: 100}

	assert.Equal(t, before, table.Lookup("knuth"))
}
