package telemetry

import (
	"math/rand"
	"time"
)

// Known demo devices.
const (
	DeviceHopper = "hopper"
	DeviceKnuth  = "knuth"
	DeviceTuring = "turing"
)

// KnownDevices lists the default simulator fleet.
var KnownDevices = []string{DeviceKnuth, DeviceHopper, DeviceTuring}

// LocationConfig describes the fallback coordinates used when a device
// does not report its own position.
type LocationConfig struct {
	Base      Location            `yaml:"base"`
	Offsets   map[string]Location `yaml:"offsets"`
	JitterMin float64             `yaml:"jitterMin"`
	JitterMax float64             `yaml:"jitterMax"`
}

// DefaultLocationConfig returns the demo deployment layout.
func DefaultLocationConfig() LocationConfig {
	return LocationConfig{
		Base: Location{Lat: 37.26, Lon: -119.62},
		Offsets: map[string]Location{
			DeviceHopper: {Lat: 0, Lon: 3},
			DeviceKnuth:  {Lat: 3, Lon: 40},
			DeviceTuring: {Lat: 10, Lon: 20},
		},
		JitterMin: -2,
		JitterMax: -1,
	}
}

// Bounds is the interval a device's fallback coordinate falls in.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether loc lies inside the closed bounds.
func (b Bounds) Contains(loc Location) bool {
	return loc.Lat >= b.MinLat && loc.Lat <= b.MaxLat &&
		loc.Lon >= b.MinLon && loc.Lon <= b.MaxLon
}

// LocationTable maps device ids to fallback coordinates. It is built once
// and never mutated, so it is safe to share between goroutines.
type LocationTable struct {
	base    Location
	offsets map[string]Location
	entries map[string]Location
	jMin    float64
	jMax    float64
}

// NewLocationTable draws the jitter for every configured device once.
// A nil rng seeds one from the clock.
func NewLocationTable(cfg LocationConfig, rng *rand.Rand) *LocationTable {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	jMin, jMax := cfg.JitterMin, cfg.JitterMax
	if jMax < jMin {
		jMin, jMax = jMax, jMin
	}

	t := &LocationTable{
		base:    cfg.Base,
		offsets: make(map[string]Location, len(cfg.Offsets)),
		entries: make(map[string]Location, len(cfg.Offsets)),
		jMin:    jMin,
		jMax:    jMax,
	}
	for id, off := range cfg.Offsets {
		t.offsets[id] = off
		t.entries[id] = Location{
			Lat: cfg.Base.Lat + off.Lat + jitter(rng, jMin, jMax),
			Lon: cfg.Base.Lon + off.Lon + jitter(rng, jMin, jMax),
		}
	}
	return t
}

func jitter(rng *rand.Rand, lo, hi float64) float64 {
	if lo == hi {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// Lookup returns the fallback coordinate for a device. Unknown devices get
// the base coordinate.
func (t *LocationTable) Lookup(deviceID string) Location {
	if loc, ok := t.entries[deviceID]; ok {
		return loc
	}
	return t.base
}

// Band returns where Lookup(deviceID) may land for any jitter draw.
func (t *LocationTable) Band(deviceID string) Bounds {
	off, ok := t.offsets[deviceID]
	if !ok {
		return Bounds{MinLat: t.base.Lat, MaxLat: t.base.Lat, MinLon: t.base.Lon, MaxLon: t.base.Lon}
	}
	lat := t.base.Lat + off.Lat
	lon := t.base.Lon + off.Lon
	return Bounds{
		MinLat: lat + t.jMin, MaxLat: lat + t.jMax,
		MinLon: lon + t.jMin, MaxLon: lon + t.jMax,
	}
}
