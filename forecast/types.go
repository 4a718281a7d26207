package forecast

import (
	"context"
	"time"
)

// Plane describes one PV array plane. An installation has one or more planes
// feeding a single inverter system.
type Plane struct {
	TiltDeg     float64 `json:"tilt_deg"`     // 0 = horizontal, 90 = vertical
	AzimuthDeg  float64 `json:"azimuth_deg"`  // 0 = North, 180 = South
	CapacityKWp float64 `json:"capacity_kwp"` // nameplate DC rating
	Calibration float64 `json:"calibration,omitempty"` // output multiplier; <= 0 means 1.0
}

// Snapshot carries the weather fields available for one instant. A nil field
// means the upstream forecast did not provide it, which is distinct from a
// zero value and drives tier selection.
type Snapshot struct {
	GHI           *float64 // global horizontal irradiance, W/m²
	DNI           *float64 // direct normal irradiance, W/m²
	DHI           *float64 // diffuse horizontal irradiance, W/m²
	CloudCoverPct *float64 // 0-100
	TemperatureC  *float64
	WindSpeedMPS  *float64
}

// TimedSnapshot pairs a snapshot with the instant it is valid for.
type TimedSnapshot struct {
	Time     time.Time
	Snapshot Snapshot
}

// Point is one step of the forecast output, the sole unit crossing the
// engine's boundary.
type Point struct {
	Time  time.Time `json:"time"`
	Watts float64   `json:"watts"`
}

// WeatherSource supplies weather snapshots covering a time range. An
// implementation performs at most one upstream fetch per call; the engine
// indexes the result and never calls back per step. Implementations own
// their timeouts; the context bounds the fetch, not the arithmetic that
// follows.
type WeatherSource interface {
	Fetch(ctx context.Context, from, to time.Time) ([]TimedSnapshot, error)
}
