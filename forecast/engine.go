package forecast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/devskill-org/pv-forecast/solar"
)

// ErrUpstreamUnavailable marks a forecast produced without upstream weather
// data. The returned point sequence is still complete and well-formed,
// degraded per the configured UpstreamPolicy; callers check with errors.Is.
var ErrUpstreamUnavailable = errors.New("weather source unavailable")

// UpstreamPolicy selects what the engine emits when the weather source fails.
type UpstreamPolicy int

const (
	// DegradeToClearSky runs the whole horizon on Tier 3 clear-sky estimates.
	DegradeToClearSky UpstreamPolicy = iota
	// ZeroForecast emits a correctly-sized all-zero sequence.
	ZeroForecast
)

// DefaultPlane is the fallback used when the configured plane list is empty
// or entirely invalid.
var DefaultPlane = Plane{TiltDeg: 45, AzimuthDeg: 180, CapacityKWp: 5}

// Config holds the per-installation parameters of a forecast run. All fields
// except Latitude/Longitude have working defaults applied by NewEngine.
type Config struct {
	Latitude  float64
	Longitude float64

	// Planes lists the array planes aggregated behind one inverter. Invalid
	// entries are dropped; an empty result falls back to DefaultPlane.
	Planes []Plane

	// HorizonElevations is an optional 12-sample horizon profile (degrees,
	// 30° azimuth steps from North). Any other length is treated as no
	// horizon data.
	HorizonElevations []float64

	StepMinutes  int // 15, 30 or 60
	HorizonHours int

	Albedo             float64  // ground reflectance; <= 0 means 0.2
	SVFOverride        *float64 // sky view factor override, nil = derive from horizon
	TempCoeff          float64  // power temperature coefficient 1/°C; 0 means -0.0038
	InverterEfficiency float64  // 0 < eff <= 1; out of range means 0.96
	InverterCapW       float64  // system-level AC cap; <= 0 means uncapped

	OnUpstreamError UpstreamPolicy
}

// Engine produces AC power forecasts for one installation. It is stateless
// across runs: identical inputs produce identical output, and concurrent
// runs need no locks.
type Engine struct {
	cfg     Config
	planes  []Plane
	horizon solar.HorizonProfile
	source  WeatherSource
	logger  *log.Logger
}

// NewEngine builds an engine for the given installation, applying documented
// defaults to malformed or missing configuration. Degraded input is logged
// and recovered; it never prevents construction.
func NewEngine(cfg Config, source WeatherSource, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}

	planes := make([]Plane, 0, len(cfg.Planes))
	for _, p := range cfg.Planes {
		if p.CapacityKWp <= 0 || p.TiltDeg < 0 || p.TiltDeg > 90 {
			logger.Printf("Warning: dropping invalid plane %+v", p)
			continue
		}
		if p.Calibration <= 0 {
			p.Calibration = 1.0
		}
		planes = append(planes, p)
	}
	if len(planes) == 0 {
		logger.Printf("Warning: no usable planes configured, using default %.0f° south %.1f kWp plane",
			DefaultPlane.TiltDeg, DefaultPlane.CapacityKWp)
		p := DefaultPlane
		p.Calibration = 1.0
		planes = []Plane{p}
	}

	horizon, ok := solar.NewHorizonProfile(cfg.HorizonElevations)
	if !ok && len(cfg.HorizonElevations) != 0 {
		logger.Printf("Warning: horizon profile has %d samples, want %d; assuming unobstructed horizon",
			len(cfg.HorizonElevations), solar.HorizonSamples)
	}

	switch cfg.StepMinutes {
	case 15, 30, 60:
	default:
		if cfg.StepMinutes != 0 {
			logger.Printf("Warning: unsupported step %d min, using 60", cfg.StepMinutes)
		}
		cfg.StepMinutes = 60
	}
	if cfg.HorizonHours <= 0 {
		cfg.HorizonHours = 48
	}
	if cfg.Albedo <= 0 {
		cfg.Albedo = solar.DefaultAlbedo
	}
	if cfg.TempCoeff == 0 {
		cfg.TempCoeff = solar.DefaultTempCoeff
	}
	if cfg.InverterEfficiency <= 0 || cfg.InverterEfficiency > 1 {
		cfg.InverterEfficiency = solar.DefaultInverterEfficiency
	}

	return &Engine{
		cfg:     cfg,
		planes:  planes,
		horizon: horizon,
		source:  source,
		logger:  logger,
	}
}

// Step returns the normalized step size.
func (e *Engine) Step() time.Duration {
	return time.Duration(e.cfg.StepMinutes) * time.Minute
}

// Planes returns the normalized plane list the engine forecasts with.
func (e *Engine) Planes() []Plane {
	out := make([]Plane, len(e.planes))
	copy(out, e.planes)
	return out
}

// Forecast produces the expected AC watts sequence starting at start, one
// point per step across the configured horizon, strictly chronological at a
// fixed step. The single weather fetch happens up front; per-step work is
// pure and synchronous, and cancellation is honored between steps.
//
// On weather-source failure the sequence is still returned in full, degraded
// per Config.OnUpstreamError, together with an error wrapping
// ErrUpstreamUnavailable so the condition is never silent.
func (e *Engine) Forecast(ctx context.Context, start time.Time) ([]Point, error) {
	step := e.Step()
	steps := e.cfg.HorizonHours * 60 / e.cfg.StepMinutes
	end := start.Add(time.Duration(e.cfg.HorizonHours) * time.Hour)

	var table []TimedSnapshot
	var upstreamErr error
	if e.source != nil {
		table, upstreamErr = e.source.Fetch(ctx, start, end)
	}
	if upstreamErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		upstreamErr = fmt.Errorf("%w: %v", ErrUpstreamUnavailable, upstreamErr)
		if e.cfg.OnUpstreamError == ZeroForecast {
			e.logger.Printf("Weather fetch failed, emitting zero forecast: %v", upstreamErr)
			points := make([]Point, steps)
			for i := range points {
				points[i] = Point{Time: start.Add(time.Duration(i) * step)}
			}
			return points, upstreamErr
		}
		e.logger.Printf("Weather fetch failed, degrading to clear-sky estimates: %v", upstreamErr)
		table = nil
	}

	points := make([]Point, 0, steps)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := start.Add(time.Duration(i) * step)
		points = append(points, Point{Time: t, Watts: e.stepWatts(t, table)})
	}
	return points, upstreamErr
}

// stepWatts runs the full physics chain for one time step.
func (e *Engine) stepWatts(t time.Time, table []TimedSnapshot) float64 {
	pos := solar.SunPosition(t, e.cfg.Latitude, e.cfg.Longitude)
	if pos.Altitude <= 0 {
		return 0 // night: the rest of the chain is skipped
	}

	snap := nearestSnapshot(table, t)
	caps := DetectCapabilities(snap)
	ghi, dhi, dni := e.irradianceFor(t, pos, snap, caps)

	dni, dhi = solar.ApplyHorizon(dni, dhi, pos.Altitude, pos.Azimuth, e.horizon, e.cfg.SVFOverride)

	// Thermal inputs fall back to mild reference conditions when absent.
	ambient := 20.0
	if caps.HasTemperature {
		ambient = *snap.TemperatureC
	}
	wind := 1.0
	if caps.HasWind {
		wind = *snap.WindSpeedMPS
	}

	var total float64
	for _, plane := range e.planes {
		poa := solar.POAIrradiance(ghi, dhi, dni, pos.Zenith, pos.Azimuth,
			plane.TiltDeg, plane.AzimuthDeg, e.cfg.Albedo)
		cell := solar.CellTemperature(poa, ambient, wind)
		dc := solar.DCPower(poa, cell, plane.CapacityKWp*1000, e.cfg.TempCoeff)
		ac := solar.ACPower(dc, e.cfg.InverterEfficiency, 0)
		total += ac * plane.Calibration
	}
	if e.cfg.InverterCapW > 0 && total > e.cfg.InverterCapW {
		total = e.cfg.InverterCapW
	}
	return total
}

// irradianceFor resolves (GHI, DHI, DNI) for one step according to the
// snapshot's tier.
func (e *Engine) irradianceFor(t time.Time, pos solar.Position, snap Snapshot, caps Capabilities) (ghi, dhi, dni float64) {
	etDNI := solar.ExtraterrestrialDNI(t.UTC().YearDay())
	cosZ := math.Cos(pos.Zenith * math.Pi / 180)

	switch caps.Tier {
	case TierDirect:
		if caps.HasDNI && caps.HasDHI {
			dni = math.Max(*snap.DNI, 0)
			dhi = math.Max(*snap.DHI, 0)
			if caps.HasGHI {
				ghi = math.Max(*snap.GHI, 0)
			} else {
				ghi = dni*math.Max(cosZ, 0) + dhi
			}
			return ghi, dhi, dni
		}
		ghi = math.Max(*snap.GHI, 0)
	case TierCloud:
		ghi = solar.CloudAttenuation(solar.ClearSkyGHI(pos.Zenith), *snap.CloudCoverPct/100)
	default:
		ghi = solar.ClearSkyGHI(pos.Zenith)
	}
	dhi, dni = solar.ErbsDecomposition(ghi, pos.Zenith, etDNI)
	return ghi, dhi, dni
}

// nearestSnapshot returns the snapshot closest in time to t, matching the
// upstream lookup semantics: no exact timestamp match is required. An empty
// table yields an empty snapshot, which classifies as Tier 3.
func nearestSnapshot(table []TimedSnapshot, t time.Time) Snapshot {
	var best Snapshot
	minDiff := time.Duration(math.MaxInt64)
	for i := range table {
		diff := table[i].Time.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			best = table[i].Snapshot
		}
	}
	return best
}
