package solar

import (
	"math"
	"time"
)

const degToRad = math.Pi / 180

// Position describes where the sun is in the sky, in degrees.
type Position struct {
	Altitude float64 // above the horizon, negative at night
	Azimuth  float64 // clockwise from North
	Zenith   float64 // from vertical, 90 - Altitude
}

// SunPosition computes the solar position for an instant at the given
// coordinates. It uses the single-harmonic declination and two-harmonic
// equation-of-time approximations, accurate to roughly one degree, which is
// plenty for power forecasting. The function never fails; at poles and edge
// dates it returns numerically valid if physically extreme values, and
// callers treat Altitude <= 0 as night.
func SunPosition(t time.Time, latitude, longitude float64) Position {
	t = t.UTC()
	n := float64(t.YearDay())

	// Declination in degrees
	decl := 23.45 * math.Sin(2*math.Pi*(284+n)/365)

	// Equation of time in minutes
	b := 2 * math.Pi * (n - 81) / 364
	eot := 9.87*math.Sin(2*b) - 7.53*math.Cos(b) - 1.5*math.Sin(b)

	utcHours := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
	solarTime := utcHours + longitude/15 + eot/60
	hourAngle := 15 * (solarTime - 12)

	latRad := latitude * degToRad
	declRad := decl * degToRad
	haRad := hourAngle * degToRad

	// Inverse-trig arguments are clamped to absorb floating-point overshoot.
	sinAlt := math.Sin(latRad)*math.Sin(declRad) + math.Cos(latRad)*math.Cos(declRad)*math.Cos(haRad)
	altitude := math.Asin(clamp(sinAlt, -1, 1)) / degToRad

	cosAlt := math.Max(math.Cos(altitude*degToRad), 1e-6)
	cosAz := (math.Sin(declRad)*math.Cos(latRad) - math.Cos(declRad)*math.Sin(latRad)*math.Cos(haRad)) / cosAlt
	azimuth := math.Acos(clamp(cosAz, -1, 1)) / degToRad
	if solarTime > 12 {
		// Acos only covers the morning half; mirror for the afternoon.
		azimuth = 360 - azimuth
	}

	return Position{
		Altitude: altitude,
		Azimuth:  azimuth,
		Zenith:   90 - altitude,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
