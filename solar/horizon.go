package solar

import "math"

// HorizonSamples is the number of altitude samples in a horizon profile.
const HorizonSamples = 12

const horizonStepDeg = 360.0 / HorizonSamples

// HorizonProfile holds the altitude of the local horizon, in degrees, sampled
// every 30° of azimuth starting at North. An all-zero profile means an
// unobstructed horizon.
type HorizonProfile [HorizonSamples]float64

// NewHorizonProfile builds a profile from a raw slice. The second return is
// false when the slice does not have exactly HorizonSamples entries, in which
// case the zero (unobstructed) profile is returned.
func NewHorizonProfile(elevations []float64) (HorizonProfile, bool) {
	var p HorizonProfile
	if len(elevations) != HorizonSamples {
		return p, false
	}
	copy(p[:], elevations)
	return p, true
}

// AltitudeAt returns the horizon altitude at the given azimuth, linearly
// interpolated between the two nearest samples and wrapping across North.
func (p HorizonProfile) AltitudeAt(azimuth float64) float64 {
	az := math.Mod(azimuth, 360)
	if az < 0 {
		az += 360
	}
	i := int(az/horizonStepDeg) % HorizonSamples
	j := (i + 1) % HorizonSamples
	frac := (az - float64(i)*horizonStepDeg) / horizonStepDeg
	return p[i]*(1-frac) + p[j]*frac
}

// SkyViewFactor estimates the unobstructed fraction of the sky hemisphere as
// 1 minus the mean sine of the sampled horizon altitudes, clamped to
// [0.7, 1.0]. Even heavily obstructed sites keep substantial diffuse light.
func (p HorizonProfile) SkyViewFactor() float64 {
	var sum float64
	for _, h := range p {
		sum += math.Sin(h * degToRad)
	}
	return clamp(1-sum/HorizonSamples, 0.7, 1.0)
}

// ApplyHorizon zeroes DNI when the sun sits below the interpolated horizon at
// its azimuth and scales DHI by the sky view factor. The cutoff is a hard
// binary: no penumbra or partial occlusion is modelled. A non-nil svfOverride
// replaces the profile-derived factor.
func ApplyHorizon(dni, dhi, sunAltitude, sunAzimuth float64, p HorizonProfile, svfOverride *float64) (float64, float64) {
	if sunAltitude < p.AltitudeAt(sunAzimuth) {
		dni = 0
	}
	svf := p.SkyViewFactor()
	if svfOverride != nil {
		svf = *svfOverride
	}
	return dni, dhi * svf
}
