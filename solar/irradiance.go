package solar

import "math"

// SolarConstant is the extraterrestrial irradiance at the mean Earth-Sun
// distance, in W/m².
const SolarConstant = 1367.0

// Eccentricity returns the Earth-Sun distance correction factor for the given
// day of year (Spencer's four-term Fourier series).
func Eccentricity(dayOfYear int) float64 {
	g := 2 * math.Pi * float64(dayOfYear-1) / 365
	return 1.00011 + 0.034221*math.Cos(g) + 0.00128*math.Sin(g) +
		0.000719*math.Cos(2*g) + 0.000077*math.Sin(2*g)
}

// ExtraterrestrialDNI returns the direct-normal irradiance at the top of the
// atmosphere for the given day of year.
func ExtraterrestrialDNI(dayOfYear int) float64 {
	return SolarConstant * Eccentricity(dayOfYear)
}

// ClearSkyGHI estimates global horizontal irradiance under a cloudless sky
// using the Haurwitz model. Returns 0 when the sun is at or below the horizon.
func ClearSkyGHI(zenith float64) float64 {
	cosZ := math.Cos(zenith * degToRad)
	if zenith >= 90 || cosZ <= 0 {
		return 0
	}
	ghi := 1098 * cosZ * math.Exp(-0.059/cosZ)
	if ghi < 0 {
		ghi = 0
	}
	return ghi
}

// CloudAttenuation reduces clear-sky GHI by the given cloud fraction (0..1,
// clamped). The curve keeps a 15% diffuse floor at full overcast and uses a
// 1.8 exponent, deliberately softer than the Kasten-Czeplak C^3.4 relation:
// forecast-grade cloud cover overstates opacity compared to the satellite
// measurements that relation was fitted to.
func CloudAttenuation(ghiClear, cloudFraction float64) float64 {
	c := clamp(cloudFraction, 0, 1)
	ghi := ghiClear * (0.15 + 0.85*math.Pow(1-c, 1.8))
	if ghi < 0 {
		ghi = 0
	}
	return ghi
}

// ErbsDecomposition splits global horizontal irradiance into its diffuse
// horizontal and direct normal components using the Erbs clearness-index
// correlation. Both results are >= 0; the sun at or below the horizon or a
// non-positive GHI yields (0, 0).
func ErbsDecomposition(ghi, zenith, extraterrestrialDNI float64) (dhi, dni float64) {
	if zenith >= 90 || ghi <= 0 {
		return 0, 0
	}
	cosZ := math.Cos(zenith * degToRad)

	// Clearness index: surface GHI over extraterrestrial horizontal.
	kt := clamp(ghi/math.Max(extraterrestrialDNI*cosZ, 1.0), 0, 1)

	var fd float64
	switch {
	case kt <= 0.22:
		fd = 1 - 0.09*kt
	case kt <= 0.80:
		fd = 0.9511 - 0.1604*kt + 4.388*kt*kt - 16.638*kt*kt*kt + 12.336*kt*kt*kt*kt
	default:
		fd = 0.165
	}
	fd = clamp(fd, 0, 1)

	dhi = fd * ghi
	dni = (ghi - dhi) / math.Max(cosZ, 1e-6)
	if dni < 0 {
		dni = 0
	}
	return dhi, dni
}
