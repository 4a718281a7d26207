package solar

import "math"

// DefaultAlbedo is the ground reflectance assumed when none is configured.
const DefaultAlbedo = 0.2

// POAIrradiance transposes horizontal irradiance components onto a tilted
// plane using the Hay-Davies-Klucher-Reindl (HDKR) anisotropic model: beam on
// the plane plus circumsolar and horizon-brightened diffuse plus a ground
// reflection term. All angles in degrees; the result is >= 0 and 0 whenever
// the sun is at or below the horizon.
func POAIrradiance(ghi, dhi, dni, zenith, sunAzimuth, tilt, panelAzimuth, albedo float64) float64 {
	if zenith >= 90 {
		return 0
	}
	zRad := zenith * degToRad
	tRad := tilt * degToRad

	cosAOI := math.Cos(zRad)*math.Cos(tRad) +
		math.Sin(zRad)*math.Sin(tRad)*math.Cos((sunAzimuth-panelAzimuth)*degToRad)
	if cosAOI < 0 {
		cosAOI = 0 // sun behind the plane
	}

	beam := dni * cosAOI

	// Anisotropy index: how beam-like the diffuse field is.
	var ai float64
	if dni+dhi > 0 {
		ai = dni / (dni + dhi)
	}
	var rb float64
	if cosZ := math.Cos(zRad); cosZ > 0 {
		rb = cosAOI / cosZ
	}
	// Horizon brightening modulation factor.
	var f float64
	if ghi > 0 {
		f = math.Sqrt(dni / ghi)
	}

	sinHalfTilt := math.Sin(tRad / 2)
	diffuse := dhi * (ai*rb + (1-ai)*(1+math.Cos(tRad))/2*(1+f*sinHalfTilt*sinHalfTilt*sinHalfTilt))
	ground := ghi * albedo * (1 - math.Cos(tRad)) / 2

	poa := beam + diffuse + ground
	if poa < 0 {
		poa = 0
	}
	return poa
}
