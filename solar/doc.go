// Package solar implements the closed-form physics models used by the
// forecast engine: solar position, clear-sky irradiance, cloud attenuation,
// diffuse/direct decomposition, horizon shading, plane-of-array transposition,
// cell temperature, and PVWatts-style power conversion.
//
// All functions are pure: they depend only on their explicit inputs, never
// fail, and are safe for concurrent use. Angles at the API boundary are in
// degrees; irradiance is in W/m².
package solar
