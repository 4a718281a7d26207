// Package forecast turns location, panel geometry, and whatever weather
// fields are available into a time series of expected AC watts.
//
// The Engine drives the physics chain from package solar once per time step,
// choosing a data-quality tier per step from the fields present in the
// nearest weather snapshot. Weather retrieval happens exactly once per run,
// up front, through the WeatherSource interface; everything after that is
// pure in-memory arithmetic.
package forecast
