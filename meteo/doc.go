// Package meteo provides a client for the MET Norway Location Forecast API
// and adapts its timeseries into weather snapshots for the forecast engine.
//
// Basic usage:
//
//	client := meteo.NewClient("YourApp/1.0 (your-email@example.com)")
//	source := meteo.NewSource(client, 56.95, 24.11)
//
//	snaps, err := source.Fetch(ctx, time.Now(), time.Now().Add(48*time.Hour))
//	if err != nil {
//		log.Fatal(err)
//	}
//
// The MET service supplies cloud cover, temperature, and wind but no surface
// irradiance, so snapshots from this source classify as Tier 2 (cloud-derived)
// during daytime. Absent fields stay nil: absence is distinct from zero.
//
// For API details see https://api.met.no/weatherapi/locationforecast/2.0/documentation
package meteo
