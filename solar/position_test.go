package solar

import (
	"math"
	"testing"
	"time"

	"github.com/sixdouglas/suncalc"
)

func TestSunPositionSolarNoon(t *testing.T) {
	// Riga at local solar noon near the summer solstice: the sun should be
	// close to due south with altitude near 90 - lat + decl.
	lat, lon := 56.9496, 24.1052
	// Solar noon at lon 24.1 is roughly 10:24 UTC.
	noon := time.Date(2025, 6, 21, 10, 24, 0, 0, time.UTC)

	pos := SunPosition(noon, lat, lon)

	wantAlt := 90 - lat + 23.44
	if math.Abs(pos.Altitude-wantAlt) > 2 {
		t.Errorf("noon altitude = %.2f, want about %.2f", pos.Altitude, wantAlt)
	}
	if math.Abs(pos.Azimuth-180) > 10 {
		t.Errorf("noon azimuth = %.2f, want about 180", pos.Azimuth)
	}
	if math.Abs(pos.Zenith-(90-pos.Altitude)) > 1e-9 {
		t.Errorf("zenith = %.4f, want 90 - altitude = %.4f", pos.Zenith, 90-pos.Altitude)
	}
}

func TestSunPositionNight(t *testing.T) {
	lat, lon := 56.9496, 24.1052
	midnight := time.Date(2025, 1, 15, 22, 30, 0, 0, time.UTC)

	pos := SunPosition(midnight, lat, lon)
	if pos.Altitude > 0 {
		t.Errorf("winter midnight altitude = %.2f, want negative", pos.Altitude)
	}
}

func TestSunPositionAfternoonWest(t *testing.T) {
	lat, lon := 56.9496, 24.1052
	afternoon := time.Date(2025, 6, 21, 15, 0, 0, 0, time.UTC)

	pos := SunPosition(afternoon, lat, lon)
	if pos.Azimuth <= 180 {
		t.Errorf("afternoon azimuth = %.2f, want > 180 (west of south)", pos.Azimuth)
	}
}

func TestSunPositionPolesFinite(t *testing.T) {
	// Extreme latitudes must still produce finite, in-range output.
	for _, lat := range []float64{90, -90} {
		for hour := 0; hour < 24; hour += 6 {
			ts := time.Date(2025, 12, 21, hour, 0, 0, 0, time.UTC)
			pos := SunPosition(ts, lat, 0)
			if math.IsNaN(pos.Altitude) || math.IsInf(pos.Altitude, 0) {
				t.Fatalf("lat %.0f hour %d: altitude not finite: %v", lat, hour, pos.Altitude)
			}
			if math.IsNaN(pos.Azimuth) || pos.Azimuth < 0 || pos.Azimuth > 360 {
				t.Fatalf("lat %.0f hour %d: azimuth out of range: %v", lat, hour, pos.Azimuth)
			}
		}
	}
}

// TestSunPositionAgainstSuncalc cross-checks the closed-form approximation
// against the suncalc astronomy library. The approximation is expected to be
// within a few degrees during daytime.
func TestSunPositionAgainstSuncalc(t *testing.T) {
	lat, lon := 56.9496, 24.1052

	times := []time.Time{
		time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 22, 14, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 21, 11, 0, 0, 0, time.UTC),
	}

	for _, ts := range times {
		t.Run(ts.Format("2006-01-02T15:04"), func(t *testing.T) {
			got := SunPosition(ts, lat, lon)
			ref := suncalc.GetPosition(ts, lat, lon)

			refAlt := ref.Altitude * 180 / math.Pi
			// suncalc measures azimuth from south, positive towards west.
			refAz := math.Mod(ref.Azimuth*180/math.Pi+180+360, 360)

			if math.Abs(got.Altitude-refAlt) > 5 {
				t.Errorf("altitude = %.2f, suncalc = %.2f", got.Altitude, refAlt)
			}
			if got.Altitude > 5 {
				diff := math.Abs(got.Azimuth - refAz)
				if diff > 180 {
					diff = 360 - diff
				}
				if diff > 10 {
					t.Errorf("azimuth = %.2f, suncalc = %.2f", got.Azimuth, refAz)
				}
			}
		})
	}
}
