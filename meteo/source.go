package meteo

import (
	"context"
	"fmt"
	"time"

	"github.com/devskill-org/pv-forecast/forecast"
)

// Source adapts the MET client to the forecast engine's WeatherSource
// interface. Each Fetch performs exactly one upstream request and converts
// the returned timeseries into timed snapshots.
type Source struct {
	client *Client
	loc    Location
}

// NewSource creates a weather source for the given coordinates.
func NewSource(client *Client, latitude, longitude float64) *Source {
	return &Source{
		client: client,
		loc: Location{
			Latitude:  latitude,
			Longitude: longitude,
		},
	}
}

// Fetch retrieves the forecast and returns the snapshots whose valid time
// falls within [from - 1h, to + 1h]. The margin keeps nearest-time matching
// working at the edges of the requested range.
func (s *Source) Fetch(ctx context.Context, from, to time.Time) ([]forecast.TimedSnapshot, error) {
	met, err := s.client.GetCompact(ctx, QueryParams{Location: s.loc})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch MET forecast: %w", err)
	}
	if met.Properties == nil {
		return nil, fmt.Errorf("MET forecast has no properties")
	}

	lo := from.Add(-time.Hour)
	hi := to.Add(time.Hour)

	var snaps []forecast.TimedSnapshot
	for i := range met.Properties.Timeseries {
		step := &met.Properties.Timeseries[i]
		if step.Time.Before(lo) || step.Time.After(hi) {
			continue
		}
		snaps = append(snaps, forecast.TimedSnapshot{
			Time: step.Time,
			Snapshot: forecast.Snapshot{
				CloudCoverPct: step.GetCloudCoverage(),
				TemperatureC:  step.GetTemperature(),
				WindSpeedMPS:  step.GetWindSpeed(),
			},
		})
	}
	return snaps, nil
}
