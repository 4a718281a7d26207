package forecast

import (
	"context"
	"errors"
	"io"
	"log"
	"reflect"
	"testing"
	"time"
)

type stubSource struct {
	snaps []TimedSnapshot
	err   error
	calls int
}

func (s *stubSource) Fetch(_ context.Context, _, _ time.Time) ([]TimedSnapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.snaps, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// Installation used throughout: single south-facing 45° plane, 5 kWp, at
// lat 56.7 lon 13.0.
func testConfig() Config {
	return Config{
		Latitude:     56.7,
		Longitude:    13.0,
		Planes:       []Plane{{TiltDeg: 45, AzimuthDeg: 180, CapacityKWp: 5}},
		StepMinutes:  60,
		HorizonHours: 1,
	}
}

// summerNoon is close to local solar noon at lon 13 near the solstice.
var summerNoon = time.Date(2025, 6, 21, 11, 0, 0, 0, time.UTC)

func clearSummerSnapshot(at time.Time) []TimedSnapshot {
	return []TimedSnapshot{{
		Time: at,
		Snapshot: Snapshot{
			CloudCoverPct: f(0),
			TemperatureC:  f(20),
			WindSpeedMPS:  f(1),
		},
	}}
}

func TestForecastSummerNoon(t *testing.T) {
	src := &stubSource{snaps: clearSummerSnapshot(summerNoon)}
	eng := NewEngine(testConfig(), src, quietLogger())

	points, err := eng.Forecast(context.Background(), summerNoon)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
	if w := points[0].Watts; w < 3500 || w > 5000 {
		t.Errorf("clear summer noon output = %.0f W, want within [3500, 5000]", w)
	}
	if src.calls != 1 {
		t.Errorf("weather source fetched %d times, want exactly 1", src.calls)
	}
}

func TestForecastNightIsZero(t *testing.T) {
	midnight := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	// Even absurd weather inputs must not produce power at night.
	src := &stubSource{snaps: []TimedSnapshot{{
		Time:     midnight,
		Snapshot: Snapshot{GHI: f(900), DNI: f(800), DHI: f(100)},
	}}}
	eng := NewEngine(testConfig(), src, quietLogger())

	points, err := eng.Forecast(context.Background(), midnight)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if points[0].Watts != 0 {
		t.Errorf("night output = %.2f W, want exactly 0", points[0].Watts)
	}
}

func TestForecastSequenceShape(t *testing.T) {
	cfg := testConfig()
	cfg.StepMinutes = 30
	cfg.HorizonHours = 6
	eng := NewEngine(cfg, &stubSource{}, quietLogger())

	start := time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)
	points, err := eng.Forecast(context.Background(), start)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(points) != 12 {
		t.Fatalf("got %d points, want 12", len(points))
	}
	for i, p := range points {
		want := start.Add(time.Duration(i) * 30 * time.Minute)
		if !p.Time.Equal(want) {
			t.Errorf("point %d at %v, want %v", i, p.Time, want)
		}
		if p.Watts < 0 {
			t.Errorf("point %d negative watts: %.2f", i, p.Watts)
		}
	}
}

func TestForecastDeterministic(t *testing.T) {
	src := &stubSource{snaps: clearSummerSnapshot(summerNoon)}
	cfg := testConfig()
	cfg.HorizonHours = 24
	eng := NewEngine(cfg, src, quietLogger())

	first, err := eng.Forecast(context.Background(), summerNoon)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := eng.Forecast(context.Background(), summerNoon)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different sequences")
	}
}

func TestForecastTierSelection(t *testing.T) {
	t.Run("cloud only gives daytime output", func(t *testing.T) {
		src := &stubSource{snaps: []TimedSnapshot{{
			Time:     summerNoon,
			Snapshot: Snapshot{CloudCoverPct: f(50)},
		}}}
		eng := NewEngine(testConfig(), src, quietLogger())
		points, err := eng.Forecast(context.Background(), summerNoon)
		if err != nil {
			t.Fatalf("Forecast: %v", err)
		}
		if points[0].Watts <= 0 {
			t.Error("tier 2 daytime output should be non-zero")
		}
	})

	t.Run("nothing usable still estimates", func(t *testing.T) {
		src := &stubSource{snaps: []TimedSnapshot{{
			Time:     summerNoon,
			Snapshot: Snapshot{TemperatureC: f(18)},
		}}}
		eng := NewEngine(testConfig(), src, quietLogger())
		points, err := eng.Forecast(context.Background(), summerNoon)
		if err != nil {
			t.Fatalf("Forecast: %v", err)
		}
		if points[0].Watts <= 0 {
			t.Error("tier 3 daytime output should be non-zero")
		}
	})

	t.Run("direct irradiance is used as-is", func(t *testing.T) {
		src := &stubSource{snaps: []TimedSnapshot{{
			Time:     summerNoon,
			Snapshot: Snapshot{GHI: f(850), TemperatureC: f(20), WindSpeedMPS: f(1)},
		}}}
		eng := NewEngine(testConfig(), src, quietLogger())
		points, err := eng.Forecast(context.Background(), summerNoon)
		if err != nil {
			t.Fatalf("Forecast: %v", err)
		}
		if w := points[0].Watts; w < 3000 || w > 5500 {
			t.Errorf("tier 1 output = %.0f W, want plausible mid-day power", w)
		}
	})

	t.Run("more cloud means less power", func(t *testing.T) {
		run := func(cloud float64) float64 {
			src := &stubSource{snaps: []TimedSnapshot{{
				Time:     summerNoon,
				Snapshot: Snapshot{CloudCoverPct: f(cloud)},
			}}}
			eng := NewEngine(testConfig(), src, quietLogger())
			points, err := eng.Forecast(context.Background(), summerNoon)
			if err != nil {
				t.Fatalf("Forecast: %v", err)
			}
			return points[0].Watts
		}
		if clear, overcast := run(0), run(100); overcast >= clear {
			t.Errorf("overcast %.0f W >= clear %.0f W", overcast, clear)
		}
	})
}

func TestForecastUpstreamFailure(t *testing.T) {
	t.Run("degrade to clear sky", func(t *testing.T) {
		src := &stubSource{err: errors.New("connection refused")}
		eng := NewEngine(testConfig(), src, quietLogger())

		points, err := eng.Forecast(context.Background(), summerNoon)
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
		}
		if len(points) != 1 {
			t.Fatalf("got %d points, want full sequence despite failure", len(points))
		}
		if points[0].Watts <= 0 {
			t.Error("clear-sky degraded daytime output should be non-zero")
		}
	})

	t.Run("zero forecast policy", func(t *testing.T) {
		cfg := testConfig()
		cfg.HorizonHours = 3
		cfg.OnUpstreamError = ZeroForecast
		src := &stubSource{err: errors.New("timeout")}
		eng := NewEngine(cfg, src, quietLogger())

		points, err := eng.Forecast(context.Background(), summerNoon)
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
		}
		if len(points) != 3 {
			t.Fatalf("got %d points, want 3", len(points))
		}
		for i, p := range points {
			if p.Watts != 0 {
				t.Errorf("point %d = %.2f W, want 0", i, p.Watts)
			}
		}
	})
}

func TestNewEngineDegradedConfig(t *testing.T) {
	t.Run("empty planes fall back to default", func(t *testing.T) {
		cfg := testConfig()
		cfg.Planes = nil
		eng := NewEngine(cfg, &stubSource{}, quietLogger())

		planes := eng.Planes()
		if len(planes) != 1 {
			t.Fatalf("got %d planes, want 1 default", len(planes))
		}
		if planes[0].TiltDeg != 45 || planes[0].AzimuthDeg != 180 || planes[0].CapacityKWp != 5 {
			t.Errorf("default plane = %+v", planes[0])
		}
	})

	t.Run("invalid planes are dropped", func(t *testing.T) {
		cfg := testConfig()
		cfg.Planes = []Plane{
			{TiltDeg: 120, AzimuthDeg: 180, CapacityKWp: 5},
			{TiltDeg: 30, AzimuthDeg: 90, CapacityKWp: -2},
			{TiltDeg: 30, AzimuthDeg: 90, CapacityKWp: 3},
		}
		eng := NewEngine(cfg, &stubSource{}, quietLogger())
		if got := eng.Planes(); len(got) != 1 || got[0].CapacityKWp != 3 {
			t.Errorf("planes = %+v, want only the valid 3 kWp plane", got)
		}
	})

	t.Run("bad horizon length means unobstructed", func(t *testing.T) {
		src := &stubSource{snaps: clearSummerSnapshot(summerNoon)}

		bad := testConfig()
		bad.HorizonElevations = []float64{40, 40, 40}
		withBad, err := NewEngine(bad, src, quietLogger()).Forecast(context.Background(), summerNoon)
		if err != nil {
			t.Fatalf("Forecast: %v", err)
		}
		without, err := NewEngine(testConfig(), src, quietLogger()).Forecast(context.Background(), summerNoon)
		if err != nil {
			t.Fatalf("Forecast: %v", err)
		}
		if withBad[0].Watts != without[0].Watts {
			t.Errorf("bad horizon output %.2f != unobstructed output %.2f", withBad[0].Watts, without[0].Watts)
		}
	})

	t.Run("unsupported step normalizes to 60", func(t *testing.T) {
		cfg := testConfig()
		cfg.StepMinutes = 7
		eng := NewEngine(cfg, &stubSource{}, quietLogger())
		if eng.Step() != time.Hour {
			t.Errorf("step = %v, want 1h", eng.Step())
		}
	})
}

func TestForecastCalibration(t *testing.T) {
	run := func(calibration float64) float64 {
		cfg := testConfig()
		cfg.Planes = []Plane{{TiltDeg: 45, AzimuthDeg: 180, CapacityKWp: 5, Calibration: calibration}}
		src := &stubSource{snaps: clearSummerSnapshot(summerNoon)}
		eng := NewEngine(cfg, src, quietLogger())
		points, err := eng.Forecast(context.Background(), summerNoon)
		if err != nil {
			t.Fatalf("Forecast: %v", err)
		}
		return points[0].Watts
	}

	full := run(1.0)
	half := run(0.5)
	if half <= 0 || full <= 0 {
		t.Fatal("expected non-zero output")
	}
	if ratio := half / full; ratio < 0.49 || ratio > 0.51 {
		t.Errorf("calibration 0.5 gave ratio %.3f, want 0.5", ratio)
	}
}

func TestForecastInverterCap(t *testing.T) {
	cfg := testConfig()
	cfg.InverterCapW = 1000
	src := &stubSource{snaps: clearSummerSnapshot(summerNoon)}
	eng := NewEngine(cfg, src, quietLogger())

	points, err := eng.Forecast(context.Background(), summerNoon)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if points[0].Watts != 1000 {
		t.Errorf("capped output = %.2f W, want exactly 1000", points[0].Watts)
	}
}

func TestForecastHorizonBlocking(t *testing.T) {
	// A 70° wall to the south blocks the beam at noon; diffuse remains.
	cfg := testConfig()
	cfg.HorizonElevations = []float64{0, 0, 0, 0, 0, 70, 70, 70, 0, 0, 0, 0}
	src := &stubSource{snaps: clearSummerSnapshot(summerNoon)}

	blocked, err := NewEngine(cfg, src, quietLogger()).Forecast(context.Background(), summerNoon)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	open, err := NewEngine(testConfig(), src, quietLogger()).Forecast(context.Background(), summerNoon)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if blocked[0].Watts <= 0 {
		t.Error("blocked site should still collect diffuse light")
	}
	if blocked[0].Watts >= open[0].Watts/2 {
		t.Errorf("blocked output %.0f W not substantially below open output %.0f W",
			blocked[0].Watts, open[0].Watts)
	}
}

func TestForecastCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := NewEngine(testConfig(), &stubSource{}, quietLogger())
	if _, err := eng.Forecast(ctx, summerNoon); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
