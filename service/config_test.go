package service

import (
	"strings"
	"testing"
	"time"

	"github.com/devskill-org/pv-forecast/forecast"
)

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid, got: %v", err)
	}
}

func TestLoadConfigFromReader(t *testing.T) {
	jsonConfig := `{
		"latitude": 56.7,
		"longitude": 13.0,
		"planes": [
			{"tilt_deg": 30, "azimuth_deg": 180, "capacity_kwp": 8.2}
		],
		"step_minutes": 30,
		"horizon_hours": 24,
		"upstream_policy": "zero",
		"http_port": 8080,
		"forecast_refresh_interval": "30m",
		"inverter_poll_interval": "5s",
		"user_agent": "test/1.0 (test@example.com)"
	}`

	config, err := LoadConfigFromReader(strings.NewReader(jsonConfig))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if config.Latitude != 56.7 {
		t.Errorf("expected latitude 56.7, got %f", config.Latitude)
	}
	if len(config.Planes) != 1 {
		t.Fatalf("expected 1 plane, got %d", len(config.Planes))
	}
	if config.Planes[0].CapacityKWp != 8.2 {
		t.Errorf("expected capacity 8.2, got %f", config.Planes[0].CapacityKWp)
	}
	if config.StepMinutes != 30 {
		t.Errorf("expected step 30, got %d", config.StepMinutes)
	}
	if config.UpstreamPolicy != PolicyZero {
		t.Errorf("expected zero policy, got %s", config.UpstreamPolicy)
	}
	if config.ForecastRefreshInterval != 30*time.Minute {
		t.Errorf("expected 30m refresh interval, got %s", config.ForecastRefreshInterval)
	}
	if config.InverterPollInterval != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %s", config.InverterPollInterval)
	}

	// Defaults should survive a partial config
	if config.InverterEfficiency != 0.96 {
		t.Errorf("expected default inverter efficiency, got %f", config.InverterEfficiency)
	}
	if config.CalibrationWindow != 7*24*time.Hour {
		t.Errorf("expected default calibration window, got %s", config.CalibrationWindow)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	_, err := LoadConfigFromReader(strings.NewReader("{not json"))
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"latitude too high", func(c *Config) { c.Latitude = 91 }},
		{"longitude too low", func(c *Config) { c.Longitude = -181 }},
		{"negative plane tilt", func(c *Config) {
			c.Planes = []forecast.Plane{{TiltDeg: -5, AzimuthDeg: 180, CapacityKWp: 5}}
		}},
		{"zero plane capacity", func(c *Config) {
			c.Planes = []forecast.Plane{{TiltDeg: 45, AzimuthDeg: 180, CapacityKWp: 0}}
		}},
		{"albedo above 1", func(c *Config) { c.Albedo = 1.5 }},
		{"zero horizon hours", func(c *Config) { c.HorizonHours = 0 }},
		{"unknown upstream policy", func(c *Config) { c.UpstreamPolicy = "panic" }},
		{"positive temp coeff", func(c *Config) { c.TempCoeff = 0.004 }},
		{"inverter efficiency above 1", func(c *Config) { c.InverterEfficiency = 1.1 }},
		{"negative inverter cap", func(c *Config) { c.InverterCapW = -100 }},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }},
		{"zero api timeout", func(c *Config) { c.APITimeout = 0 }},
		{"port out of range", func(c *Config) { c.HTTPPort = 70000 }},
		{"zero refresh interval", func(c *Config) { c.ForecastRefreshInterval = 0 }},
		{"zero calibration window", func(c *Config) { c.CalibrationWindow = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigRoundTrip(t *testing.T) {
	original := DefaultConfig()
	original.StepMinutes = 15
	original.ForecastRefreshInterval = 45 * time.Minute

	var buf strings.Builder
	if err := original.SaveConfigToWriter(&buf); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadConfigFromReader(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}

	if loaded.StepMinutes != 15 {
		t.Errorf("step did not survive round trip, got %d", loaded.StepMinutes)
	}
	if loaded.ForecastRefreshInterval != 45*time.Minute {
		t.Errorf("refresh interval did not survive round trip, got %s", loaded.ForecastRefreshInterval)
	}
}

func TestEngineConfigConversion(t *testing.T) {
	config := DefaultConfig()
	config.UpstreamPolicy = PolicyZero
	config.StepMinutes = 30
	config.Planes = []forecast.Plane{{TiltDeg: 45, AzimuthDeg: 180, CapacityKWp: 5}}

	engineCfg := config.EngineConfig()

	if engineCfg.OnUpstreamError != forecast.ZeroForecast {
		t.Error("expected zero forecast policy")
	}
	if engineCfg.StepMinutes != 30 {
		t.Errorf("expected step 30, got %d", engineCfg.StepMinutes)
	}
	if len(engineCfg.Planes) != 1 {
		t.Errorf("expected 1 plane, got %d", len(engineCfg.Planes))
	}
}
