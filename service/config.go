package service

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/devskill-org/pv-forecast/forecast"
)

// Upstream policy names accepted in configuration
const (
	PolicyClearSky = "clear_sky"
	PolicyZero     = "zero"
)

// Config represents the configuration for the PV forecast service
type Config struct {
	// Site settings
	Latitude  float64 `json:"latitude"`  // Site latitude in degrees
	Longitude float64 `json:"longitude"` // Site longitude in degrees

	// Array geometry
	Planes            []forecast.Plane `json:"planes"`             // Panel planes; empty means use the default plane
	HorizonElevations []float64        `json:"horizon_elevations"` // 12 horizon elevation samples in degrees, clockwise from north
	Albedo            float64          `json:"albedo"`             // Ground reflectance (0-1)
	SVFOverride       *float64         `json:"svf_override"`       // Sky view factor override, nil = derive from horizon

	// Forecast settings
	StepMinutes    int    `json:"step_minutes"`    // Forecast step: 15, 30 or 60 minutes
	HorizonHours   int    `json:"horizon_hours"`   // Forecast horizon in hours
	UpstreamPolicy string `json:"upstream_policy"` // Behavior when weather fetch fails: clear_sky or zero

	// Electrical settings
	TempCoeff          float64 `json:"temp_coeff"`          // Power temperature coefficient per °C (negative)
	InverterEfficiency float64 `json:"inverter_efficiency"` // DC to AC conversion efficiency (0-1)
	InverterCapW       float64 `json:"inverter_cap_w"`      // AC output cap in watts (0 = uncapped)

	// Weather API settings
	UserAgent  string        `json:"user_agent"`  // User agent for weather API client
	APITimeout time.Duration `json:"api_timeout"` // Timeout for API calls

	// Service settings
	HTTPPort                int           `json:"http_port"`                 // Port for web server (0 = disabled)
	ForecastRefreshInterval time.Duration `json:"forecast_refresh_interval"` // How often to recompute the forecast
	DryRun                  bool          `json:"dry_run"`                   // Log database writes instead of executing them

	// Logging settings
	LogLevel  string `json:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `json:"log_format"` // Log format: text, json

	// Inverter Modbus server
	InverterModbusAddress string        `json:"inverter_modbus_address"` // Inverter Modbus server address (format: IP:PORT)
	InverterPollInterval  time.Duration `json:"inverter_poll_interval"`  // Poll interval for inverter AC power

	// Metrics and calibration
	PostgresConnString   string        `json:"postgres_conn_string"`  // PostgreSQL connection string (empty = disabled)
	MetricsFlushInterval time.Duration `json:"metrics_flush_interval"` // How often to persist observed/forecast pairs
	CalibrationInterval  time.Duration `json:"calibration_interval"`   // How often to recompute the calibration factor
	CalibrationWindow    time.Duration `json:"calibration_window"`     // How far back calibration looks
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Latitude:                56.9496, // Riga, Latvia
		Longitude:               24.1052, // Riga, Latvia
		Planes:                  nil,
		HorizonElevations:       nil,
		Albedo:                  0.2,
		StepMinutes:             60,
		HorizonHours:            48,
		UpstreamPolicy:          PolicyClearSky,
		TempCoeff:               -0.0038,
		InverterEfficiency:      0.96,
		InverterCapW:            0,
		UserAgent:               "MyApp/1.0 (username@example.com)",
		APITimeout:              30 * time.Second,
		HTTPPort:                0,
		ForecastRefreshInterval: 1 * time.Hour,
		DryRun:                  false,
		LogLevel:                "info",
		LogFormat:               "text",
		InverterModbusAddress:   "",
		InverterPollInterval:    10 * time.Second,
		PostgresConnString:      "",
		MetricsFlushInterval:    15 * time.Minute,
		CalibrationInterval:     24 * time.Hour,
		CalibrationWindow:       7 * 24 * time.Hour,
	}
}

// LoadConfig loads configuration from a JSON file
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	config := DefaultConfig()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config JSON: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to a JSON file
func (c *Config) SaveConfig(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	return c.SaveConfigToWriter(file)
}

// SaveConfigToWriter saves the configuration to an io.Writer
func (c *Config) SaveConfigToWriter(writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config JSON: %w", err)
	}

	return nil
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", c.Latitude)
	}

	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", c.Longitude)
	}

	for i, plane := range c.Planes {
		if plane.TiltDeg < 0 || plane.TiltDeg > 90 {
			return fmt.Errorf("plane %d: tilt must be between 0 and 90, got: %f", i, plane.TiltDeg)
		}
		if plane.AzimuthDeg < 0 || plane.AzimuthDeg >= 360 {
			return fmt.Errorf("plane %d: azimuth must be between 0 and 360, got: %f", i, plane.AzimuthDeg)
		}
		if plane.CapacityKWp <= 0 {
			return fmt.Errorf("plane %d: capacity must be greater than 0, got: %f", i, plane.CapacityKWp)
		}
	}

	if c.Albedo < 0 || c.Albedo > 1 {
		return fmt.Errorf("albedo must be between 0 and 1, got: %f", c.Albedo)
	}

	if c.SVFOverride != nil && (*c.SVFOverride < 0 || *c.SVFOverride > 1) {
		return fmt.Errorf("svf_override must be between 0 and 1, got: %f", *c.SVFOverride)
	}

	if c.HorizonHours <= 0 {
		return fmt.Errorf("horizon_hours must be greater than 0, got: %d", c.HorizonHours)
	}

	if c.UpstreamPolicy != PolicyClearSky && c.UpstreamPolicy != PolicyZero {
		return fmt.Errorf("invalid upstream_policy: %s, must be one of: %s, %s", c.UpstreamPolicy, PolicyClearSky, PolicyZero)
	}

	if c.TempCoeff > 0 {
		return fmt.Errorf("temp_coeff must be zero or negative, got: %f", c.TempCoeff)
	}

	if c.InverterEfficiency <= 0 || c.InverterEfficiency > 1 {
		return fmt.Errorf("inverter_efficiency must be between 0 and 1, got: %f", c.InverterEfficiency)
	}

	if c.InverterCapW < 0 {
		return fmt.Errorf("inverter_cap_w must be non-negative, got: %f", c.InverterCapW)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}

	if c.APITimeout <= 0 {
		return fmt.Errorf("api_timeout must be greater than 0, got: %s", c.APITimeout)
	}

	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 0 and 65535, got: %d", c.HTTPPort)
	}

	if c.ForecastRefreshInterval <= 0 {
		return fmt.Errorf("forecast_refresh_interval must be greater than 0, got: %s", c.ForecastRefreshInterval)
	}

	if c.InverterPollInterval <= 0 {
		return fmt.Errorf("inverter_poll_interval must be greater than 0, got: %s", c.InverterPollInterval)
	}

	if c.MetricsFlushInterval <= 0 {
		return fmt.Errorf("metrics_flush_interval must be greater than 0, got: %s", c.MetricsFlushInterval)
	}

	if c.CalibrationInterval <= 0 {
		return fmt.Errorf("calibration_interval must be greater than 0, got: %s", c.CalibrationInterval)
	}

	if c.CalibrationWindow <= 0 {
		return fmt.Errorf("calibration_window must be greater than 0, got: %s", c.CalibrationWindow)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s, must be one of: debug, info, warn, error", c.LogLevel)
	}

	// Validate log format
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log_format: %s, must be one of: text, json", c.LogFormat)
	}

	return nil
}

// EngineConfig converts the service configuration into an engine configuration
func (c *Config) EngineConfig() forecast.Config {
	policy := forecast.DegradeToClearSky
	if c.UpstreamPolicy == PolicyZero {
		policy = forecast.ZeroForecast
	}

	return forecast.Config{
		Latitude:           c.Latitude,
		Longitude:          c.Longitude,
		Planes:             c.Planes,
		HorizonElevations:  c.HorizonElevations,
		Albedo:             c.Albedo,
		SVFOverride:        c.SVFOverride,
		StepMinutes:        c.StepMinutes,
		HorizonHours:       c.HorizonHours,
		TempCoeff:          c.TempCoeff,
		InverterEfficiency: c.InverterEfficiency,
		InverterCapW:       c.InverterCapW,
		OnUpstreamError:    policy,
	}
}

// MarshalJSON implements custom JSON marshaling to handle durations
func (c *Config) MarshalJSON() ([]byte, error) {
	type Alias Config
	return json.Marshal(&struct {
		*Alias
		APITimeout              string `json:"api_timeout"`
		ForecastRefreshInterval string `json:"forecast_refresh_interval"`
		InverterPollInterval    string `json:"inverter_poll_interval"`
		MetricsFlushInterval    string `json:"metrics_flush_interval"`
		CalibrationInterval     string `json:"calibration_interval"`
		CalibrationWindow       string `json:"calibration_window"`
	}{
		Alias:                   (*Alias)(c),
		APITimeout:              c.APITimeout.String(),
		ForecastRefreshInterval: c.ForecastRefreshInterval.String(),
		InverterPollInterval:    c.InverterPollInterval.String(),
		MetricsFlushInterval:    c.MetricsFlushInterval.String(),
		CalibrationInterval:     c.CalibrationInterval.String(),
		CalibrationWindow:       c.CalibrationWindow.String(),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling to handle durations
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		*Alias
		APITimeout              string `json:"api_timeout"`
		ForecastRefreshInterval string `json:"forecast_refresh_interval"`
		InverterPollInterval    string `json:"inverter_poll_interval"`
		MetricsFlushInterval    string `json:"metrics_flush_interval"`
		CalibrationInterval     string `json:"calibration_interval"`
		CalibrationWindow       string `json:"calibration_window"`
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.APITimeout != "" {
		if c.APITimeout, err = time.ParseDuration(aux.APITimeout); err != nil {
			return fmt.Errorf("invalid api_timeout: %w", err)
		}
	}

	if aux.ForecastRefreshInterval != "" {
		if c.ForecastRefreshInterval, err = time.ParseDuration(aux.ForecastRefreshInterval); err != nil {
			return fmt.Errorf("invalid forecast_refresh_interval: %w", err)
		}
	}

	if aux.InverterPollInterval != "" {
		if c.InverterPollInterval, err = time.ParseDuration(aux.InverterPollInterval); err != nil {
			return fmt.Errorf("invalid inverter_poll_interval: %w", err)
		}
	}

	if aux.MetricsFlushInterval != "" {
		if c.MetricsFlushInterval, err = time.ParseDuration(aux.MetricsFlushInterval); err != nil {
			return fmt.Errorf("invalid metrics_flush_interval: %w", err)
		}
	}

	if aux.CalibrationInterval != "" {
		if c.CalibrationInterval, err = time.ParseDuration(aux.CalibrationInterval); err != nil {
			return fmt.Errorf("invalid calibration_interval: %w", err)
		}
	}

	if aux.CalibrationWindow != "" {
		if c.CalibrationWindow, err = time.ParseDuration(aux.CalibrationWindow); err != nil {
			return fmt.Errorf("invalid calibration_window: %w", err)
		}
	}

	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
