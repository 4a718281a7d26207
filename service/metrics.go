package service

import (
	"database/sql"
	"sync"
	"time"

	"github.com/devskill-org/pv-forecast/inverter"
)

// Calibration factor bounds. One bad week of data must not be able to
// push the forecast off by more than a factor of two.
const (
	calibrationMin     = 0.5
	calibrationMax     = 1.5
	calibrationMinRows = 8
)

// Production rows below this forecast level are excluded from calibration.
// Dawn and dusk samples carry more model noise than signal.
const calibrationFloorW = 100.0

// PowerSample represents a single inverter AC power measurement.
type PowerSample struct {
	powerW float64
	ts     time.Time
}

// PowerSamples is a thread-safe collection of inverter power samples.
type PowerSamples struct {
	mu      sync.Mutex
	samples []PowerSample
}

// AddSample adds a new power measurement sample to the collection.
func (p *PowerSamples) AddSample(powerW float64, ts time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples = append(p.samples, PowerSample{powerW: powerW, ts: ts})
}

// AverageBefore returns the mean power of all samples with timestamp <=
// cutoffTime and the number of samples averaged. Samples are preserved and
// must be cleared explicitly using ClearBefore() after successful processing.
func (p *PowerSamples) AverageBefore(cutoffTime time.Time) (float64, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sum float64
	var count int
	for _, sample := range p.samples {
		if sample.ts.After(cutoffTime) {
			continue
		}
		sum += sample.powerW
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return sum / float64(count), count
}

// ClearBefore removes all samples with timestamp <= cutoffTime from the collection.
func (p *PowerSamples) ClearBefore(cutoffTime time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	filtered := make([]PowerSample, 0, len(p.samples))
	for _, sample := range p.samples {
		if sample.ts.After(cutoffTime) {
			filtered = append(filtered, sample)
		}
	}
	p.samples = filtered
}

// IsEmpty returns true if there are no samples collected.
func (p *PowerSamples) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.samples) == 0
}

// GetLatestPower returns the most recent power sample, or 0 if no samples exist
func (p *PowerSamples) GetLatestPower() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.samples) == 0 {
		return 0
	}
	return p.samples[len(p.samples)-1].powerW
}

func (s *Service) runInverterPoll(samples *PowerSamples) error {
	config := s.GetConfig()
	if config.InverterModbusAddress == "" {
		return nil
	}

	client, err := inverter.NewTCPClient(config.InverterModbusAddress, inverter.DefaultSlaveAddress)
	if err != nil {
		s.logger.Printf("Metrics: failed to create modbus client: %v", err)
		return err
	}
	defer client.Close()

	powerW, err := client.ReadACPower()
	if err != nil {
		s.logger.Printf("Metrics: failed to read AC power: %v", err)
		return err
	}

	samples.AddSample(powerW, time.Now())
	return nil
}

// runMetricsFlush aggregates the collected samples for the closing period
// and stores an observed/forecast pair for later calibration.
func (s *Service) runMetricsFlush(samples *PowerSamples, db *sql.DB) error {
	config := s.GetConfig()

	// Align to the period boundary so rows group by flush period
	now := time.Now()
	periodEndTime := now.Truncate(config.MetricsFlushInterval)
	if periodEndTime.Before(now.Add(-config.MetricsFlushInterval)) {
		periodEndTime = periodEndTime.Add(config.MetricsFlushInterval)
	}

	observedW, count := samples.AverageBefore(periodEndTime)
	if count == 0 {
		s.logger.Printf("Metrics: no samples collected in period ending at %s", periodEndTime.Format(time.RFC3339))
		return nil
	}

	var forecastW *float64
	if w, ok := s.ForecastAt(periodEndTime); ok {
		forecastW = &w
	}

	if db == nil {
		samples.ClearBefore(periodEndTime)
		return nil
	}

	if config.DryRun {
		s.logger.Printf("Metrics [DRY-RUN]: would save production row at %s (samples: %d)",
			periodEndTime.Format(time.RFC3339), count)
		if forecastW != nil {
			s.logger.Printf("  Observed: %.1f W, Forecast: %.1f W", observedW, *forecastW)
		} else {
			s.logger.Printf("  Observed: %.1f W, Forecast: n/a", observedW)
		}
		samples.ClearBefore(periodEndTime)
		return nil
	}

	_, err := db.Exec(
		`INSERT INTO pv_production (ts, observed_w, forecast_w) VALUES ($1, $2, $3)`,
		periodEndTime, observedW, forecastW,
	)
	if err != nil {
		s.logger.Printf("Metrics: failed to insert production row: %v", err)
		return err
	}

	// Only clear samples for this period after successful DB insertion
	samples.ClearBefore(periodEndTime)

	s.logger.Printf("Metrics: saved production row at %s (samples: %d, observed: %.1f W)",
		periodEndTime.Format(time.RFC3339), count, observedW)
	return nil
}

// runCalibration derives a forecast calibration factor from stored
// observed/forecast pairs and applies it to the engine.
func (s *Service) runCalibration(db *sql.DB) error {
	if db == nil {
		return nil
	}
	config := s.GetConfig()

	since := time.Now().Add(-config.CalibrationWindow)
	row := db.QueryRow(
		`SELECT COALESCE(SUM(observed_w), 0), COALESCE(SUM(forecast_w), 0), COUNT(*)
		 FROM pv_production
		 WHERE ts > $1 AND forecast_w > $2`,
		since, calibrationFloorW,
	)

	var observedSum, forecastSum float64
	var count int
	if err := row.Scan(&observedSum, &forecastSum, &count); err != nil {
		s.logger.Printf("Calibration: query failed: %v", err)
		return err
	}

	if count < calibrationMinRows {
		s.logger.Printf("Calibration: only %d usable rows (need %d), keeping current factor",
			count, calibrationMinRows)
		return nil
	}
	if forecastSum <= 0 {
		s.logger.Printf("Calibration: forecast sum is zero, keeping current factor")
		return nil
	}

	ratio := observedSum / forecastSum
	if ratio < calibrationMin {
		ratio = calibrationMin
	}
	if ratio > calibrationMax {
		ratio = calibrationMax
	}

	if config.DryRun {
		s.logger.Printf("Calibration [DRY-RUN]: would apply factor %.3f (%d rows over %s)",
			ratio, count, config.CalibrationWindow)
		return nil
	}

	s.applyCalibration(ratio)
	s.logger.Printf("Calibration: applied factor %.3f (%d rows over %s)",
		ratio, count, config.CalibrationWindow)
	return nil
}
