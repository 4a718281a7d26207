package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/devskill-org/pv-forecast/forecast"
	"github.com/devskill-org/pv-forecast/meteo"
	_ "github.com/lib/pq"
)

// PeriodicTask represents a task that runs periodically with an optional initial delay
type PeriodicTask struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	runFunc      func()
}

// run executes the periodic task in a loop, respecting the initial delay and context cancellation
func (pt *PeriodicTask) run(ctx context.Context, stopChan <-chan struct{}, logger *log.Logger) {
	// Wait for initial delay
	if pt.initialDelay > 0 {
		logger.Printf("[%s] Waiting for initial delay: %v", pt.name, pt.initialDelay)
		select {
		case <-time.After(pt.initialDelay):
			// Initial delay passed, run the task
			logger.Printf("[%s] Initial delay passed, running first iteration", pt.name)
			pt.runFunc()
		case <-ctx.Done():
			logger.Printf("[%s] Stopped during initial delay due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped during initial delay due to stop signal", pt.name)
			return
		}
	} else {
		// No initial delay, run immediately
		logger.Printf("[%s] Running immediately (no initial delay)", pt.name)
		pt.runFunc()
	}

	// Create ticker for periodic execution
	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()

	logger.Printf("[%s] Started with interval: %v", pt.name, pt.interval)

	for {
		select {
		case <-ticker.C:
			pt.runFunc()
		case <-ctx.Done():
			logger.Printf("[%s] Stopped due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped due to stop signal", pt.name)
			return
		}
	}
}

// Service runs the forecast engine with periodic refresh, inverter
// monitoring, and forecast calibration.
type Service struct {
	// Configuration
	config *Config

	// Forecast pipeline. engineCfg tracks the configuration the active
	// engine was built with, calibration included, so cache keys follow
	// calibration changes.
	engine    *forecast.Engine
	engineCfg forecast.Config
	source    forecast.WeatherSource
	cache     *forecast.Cache

	// Latest computed forecast
	latest         []forecast.Point
	latestAt       time.Time
	latestDegraded bool

	// State
	isRunning bool
	stopChan  chan struct{}
	mu        sync.RWMutex

	// Web server
	webServer *WebServer

	// Database connection
	db *sql.DB

	// Logging
	logger *log.Logger
}

// NewService creates a new forecast service instance
func NewService(config *Config, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	client := meteo.NewClient(config.UserAgent)
	source := meteo.NewSource(client, config.Latitude, config.Longitude)
	engineCfg := config.EngineConfig()

	service := &Service{
		config:    config,
		source:    source,
		engine:    forecast.NewEngine(engineCfg, source, logger),
		engineCfg: engineCfg,
		cache:     forecast.NewCache(config.ForecastRefreshInterval),
		stopChan:  make(chan struct{}),
		logger:    logger,
	}

	return service
}

// NewServiceWithWebServer creates a new service instance with the web server attached
func NewServiceWithWebServer(config *Config, logger *log.Logger) *Service {
	service := NewService(config, logger)
	service.webServer = NewWebServer(service, config.HTTPPort)
	return service
}

// SetConfig updates the configuration
func (s *Service) SetConfig(config *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

// GetConfig returns the current configuration
func (s *Service) GetConfig() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Service) getInitialDelay(now time.Time, delayInterval time.Duration) time.Duration {
	top := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	delay := now.Sub(top)
	for delay > 0 {
		delay = delay - delayInterval
	}
	return -delay
}

// Start begins the service's periodic tasks
func (s *Service) Start(ctx context.Context, serverOnly bool) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	if s.config.DryRun {
		s.logger.Printf("DRY-RUN MODE ENABLED: Database writes will be simulated only")
	}

	// Start web server if configured
	if s.webServer != nil {
		err := s.webServer.Start()
		if err != nil {
			s.logger.Printf("Failed to start web server: %v", err)
		} else {
			s.logger.Printf("Web server started on port %d", s.webServer.port)
		}
		if serverOnly {
			// Still serve a forecast while running server-only
			s.refreshForecast(ctx)
			return err
		}
	}

	config := s.GetConfig()

	// Metrics state
	samples := &PowerSamples{}
	var metricsDB *sql.DB
	if config.PostgresConnString != "" {
		db, err := sql.Open("postgres", config.PostgresConnString)
		if err != nil {
			s.logger.Printf("Metrics: failed to connect to DB: %v", err)
		} else {
			metricsDB = db
			s.db = db
		}
	}

	// Calculate initial delays
	now := time.Now()
	metricsFlushInitialDelay := s.getInitialDelay(now, config.MetricsFlushInterval)
	calibrationInitialDelay := s.getInitialDelay(now, config.CalibrationInterval) + 2*time.Second

	// Create periodic tasks
	tasks := []PeriodicTask{
		{
			name:         "ForecastRefresh",
			initialDelay: 0, // Run immediately
			interval:     config.ForecastRefreshInterval,
			runFunc: func() {
				s.refreshForecast(ctx)
			},
		},
	}

	if config.InverterModbusAddress != "" {
		tasks = append(tasks,
			PeriodicTask{
				name:         "InverterPoll",
				initialDelay: 0,
				interval:     config.InverterPollInterval,
				runFunc: func() {
					s.runInverterPoll(samples)
				},
			},
			PeriodicTask{
				name:         "MetricsFlush",
				initialDelay: metricsFlushInitialDelay,
				interval:     config.MetricsFlushInterval,
				runFunc: func() {
					s.runMetricsFlush(samples, metricsDB)
				},
			},
		)
	}

	if metricsDB != nil {
		tasks = append(tasks, PeriodicTask{
			name:         "Calibration",
			initialDelay: calibrationInitialDelay,
			interval:     config.CalibrationInterval,
			runFunc: func() {
				s.runCalibration(metricsDB)
			},
		})
	}

	// Start each periodic task in its own goroutine
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		task := task // capture loop variable
		go func() {
			defer wg.Done()
			task.run(ctx, s.stopChan, s.logger)
		}()
	}

	// Wait for all tasks to complete
	wg.Wait()

	s.logger.Printf("All periodic tasks stopped")
	s.stop()
	return nil
}

// Stop gracefully stops the service
func (s *Service) Stop() {
	s.stop()
}

func (s *Service) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.isRunning = false

	// Close stopChan if it's not already closed
	select {
	case <-s.stopChan:
		// Already closed
	default:
		close(s.stopChan)
	}

	// Stop web server if running
	if s.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.webServer.Stop(ctx); err != nil {
			s.logger.Printf("Error stopping web server: %v", err)
		}
	}

	// Close database connection
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

// IsRunning returns whether the service is currently running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// refreshForecast recomputes the forecast from the current step boundary
// and publishes the result to the cache and WebSocket clients.
func (s *Service) refreshForecast(ctx context.Context) {
	s.mu.RLock()
	engine := s.engine
	engineCfg := s.engineCfg
	s.mu.RUnlock()

	start := time.Now().UTC().Truncate(engine.Step())
	key := forecast.Fingerprint(engineCfg, start)

	if points, ok := s.cache.Get(key); ok {
		s.storeForecast(points, false)
		return
	}

	points, err := engine.Forecast(ctx, start)
	degraded := false
	if err != nil {
		if !errors.Is(err, forecast.ErrUpstreamUnavailable) {
			s.logger.Printf("Forecast refresh failed: %v", err)
			return
		}
		// Degraded sequence is still complete and worth serving,
		// but must not be cached as a fresh result
		s.logger.Printf("Forecast refresh: %v, serving degraded forecast", err)
		degraded = true
	} else {
		s.cache.Set(key, points)
	}

	s.storeForecast(points, degraded)
	s.logger.Printf("Forecast refreshed: %d points from %s (degraded: %v)",
		len(points), start.Format(time.RFC3339), degraded)
}

func (s *Service) storeForecast(points []forecast.Point, degraded bool) {
	s.mu.Lock()
	s.latest = points
	s.latestAt = time.Now()
	s.latestDegraded = degraded
	s.mu.Unlock()

	if s.webServer != nil {
		s.webServer.BroadcastForecast(points, degraded)
	}
}

// LatestForecast returns the most recently computed forecast points
func (s *Service) LatestForecast() ([]forecast.Point, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, time.Time{}, false
	}

	// Return a copy
	points := make([]forecast.Point, len(s.latest))
	copy(points, s.latest)
	return points, s.latestAt, s.latestDegraded
}

// ForecastAt returns the forecast power for the point nearest to t, if the
// latest forecast covers it within half a step.
func (s *Service) ForecastAt(t time.Time) (float64, bool) {
	s.mu.RLock()
	points := s.latest
	step := s.engine.Step()
	s.mu.RUnlock()

	if len(points) == 0 {
		return 0, false
	}

	best := -1
	var bestDiff time.Duration
	for i := range points {
		diff := points[i].Time.Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if best == -1 || diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}

	if bestDiff > step/2 {
		return 0, false
	}
	return points[best].Watts, true
}

// Planes returns the active plane configuration, calibration included
func (s *Service) Planes() []forecast.Plane {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Planes()
}

// RunOnce computes a single forecast from the current step boundary. Used by
// the one-shot CLI mode; the periodic refresh is not involved.
func (s *Service) RunOnce(ctx context.Context) ([]forecast.Point, error) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	start := time.Now().UTC().Truncate(engine.Step())
	return engine.Forecast(ctx, start)
}

// applyCalibration rebuilds the engine with the given calibration factor
// applied to every plane. The next refresh picks up the new engine.
func (s *Service) applyCalibration(factor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.config.EngineConfig()
	planes := s.engine.Planes()
	for i := range planes {
		planes[i].Calibration = factor
	}
	cfg.Planes = planes

	s.engine = forecast.NewEngine(cfg, s.source, s.logger)
	s.engineCfg = cfg
	s.cache.Purge()
}

// ServiceStatus represents the current status of the service
type ServiceStatus struct {
	IsRunning   bool       `json:"is_running"`
	HasForecast bool       `json:"has_forecast"`
	PointCount  int        `json:"point_count"`
	Degraded    bool       `json:"degraded"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
}

// GetStatus returns the current status of the service
func (s *Service) GetStatus() ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := ServiceStatus{
		IsRunning:   s.isRunning,
		HasForecast: s.latest != nil,
		PointCount:  len(s.latest),
		Degraded:    s.latestDegraded,
	}
	if !s.latestAt.IsZero() {
		t := s.latestAt
		status.LastRefresh = &t
	}
	return status
}
