// Package main provides the PV power forecast service entry point and CLI interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devskill-org/pv-forecast/inverter"
	"github.com/devskill-org/pv-forecast/service"
)

func main() {
	// Command line flags
	var (
		configFile  = flag.String("config", "config.json", "Configuration file path")
		runForecast = flag.Bool("forecast", false, "Compute a forecast once, print it, and exit")
		info        = flag.Bool("info", false, "Show inverter information")
		help        = flag.Bool("help", false, "Show help message")
		serverOnly  = flag.Bool("serverOnly", false, "Run only web server without periodic tasks")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	config, err := service.LoadConfig(*configFile)
	if err != nil {
		fmt.Println("Error loading configuration:", err)
		return
	}

	if *info {
		if err := inverter.ShowInverterInfo(config.InverterModbusAddress); err != nil {
			fmt.Println("Error:", err)
			return
		}
		return
	}

	if *runForecast {
		runForecastOnce(config)
		return
	}

	fmt.Printf("Starting PV forecast service with the following configuration:\n")
	fmt.Printf("  Site: %.4f, %.4f\n", config.Latitude, config.Longitude)
	fmt.Printf("  Planes: %d configured\n", len(config.Planes))
	fmt.Printf("  Step: %d minutes, Horizon: %d hours\n", config.StepMinutes, config.HorizonHours)
	fmt.Printf("  Refresh Interval: %s\n", config.ForecastRefreshInterval)

	if config.DryRun {
		fmt.Printf("  Mode: DRY-RUN (database writes will be simulated only)\n")
	}
	fmt.Println()

	// Create logger
	logger := log.New(os.Stdout, "[FORECAST] ", log.LstdFlags)

	// Create service
	forecastService := service.NewServiceWithWebServer(config, logger)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start service in a goroutine
	go func() {
		if err := forecastService.Start(ctx, *serverOnly); err != nil {
			if err != context.Canceled {
				logger.Printf("Service error: %v", err)
			}
		}
	}()

	logger.Printf("Service started. Press Ctrl+C to stop...")

	// Wait for shutdown signal
	<-sigChan
	logger.Printf("Shutdown signal received, stopping service...")

	// Cancel context to stop service
	cancel()

	// Give the service a moment to clean up
	forecastService.Stop()

	logger.Printf("Service stopped successfully")
}

func runForecastOnce(config *service.Config) {
	logger := log.New(os.Stdout, "[FORECAST] ", log.LstdFlags)

	forecastService := service.NewService(config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), config.APITimeout+time.Minute)
	defer cancel()

	points, err := forecastService.RunOnce(ctx)
	if err != nil {
		// A degraded sequence still prints; the error explains why
		logger.Printf("Warning: %v", err)
	}
	if len(points) == 0 {
		logger.Printf("No forecast points were generated")
		return
	}

	fmt.Println("\n========================================")
	fmt.Println("PV POWER FORECAST")
	fmt.Println("========================================")
	fmt.Printf("Total points: %d\n\n", len(points))

	// Print table header
	fmt.Println("┌─────────────────────┬────────────┐")
	fmt.Println("│     Timestamp       │   Power    │")
	fmt.Println("│                     │    (W)     │")
	fmt.Println("├─────────────────────┼────────────┤")

	var totalWh float64
	stepHours := float64(config.StepMinutes) / 60.0
	for _, point := range points {
		fmt.Printf("│ %19s │ %9.1f  │\n",
			point.Time.Format("2006-01-02 15:04"),
			point.Watts,
		)
		totalWh += point.Watts * stepHours
	}

	fmt.Println("└─────────────────────┴────────────┘")
	fmt.Println("\n========================================")
	fmt.Println("SUMMARY")
	fmt.Println("========================================")
	fmt.Printf("Expected production:  %.2f kWh\n", totalWh/1000.0)
	fmt.Printf("Forecast horizon:     %d hours\n", config.HorizonHours)
	fmt.Println("========================================")
}

func showHelp() {
	fmt.Println("PV Forecast - First-principles photovoltaic power forecasting")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Forecasts AC power output of a PV installation from solar geometry,")
	fmt.Println("  clear-sky irradiance, and weather forecast data. Works with anything")
	fmt.Println("  from full irradiance feeds down to plain cloud cover, degrading")
	fmt.Println("  gracefully to clear-sky estimates when the weather source is down.")
	fmt.Println()
	fmt.Println("  Key Features:")
	fmt.Println("  - Solar position and clear-sky model, no external irradiance service needed")
	fmt.Println("  - Multi-plane arrays with horizon shading profiles")
	fmt.Println("  - Inverter monitoring via Modbus")
	fmt.Println("  - Forecast calibration against observed production")
	fmt.Println("  - Real-time web dashboard")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  pv-forecast [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Basic usage with default settings")
	fmt.Println("  pv-forecast")
	fmt.Println()
	fmt.Println("  # Custom configuration")
	fmt.Println("  pv-forecast --config=config.json")
	fmt.Println()
	fmt.Println("  # Compute and print a forecast once")
	fmt.Println("  pv-forecast -forecast")
	fmt.Println()
	fmt.Println("  # Show inverter information")
	fmt.Println("  pv-forecast -info")
	fmt.Println()
	fmt.Println("  # Run only web server without periodic tasks")
	fmt.Println("  pv-forecast -serverOnly")
	fmt.Println()
	fmt.Println("  # Show this help")
	fmt.Println("  pv-forecast -help")
}
