package crawlsim

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/crawlplan/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "crawl_sim_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		if err := logger.SetLevelString("debug"); err != nil {
			return err
		}
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Crawl Planner Simulator
=======================

Drives many concurrent virtual planners through the crawl planning API and
checks that every session behaves consistently.

Each planner creates a session, falls back to the default origin, discovers
venues, selects a few of them, requests a route, retries the route request
with the same Idempotency-Key, reverses the order, drags the last stop to
the top and finally deletes the session.

Usage:
  go run cmd/crawl-sim/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -planners int
        Number of virtual planners (default 200)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -stops int
        Venues selected by each planner (default 3)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        How long to wait for the automatic route after a drag (default 5s)
  -output string
        Output file for planner results (default: crawl_results_TIMESTAMP.json)
  -log string
        Log file for simulator output (default: crawl_sim_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/crawl-sim/main.go

  # Simulate a busier evening
  go run cmd/crawl-sim/main.go -planners 2000 -workers 64 -stops 5
`)
}
