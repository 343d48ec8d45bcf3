package crawlsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/crawlplan/pkg/logger"
)

// File permission constants.
const (
	directoryPermission  = 0750
	resultFilePermission = 0600
)

// Run executes the complete simulation.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	applyDefaults(config)
	stats := &Stats{
		StartTime:      time.Now(),
		FailuresByStep: map[string]int{},
	}

	logger.Get().Info(ctx, "starting crawl planner simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("planners", config.Planners),
		logger.Int("workers", config.Workers),
		logger.Int("stops", config.Stops),
		logger.String("timeout", config.Timeout.String()),
		logger.String("logFile", config.LogFile),
		logger.Bool("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Run planners concurrently
	results := runPlanners(ctx, config, stats)

	// Step 3: Save results to file
	if config.OutputFile != "" {
		if err := saveResultsToFile(ctx, config, results); err != nil {
			logger.Get().Warn(ctx, "failed to save results to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	// Step 4: Verify results
	verr := verifyResults(ctx, config, results, stats)
	displayFinalStats(stats)
	if verr != nil {
		return stats, fmt.Errorf("result verification failed: %w", verr)
	}

	logger.Get().Info(ctx, "simulation completed successfully")
	return stats, nil
}

func applyDefaults(config *Config) {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Stops < 2 {
		config.Stops = DefaultStops
	}
	if config.Settle <= 0 {
		config.Settle = DefaultSettle
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Do(ctx, http.MethodGet, config.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if err := resp.expect(http.StatusOK, nil); err != nil {
		return err
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveResultsToFile writes the per-planner results as a JSON array.
func saveResultsToFile(ctx context.Context, config *Config, results []Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to save")
	}

	filename := config.OutputFile
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), resultFilePermission); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	logger.Get().Info(ctx, "results saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var successRate, plannersPerSecond float64

	if stats.PlannersStarted > 0 {
		successRate = float64(stats.PlannersSucceeded) / float64(stats.PlannersStarted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		plannersPerSecond = float64(stats.PlannersStarted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("plannersStarted", stats.PlannersStarted),
		logger.Int("plannersSucceeded", stats.PlannersSucceeded),
		logger.Int("plannersFailed", stats.PlannersFailed),
		logger.Int("stepsCompleted", stats.StepsCompleted),
		logger.Int("replays", stats.Replays),
		logger.Any("failuresByStep", stats.FailuresByStep),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("plannersPerSecond", plannersPerSecond))
}
