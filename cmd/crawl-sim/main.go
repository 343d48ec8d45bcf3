package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/crawlplan/internal/crawlsim"
)

// Default configuration constants.
const (
	defaultPlanners    = 200
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		planners   = flag.Int("planners", defaultPlanners, "Number of virtual planners")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		stops      = flag.Int("stops", crawlsim.DefaultStops, "Venues selected by each planner")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", crawlsim.DefaultSettle, "How long to wait for the automatic route after a drag")
		outputFile = flag.String("output", "", "Output file for planner results (default: crawl_results_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for simulator output (default: crawl_sim_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		crawlsim.ShowHelp()
		return
	}

	if err := crawlsim.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	if *outputFile == "" {
		*outputFile = "crawl_results_" + time.Now().Format("20060102_150405") + ".json"
	}

	config := &crawlsim.Config{
		BaseURL:    *baseURL,
		Planners:   *planners,
		Workers:    *workers,
		Stops:      *stops,
		Timeout:    *timeout,
		Settle:     *settle,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if _, err := crawlsim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel is called above
	}
}
