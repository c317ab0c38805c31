package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/sweeply/tidyboard/internal/seedreports"
)

// Flag defaults.
const (
	defaultNumReports = 5000
	defaultNumDevices = 50
	defaultAreas      = "NW3,SE1,E2,N7,BR1,CR0"
	defaultTopN       = 50
	defaultWorkers    = 2 // per CPU core
	defaultTimeout    = 30 * time.Second
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Service base URL")
		numReports = flag.Int("reports", defaultNumReports, "Number of reports to generate and submit")
		numDevices = flag.Int("devices", defaultNumDevices, "Size of the synthetic device pool")
		areas      = flag.String("areas", defaultAreas, "Comma-separated area codes to spread reports across")
		topN       = flag.Int("top", defaultTopN, "Number of board entries to fetch per scope")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent submitter goroutines")
		timeout    = flag.Duration("timeout", defaultTimeout, "Per-request HTTP timeout")
		outputFile = flag.String("output", "", "Output file for generated reports (default: seed_reports_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for run output (default: seed_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Log every submission")
		help       = flag.Bool("help", false, "Print usage and exit")
	)
	flag.Parse()

	if *help {
		seedreports.ShowHelp()
		return
	}

	if err := seedreports.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("logging setup failed: " + err.Error() + "\n")
		return
	}

	// Bound the whole run, not just individual requests
	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	// Create seed configuration
	config := &seedreports.Config{
		BaseURL:    *baseURL,
		NumReports: *numReports,
		NumDevices: *numDevices,
		Areas:      strings.Split(*areas, ","),
		TopN:       *topN,
		Workers:    *workers,
		Timeout:    *timeout,
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	// Run the seed
	if err := seedreports.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Seed run failed: " + err.Error() + "\n")
		return
	}
}
