package seedreports

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/sweeply/tidyboard/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "seed_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	// Structured and stdlib logging both land on console and file.
	multiWriter := io.MultiWriter(os.Stdout, file)
	if err := logger.Init(logger.WithWriter(multiWriter)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the seed reports tool.
func ShowHelp() {
	os.Stdout.WriteString(`Tidyboard Seed Tool
===================

A concurrent tool for seeding a running tidyboard service with synthetic
waste reports and verifying the boards it builds from them.

Usage:
  go run cmd/seed-reports/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -reports int
        Number of reports to generate and submit (default 5000)
  -devices int
        Size of the synthetic device pool (default 50)
  -areas string
        Comma-separated area codes to spread reports across (default "NW3,SE1,E2,N7,BR1,CR0")
  -top int
        Number of board entries to fetch per scope (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Output file for generated reports (default: seed_reports_TIMESTAMP.json)
  -log string
        Log file for run output (default: seed_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Seed with default settings
  go run cmd/seed-reports/main.go

  # Seed with custom parameters
  go run cmd/seed-reports/main.go -reports 20000 -devices 200 -workers 16

  # Seed a remote service with verbose output
  go run cmd/seed-reports/main.go -verbose -url http://localhost:8080

  # Seed with a custom log file
  go run cmd/seed-reports/main.go -reports 20000 -log my_seed.log
`)
}
