package seedreports

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sweeply/tidyboard/internal/domain/types"
	"github.com/sweeply/tidyboard/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes a complete seed run against a live service.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting seed run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("reports", config.NumReports),
		logger.Int("devices", config.NumDevices),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate reports
	reports, err := generateReports(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("report generation failed: %w", err)
	}

	// Step 3: Record where every device stands before the run, so the
	// totals check still holds against a service seeded by earlier runs.
	devices := devicePool(config.NumDevices)
	baseline, err := fetchRanks(ctx, config, devices, "baseline")
	if err != nil {
		return fmt.Errorf("baseline retrieval failed: %w", err)
	}

	// Step 4: Submit reports concurrently
	counter := newDeviceCounter()
	if err := submitReports(ctx, config, reports, stats, counter); err != nil {
		return fmt.Errorf("report submission failed: %w", err)
	}

	// Step 5: Resubmit a sample and expect duplicate acks. Dedupe
	// happens at ingest, so this does not need the queue drained.
	if err := resubmitSample(ctx, config, reports); err != nil {
		logger.Get().Warn(ctx, "duplicate resubmission check failed", logger.Error(err))
	}

	// Step 6: Wait for the queue to drain
	if err := waitForDrain(ctx, config); err != nil {
		return fmt.Errorf("queue drain failed: %w", err)
	}

	// Step 7: Retrieve final ranks concurrently
	ranks, err := fetchRanks(ctx, config, devices, "final")
	if err != nil {
		return fmt.Errorf("rank retrieval failed: %w", err)
	}
	stats.RanksRetrieved = len(ranks)

	// Step 8: Fetch the city board and every area board
	v := &verification{
		areaBoards:  make(map[string][]types.Entry, len(config.Areas)),
		ranks:       ranks,
		baseline:    baseline,
		accepted:    counter.snapshot(),
		deviceAreas: areasByDevice(reports),
	}

	client := newHTTPClient(config.Timeout)
	v.city, err = fetchBoard(ctx, client, config, types.ScopeCity, "")
	if err != nil {
		return fmt.Errorf("city board retrieval failed: %w", err)
	}
	stats.CityEntries = len(v.city)

	for _, area := range config.Areas {
		board, err := fetchBoard(ctx, client, config, types.ScopeArea, area)
		if err != nil {
			return fmt.Errorf("board retrieval failed for area %s: %w", area, err)
		}
		v.areaBoards[area] = board
		stats.AreaEntries += len(board)
	}

	// Step 9: Verify results
	if err := verifyResults(config, v); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 10: Save reports to file
	if err := saveReportsToFile(ctx, config, reports); err != nil {
		logger.Get().Warn(ctx, "failed to save reports to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "seed run completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Warn(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the endpoint serves Prometheus metrics)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// resubmitSample resubmits every Nth report and checks that each one
// comes back flagged as a duplicate.
func resubmitSample(ctx context.Context, config *Config, reports []Report) error {
	sample := make([]Report, 0, len(reports)/duplicateSampleStride+1)
	for i := 0; i < len(reports); i += duplicateSampleStride {
		sample = append(sample, reports[i])
	}
	if len(sample) == 0 {
		return nil
	}

	log.Printf("🔁 Resubmitting %d reports to confirm duplicate detection...", len(sample))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/reports"

	duplicates := 0
	var throttleRetries int64
	for _, report := range sample {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if submitSingleReport(ctx, client, url, report, &throttleRetries) == resultDuplicate {
			duplicates++
		}
	}

	if duplicates != len(sample) {
		return fmt.Errorf("%d of %d resubmitted reports were not flagged as duplicates",
			len(sample)-duplicates, len(sample))
	}

	log.Printf("✅ All %d resubmitted reports came back as duplicates", len(sample))
	return nil
}

// waitForDrain polls the stats endpoint until the ingest queue is
// empty, then waits a moment for the report already dequeued to land.
func waitForDrain(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "waiting for the ingest queue to drain")

	client := newHTTPClient(config.Timeout)
	deadline := time.Now().Add(drainTimeout)

	for {
		size, err := queueSize(ctx, client, config.BaseURL)
		if err != nil {
			return fmt.Errorf("failed to read queue size: %w", err)
		}
		if size == 0 {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("queue still holds %d reports after %s", size, drainTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(drainPollInterval):
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(drainSettleDelay):
	}

	logger.Get().Info(ctx, "ingest queue drained")
	return nil
}

// queueSize reads the current ingest queue depth from the stats endpoint.
func queueSize(ctx context.Context, client *HTTPClient, baseURL string) (int, error) {
	resp, err := client.Get(ctx, baseURL+"/stats")
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var stats struct {
		QueueSize int `json:"queue_size"`
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}
	return stats.QueueSize, nil
}

// saveReportsToFile saves the generated reports to a JSON file.
func saveReportsToFile(ctx context.Context, config *Config, reports []Report) error {
	if len(reports) == 0 {
		return fmt.Errorf("no reports to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "seed_reports_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Warn(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	// Write JSON array
	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i, report := range reports {
		jsonData, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write report %d: %w", i, err)
		}

		// Add comma except for last report
		if i < len(reports)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "reports saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final seed run statistics.
func displayFinalStats(stats *Stats) {
	var successRate, reportsPerSecond float64

	if stats.ReportsSubmitted > 0 {
		successRate = float64(stats.ReportsSuccessful) / float64(stats.ReportsSubmitted) * percentageMultiplier
	}

	if stats.Duration > 0 {
		reportsPerSecond = float64(stats.ReportsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("reportsGenerated", stats.ReportsGenerated),
		logger.Int("reportsSubmitted", stats.ReportsSubmitted),
		logger.Int("reportsSuccessful", stats.ReportsSuccessful),
		logger.Int("reportsDuplicate", stats.ReportsDuplicate),
		logger.Int("reportsFailed", stats.ReportsFailed),
		logger.Int("throttleRetries", stats.ThrottleRetries),
		logger.Int("ranksRetrieved", stats.RanksRetrieved),
		logger.Int("cityEntries", stats.CityEntries),
		logger.Int("areaEntries", stats.AreaEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("reportsPerSecond", reportsPerSecond))
}
