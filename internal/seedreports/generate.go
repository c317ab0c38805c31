package seedreports

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sweeply/tidyboard/pkg/logger"
)

// kindDistribution is a weight table over report kinds: everyday litter
// dominates, fly-tipping is rare. The "recycling" kind has no configured
// scoring weight, so runs also exercise the fallback weight path.
var kindDistribution = []struct {
	kind   string
	weight int
}{
	{"litter", 40},
	{"overflow", 18},
	{"dog_fouling", 12},
	{"graffiti", 10},
	{"hazard", 8},
	{"recycling", 7},
	{"dumping", 5},
}

// Coordinate generation constants: reports jitter around a city center.
const (
	baseLatitude  = 51.5074
	baseLongitude = -0.1278
	coordJitter   = 0.08
	severityMax   = 5
	randomDivisor = 1_000_000
)

// getRandomFloat returns a random float64 in [0, 1) using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomDivisor))
	return float64(n.Int64()) / float64(randomDivisor)
}

// randomInt returns a random int in [0, n).
func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// devicePool builds the synthetic device ids reports are attributed to.
// Reports cycle through the pool so every device accumulates a
// predictable share.
func devicePool(n int) []string {
	devices := make([]string, n)
	for i := range devices {
		devices[i] = fmt.Sprintf("device-%03d", i)
	}
	return devices
}

// generateReports creates the configured number of reports, spreading
// them across the device pool and area codes.
func generateReports(ctx context.Context, config *Config, stats *Stats) ([]Report, error) {
	logger.Get().Info(ctx, "generating reports",
		logger.Int("numReports", config.NumReports),
		logger.Int("numDevices", config.NumDevices),
		logger.Int("areas", len(config.Areas)))

	devices := devicePool(config.NumDevices)
	reports := make([]Report, config.NumReports)

	type reportResult struct {
		index  int
		report Report
		err    error
	}
	resultChan := make(chan reportResult, config.NumReports)

	workerCount := minInt(config.Workers, config.NumReports)
	perWorker := config.NumReports / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = config.NumReports // Last worker gets remaining reports
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- reportResult{index: i, err: ctx.Err()}
					return
				default:
					report := generateSingleReport(devices[i%len(devices)], config.Areas)
					resultChan <- reportResult{index: i, report: report}
				}
			}
		}(start, end)
	}

	for i := 0; i < config.NumReports; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during report generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate report %d: %w", result.index, result.err)
			}
			reports[result.index] = result.report
		}
	}

	stats.ReportsGenerated = len(reports)
	logger.Get().Info(ctx, "generated reports", logger.Int("count", len(reports)))

	return reports, nil
}

// generateSingleReport builds one synthetic report for the device.
func generateSingleReport(deviceID string, areas []string) Report {
	return Report{
		ReportID:  uuid.New().String(),
		DeviceID:  deviceID,
		Area:      areas[randomInt(len(areas))],
		Kind:      pickKind(),
		Severity:  randomInt(severityMax) + 1,
		Latitude:  baseLatitude + (getRandomFloat()*2-1)*coordJitter,
		Longitude: baseLongitude + (getRandomFloat()*2-1)*coordJitter,
		TS:        time.Now().UTC().Format(time.RFC3339),
	}
}

// pickKind draws a kind from the weighted distribution.
func pickKind() string {
	total := 0
	for _, kd := range kindDistribution {
		total += kd.weight
	}
	draw := randomInt(total)
	for _, kd := range kindDistribution {
		draw -= kd.weight
		if draw < 0 {
			return kd.kind
		}
	}
	return kindDistribution[0].kind
}

// areasByDevice indexes which areas each device reported in.
func areasByDevice(reports []Report) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, r := range reports {
		if out[r.DeviceID] == nil {
			out[r.DeviceID] = make(map[string]bool)
		}
		out[r.DeviceID][r.Area] = true
	}
	return out
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
