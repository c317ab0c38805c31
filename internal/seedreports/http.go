package seedreports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Submission result values.
const (
	resultSuccess   = "success"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
)

// HTTPClient wraps http.Client with a request timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Get performs a GET request bound to ctx.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// deviceCounter tracks accepted submissions per device.
type deviceCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newDeviceCounter() *deviceCounter {
	return &deviceCounter{counts: make(map[string]int)}
}

func (c *deviceCounter) inc(device string) {
	c.mu.Lock()
	c.counts[device]++
	c.mu.Unlock()
}

func (c *deviceCounter) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// submitReports submits reports concurrently through a worker pool,
// accumulating results into stats and accepted counts into counter.
func submitReports(ctx context.Context, config *Config, reports []Report, stats *Stats, counter *deviceCounter) error {
	log.Printf("📤 Submitting %d reports with %d workers...", len(reports), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/reports"

	var (
		successful      int64
		duplicate       int64
		failed          int64
		submitted       int64
		throttleRetries int64
	)

	reportChan := make(chan Report, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for report := range reportChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				result := submitSingleReport(ctx, client, url, report, &throttleRetries)
				atomic.AddInt64(&submitted, 1)
				switch result {
				case resultSuccess:
					atomic.AddInt64(&successful, 1)
					counter.inc(report.DeviceID)
				case resultDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	// Progress reporting
	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-progressDone:
				return
			case <-ticker.C:
				log.Printf("📤 Submitted: %d/%d (success: %d, duplicate: %d, failed: %d, throttle retries: %d)",
					atomic.LoadInt64(&submitted), len(reports),
					atomic.LoadInt64(&successful), atomic.LoadInt64(&duplicate),
					atomic.LoadInt64(&failed), atomic.LoadInt64(&throttleRetries))
			}
		}
	}()

	// Feed reports to workers
	go func() {
		defer close(reportChan)
		for _, report := range reports {
			select {
			case <-ctx.Done():
				return
			case reportChan <- report:
			}
		}
	}()

	wg.Wait()
	close(progressDone)

	stats.ReportsSubmitted += int(atomic.LoadInt64(&submitted))
	stats.ReportsSuccessful += int(atomic.LoadInt64(&successful))
	stats.ReportsDuplicate += int(atomic.LoadInt64(&duplicate))
	stats.ReportsFailed += int(atomic.LoadInt64(&failed))
	stats.ThrottleRetries += int(atomic.LoadInt64(&throttleRetries))

	log.Printf(`✅ Report submission completed:
   Successful: %d
   Duplicate: %d
   Failed: %d
   Throttle retries: %d
`, atomic.LoadInt64(&successful), atomic.LoadInt64(&duplicate),
		atomic.LoadInt64(&failed), atomic.LoadInt64(&throttleRetries))

	return nil
}

// submitSingleReport submits one report, waiting out per-device
// throttling and queue backpressure. Returns one of the result values.
func submitSingleReport(ctx context.Context, client *HTTPClient, url string, report Report, throttleRetries *int64) string {
	for attempt := 0; attempt < maxSubmitAttempts; attempt++ {
		resp, err := client.Post(ctx, url, report)
		if err != nil {
			return resultFailed
		}

		body, err := readResponseBody(resp)
		if err != nil {
			return resultFailed
		}

		switch resp.StatusCode {
		case http.StatusAccepted:
			return resultSuccess
		case http.StatusOK:
			var ack ackResponse
			if err := json.Unmarshal(body, &ack); err == nil && !ack.Duplicate {
				return resultSuccess
			}
			return resultDuplicate
		case http.StatusTooManyRequests:
			// Covers both rate_limited and backpressure; either clears
			// on its own shortly.
			atomic.AddInt64(throttleRetries, 1)
			select {
			case <-ctx.Done():
				return resultFailed
			case <-time.After(throttleRetryDelay):
			}
		default:
			return resultFailed
		}
	}
	return resultFailed
}
