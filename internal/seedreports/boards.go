package seedreports

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sweeply/tidyboard/internal/domain/types"
)

// fetchBoard retrieves the top entries for a scope.
func fetchBoard(ctx context.Context, client *HTTPClient, config *Config, scope types.Scope, area string) ([]types.Entry, error) {
	q := url.Values{}
	q.Set("scope", string(scope))
	if area != "" {
		q.Set("area", area)
	}
	q.Set("limit", strconv.Itoa(config.TopN))

	resp, err := client.Get(ctx, config.BaseURL+"/leaderboard?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var entries []types.Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return entries, nil
}

// fetchRanks retrieves the city rank of every device concurrently.
// Devices with no reports yet are simply absent from the result.
func fetchRanks(ctx context.Context, config *Config, devices []string, label string) (map[string]types.Entry, error) {
	log.Printf("🏆 Retrieving %s ranks for %d devices with %d workers...", label, len(devices), config.Workers)

	client := newHTTPClient(config.Timeout)

	ranks := make([]types.Entry, len(devices))
	found := make([]bool, len(devices))
	var failed int64

	indexChan := make(chan int, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				entry, ok, err := fetchSingleRank(ctx, client, config.BaseURL, devices[index])
				if err != nil {
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						log.Printf("⚠️  Failed to get rank for %s: %v", devices[index], err)
					}
					continue
				}
				if ok {
					ranks[index] = entry
					found[index] = true
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range devices {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	byDevice := make(map[string]types.Entry, len(devices))
	for i, ok := range found {
		if ok {
			byDevice[ranks[i].DeviceID] = ranks[i]
		}
	}

	log.Printf("✅ Retrieved %d %s ranks (failed: %d)", len(byDevice), label, atomic.LoadInt64(&failed))
	return byDevice, nil
}

// fetchSingleRank retrieves the city-scope rank for one device. A 404
// means the device has no reports; that is not an error.
func fetchSingleRank(ctx context.Context, client *HTTPClient, baseURL, deviceID string) (types.Entry, bool, error) {
	resp, err := client.Get(ctx, fmt.Sprintf("%s/rank/%s", baseURL, deviceID))
	if err != nil {
		return types.Entry{}, false, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return types.Entry{}, false, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return types.Entry{}, false, nil
	default:
		return types.Entry{}, false, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var entry types.Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return types.Entry{}, false, fmt.Errorf("failed to parse response: %w", err)
	}
	return entry, true, nil
}
