package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeply/tidyboard/pkg/metrics"
)

// MetricsMiddleware wraps a handler so every request lands in the
// per-endpoint counters, with failures broken down by class.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsedMs := float64(time.Since(start).Milliseconds())
		status := strconv.Itoa(rec.statusCode)

		metrics.IncHTTPRequest(endpoint, r.Method, status)
		metrics.ObserveHTTPLatency(endpoint, r.Method, status, elapsedMs)

		if rec.statusCode >= http.StatusBadRequest {
			errorType := errorTypeFor(rec.statusCode)
			metrics.IncEndpointError(endpoint, r.Method, errorType)
			metrics.IncErrorKind(errorType, errorSeverityFor(rec.statusCode))
			metrics.ObserveErrorLatency("http", errorType, elapsedMs)
		}
	}
}

// errorTypeFor buckets an HTTP status code into a metric label.
func errorTypeFor(statusCode int) string {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return "server_error"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limit"
	case statusCode == http.StatusNotFound:
		return "not_found"
	case statusCode >= http.StatusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

func errorSeverityFor(statusCode int) string {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return "high"
	case statusCode >= http.StatusBadRequest:
		return "medium"
	default:
		return "low"
	}
}

// statusRecorder remembers the status a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
