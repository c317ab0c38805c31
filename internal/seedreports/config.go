package seedreports

import "time"

// Config holds configuration for a seed run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumReports int           // Number of reports to generate
	NumDevices int           // Size of the synthetic device pool
	Areas      []string      // Area codes reports are spread across
	TopN       int           // Number of board entries to fetch
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for generated reports
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Report mirrors the POST /reports request body.
type Report struct {
	ReportID  string  `json:"report_id"`
	DeviceID  string  `json:"device_id"`
	Area      string  `json:"area"`
	Kind      string  `json:"kind"`
	Severity  int     `json:"severity"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	TS        string  `json:"ts"`
}

// ackResponse mirrors the submission acknowledgement body.
type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds seed run statistics.
type Stats struct {
	ReportsGenerated  int
	ReportsSubmitted  int
	ReportsSuccessful int
	ReportsDuplicate  int
	ReportsFailed     int
	ThrottleRetries   int
	RanksRetrieved    int
	CityEntries       int
	AreaEntries       int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
