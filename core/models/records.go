// Package models defines domain models for the aggregation gateway.
package models

// HistoryPoint is one sample of a historical metric series. Null upstream
// samples are dropped before records are built, so Value is always set.
type HistoryPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Technology is a classified technology name/icon pair for an entity.
type Technology struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// ServiceRecord is the per-service aggregation result. Numeric fields are
// nil when the corresponding upstream sub-query yielded no value.
type ServiceRecord struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ResponseTime *float64       `json:"response_time"` // seconds, 2 decimals
	ErrorRate    *float64       `json:"error_rate"`    // percent, 1 decimal
	Requests     *int64         `json:"requests"`
	Status       string         `json:"status"` // Active or Inactive
	Technology   string         `json:"technology"`
	TechIcon     string         `json:"tech_icon"`
	DtURL        string         `json:"dt_url"`
	History      ServiceHistory `json:"history"`
}

// ServiceHistory groups the historical series of one service.
type ServiceHistory struct {
	ResponseTime []HistoryPoint `json:"response_time"`
	ErrorRate    []HistoryPoint `json:"error_rate"`
	Requests     []HistoryPoint `json:"requests"`
}

// HostRecord is the per-host aggregation result.
type HostRecord struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	CPU       *float64    `json:"cpu"`
	RAM       *float64    `json:"ram"`
	OSVersion string      `json:"os_version"`
	DtURL     string      `json:"dt_url"`
	History   HostHistory `json:"history"`
}

// HostHistory groups the historical series of one host.
type HostHistory struct {
	CPU []HistoryPoint `json:"cpu"`
	RAM []HistoryPoint `json:"ram"`
}

// ProcessRecord is the per-process-group listing result.
type ProcessRecord struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Technology string `json:"technology"`
	TechIcon   string `json:"tech_icon"`
	DtURL      string `json:"dt_url"`
}

// ProblemRecord is a formatted upstream problem.
// Invariant: EndTime is nil exactly when the problem is still open, and
// Resolved mirrors Status == "RESOLVED".
type ProblemRecord struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Impact        string  `json:"impact"`
	Status        string  `json:"status"` // OPEN or RESOLVED
	AffectedCount int     `json:"affected_entities_count"`
	StartTime     string  `json:"start_time"` // local wall clock, minute resolution
	EndTime       *string `json:"end_time"`
	Duration      string  `json:"duration"`
	DtURL         string  `json:"dt_url"`
	Zone          string  `json:"zone"`
	Resolved      bool    `json:"resolved"`
	Host          string  `json:"host"`
}

// Summary is the one-shot environmental summary for a management zone.
type Summary struct {
	Hosts       SummaryHosts    `json:"hosts"`
	Services    SummaryServices `json:"services"`
	Requests    SummaryRequests `json:"requests"`
	Problems    SummaryProblems `json:"problems"`
	Timestamp   int64           `json:"timestamp"`
	DataQuality string          `json:"data_quality"` // full, partial or error
}

// SummaryHosts aggregates host counts and CPU load.
type SummaryHosts struct {
	Count         int `json:"count"`
	AvgCPU        int `json:"avg_cpu"`
	CriticalCount int `json:"critical_count"`
}

// SummaryServices aggregates service counts and error rates.
type SummaryServices struct {
	Count        int     `json:"count"`
	WithErrors   int     `json:"with_errors"`
	AvgErrorRate float64 `json:"avg_error_rate"`
}

// SummaryRequests aggregates request volume.
type SummaryRequests struct {
	Total     int64 `json:"total"`
	HourlyAvg int64 `json:"hourly_avg"`
}

// SummaryProblems counts open problems.
type SummaryProblems struct {
	Count int `json:"count"`
}
