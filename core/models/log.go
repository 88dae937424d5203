package models

import "time"

// UpstreamCheckLog represents one upstream connectivity probe result.
type UpstreamCheckLog struct {
	ID           int64     `json:"id"`
	Status       string    `json:"status"` // reachable, unreachable
	LatencyMs    int64     `json:"latency_ms"`
	RequestCount int64     `json:"request_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// ActionLog represents a state-changing action performed through the API.
type ActionLog struct {
	ID           int64     `json:"id"`
	ActionType   string    `json:"action_type"`   // select_zone, refresh_cache
	ResourceType string    `json:"resource_type"` // zone, cache
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name,omitempty"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// EventLog represents a system event log entry.
type EventLog struct {
	ID        int64     `json:"id"`
	EventType string    `json:"event_type"` // system, upstream, api, aggregation
	Level     string    `json:"level"`      // info, warning, error
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata,omitempty"` // JSON-encoded additional data
	CreatedAt time.Time `json:"created_at"`
}
