package api

import "time"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// JobResponse represents the current state of one scheduled job
type JobResponse struct {
	Name           string      `json:"name"`
	Status         string      `json:"status"`
	LastExecution  *time.Time  `json:"last_execution,omitempty"`
	ExecutionCount int         `json:"execution_count"`
	LastRunID      string      `json:"last_run_id,omitempty"`
	LastResult     interface{} `json:"last_result,omitempty"`
	LastError      *string     `json:"last_error,omitempty"`
}

// TriggerResponse acknowledges a manual job trigger
type TriggerResponse struct {
	Job   string `json:"job"`
	RunID string `json:"run_id"`
}
