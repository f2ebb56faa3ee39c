package models

import "time"

// JobStatus represents the lifecycle state of a scheduled job
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status ends a run
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobHistory records the lifecycle of one scheduled job. LastExecution is the
// watermark read at the start of the next incremental run; it only advances
// on successful runs.
type JobHistory struct {
	JobName        string      `bson:"job_name" json:"job_name"`
	Status         JobStatus   `bson:"status" json:"status"`
	LastExecution  *time.Time  `bson:"last_execution,omitempty" json:"last_execution,omitempty"`
	ExecutionCount int         `bson:"execution_count" json:"execution_count"`
	LastRunID      string      `bson:"last_run_id,omitempty" json:"last_run_id,omitempty"`
	LastResult     interface{} `bson:"last_result,omitempty" json:"last_result,omitempty"`
	LastError      *string     `bson:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
	LastUpdated    time.Time   `bson:"last_updated" json:"last_updated"`
}

// CollectionName specifies the document collection for JobHistory
func (JobHistory) CollectionName() string {
	return "job_history"
}
