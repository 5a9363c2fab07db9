package models

import "time"

// JobStatus is the lifecycle state of a compilation job
type JobStatus string

// JobStatus constants
const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are expected
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// JobState is the snapshot a poller sees for one job
type JobState struct {
	JobID     string    `json:"jobId"`
	VideoID   string    `json:"videoId,omitempty"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress"`
	VideoURL  string    `json:"videoUrl,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlaceholderState is returned for ids the tracker has never seen or has expired
func PlaceholderState(jobID string) JobState {
	return JobState{
		JobID:    jobID,
		Status:   JobStatusProcessing,
		Message:  "Processing video...",
		Progress: 10,
	}
}

// CompilationTask is the unit handed to a worker
type CompilationTask struct {
	JobID      string             `json:"jobId"`
	Request    CompilationRequest `json:"request"`
	EnqueuedAt time.Time          `json:"enqueuedAt"`
}
