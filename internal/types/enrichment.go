package types

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobRunning    JobStatus = "running"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
	JobSuperseded JobStatus = "superseded"
)

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled, JobSuperseded:
		return true
	}
	return false
}

// EnrichmentJob is a snapshot of a queued POI enrichment run.
type EnrichmentJob struct {
	ID           uuid.UUID         `json:"id"`
	PropertyID   uuid.UUID         `json:"property_id"`
	Lat          float64           `json:"lat"`
	Lng          float64           `json:"lng"`
	Status       JobStatus         `json:"status"`
	Result       *EnrichmentResult `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	SupersededBy *uuid.UUID        `json:"superseded_by,omitempty"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
}
