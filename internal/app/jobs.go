package app

import (
	"time"

	"github.com/raysh454/sitelens/internal/audit"
)

type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
	JobEventResult   JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For progress
	Message  string `json:"message,omitempty"`
	Progress int    `json:"progress"`

	Result *audit.AggregateResult `json:"result,omitempty"`
}

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is a snapshot of one background analysis.
type Job struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Target    string                 `json:"target"`
	Request   audit.AnalysisRequest  `json:"request"`
	Status    JobStatus              `json:"status"`
	Progress  int                    `json:"progress"`
	Error     string                 `json:"error,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
	Result    *audit.AggregateResult `json:"result,omitempty"`

	// Events is only set on the Job returned by StartAnalyzeJob. It is closed
	// once the job has finished.
	Events <-chan JobEvent `json:"-"`
}

// job is the mutable record behind Job snapshots. Guarded by Service.jobsMu.
type job struct {
	Job
	events chan JobEvent
}

func (j *job) snapshot() Job {
	s := j.Job
	s.Events = nil
	if j.EndedAt != nil {
		t := *j.EndedAt
		s.EndedAt = &t
	}
	return s
}
