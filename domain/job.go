package domain

import (
	"encoding/json"
	"time"
)

// JobType identifies the kind of generation work a job carries.
type JobType string

const (
	JobTypeScriptGenerate JobType = "script-generate"
	JobTypeScriptRefine   JobType = "script-refine"
	JobTypeVideoGenerate  JobType = "video-generate"
)

// ValidJobType reports whether t is one of the supported job types.
func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeScriptGenerate, JobTypeScriptRefine, JobTypeVideoGenerate:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of a queued job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is one unit of asynchronous generation work owned by the job queue.
type Job struct {
	ID             string          `json:"id"`
	Type           JobType         `json:"type"`
	Status         JobStatus       `json:"status"`
	Priority       int             `json:"priority"`
	Payload        json.RawMessage `json:"payload"`
	Output         json.RawMessage `json:"output,omitempty"`
	Error          *string         `json:"error,omitempty"`
	Progress       int             `json:"progress"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
	ExternalHandle string          `json:"external_handle,omitempty"`
	WorkerID       string          `json:"worker_id,omitempty"`
	ProjectID      string          `json:"project_id,omitempty"`
	SegmentID      string          `json:"segment_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the job status is terminal (completed or failed).
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// CanRetry returns true if the job has retry budget left.
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// VideoOutput is the recorded result of a completed video-generation job.
type VideoOutput struct {
	ResultURL       string `json:"result_url"`
	DurationSeconds int    `json:"duration_seconds"`
	Resolution      string `json:"resolution"`
	ExternalHandle  string `json:"external_handle,omitempty"`
}

// ScriptOutput is the recorded result of a completed script job.
type ScriptOutput struct {
	Script       string `json:"script"`
	VisualPrompt string `json:"visual_prompt,omitempty"`
}
