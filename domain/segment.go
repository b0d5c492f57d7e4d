package domain

import (
	"fmt"
	"time"
)

// SegmentStatus mirrors the status of a segment's most recent generation job.
type SegmentStatus string

const (
	SegmentStatusPending    SegmentStatus = "pending"
	SegmentStatusProcessing SegmentStatus = "processing"
	SegmentStatusCompleted  SegmentStatus = "completed"
	SegmentStatusFailed     SegmentStatus = "failed"
)

// Segment is one slice of a multi-part trailer, owned by exactly one project.
// Order indices within a project are contiguous from 0 and define playback order.
type Segment struct {
	ID           string        `json:"id"`
	ProjectID    string        `json:"project_id"`
	OrderIndex   int           `json:"order_index"`
	Script       string        `json:"script"`
	VisualPrompt string        `json:"visual_prompt"`
	Status       SegmentStatus `json:"status"`
	Progress     int           `json:"progress"`
	ResultURL    *string       `json:"result_url,omitempty"`
	LastJobID    *string       `json:"last_job_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsTerminal returns true when the segment reached a terminal status.
func (s *Segment) IsTerminal() bool {
	return s.Status == SegmentStatusCompleted || s.Status == SegmentStatusFailed
}

// ValidateSegmentOrder checks that segment order indices are contiguous from 0
// and unique. Segments may be passed in any order.
func ValidateSegmentOrder(segments []*Segment) error {
	seen := make(map[int]struct{}, len(segments))
	for _, s := range segments {
		if s.OrderIndex < 0 || s.OrderIndex >= len(segments) {
			return fmt.Errorf("%w: index %d out of range for %d segments", ErrSegmentOrderInvalid, s.OrderIndex, len(segments))
		}
		if _, dup := seen[s.OrderIndex]; dup {
			return fmt.Errorf("%w: duplicate index %d", ErrSegmentOrderInvalid, s.OrderIndex)
		}
		seen[s.OrderIndex] = struct{}{}
	}
	return nil
}

// ProjectStatus is the aggregate generation status of a project.
type ProjectStatus string

const (
	ProjectStatusPending    ProjectStatus = "pending"
	ProjectStatusProcessing ProjectStatus = "processing"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusFailed     ProjectStatus = "failed"
)

// Project carries only the aggregate fields this service mutates. The rest of
// the project row (name, owner, uploads) belongs to the surrounding application.
type Project struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Status          ProjectStatus `json:"status"`
	OverallProgress int           `json:"overall_progress"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// SegmentProgress is one segment's contribution to a project progress report.
type SegmentProgress struct {
	SegmentID  string        `json:"segment_id"`
	OrderIndex int           `json:"order_index"`
	Status     SegmentStatus `json:"status"`
	Progress   int           `json:"progress"`
	ResultURL  string        `json:"result_url,omitempty"`
}

// ProjectProgress is the aggregate view served to status pollers.
type ProjectProgress struct {
	ProjectID       string            `json:"project_id"`
	Status          ProjectStatus     `json:"status"`
	OverallProgress int               `json:"overall_progress"`
	Segments        []SegmentProgress `json:"segments"`
}
