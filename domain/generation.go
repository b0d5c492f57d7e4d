package domain

import (
	"fmt"
	"strings"
)

// MaxPromptLength is the provider-side prompt cap. Longer prompts are rejected
// at submission, before any job record is created.
const MaxPromptLength = 2500

// Enumerated provider constraints. The cost-optimized video provider only
// renders fixed durations and resolutions, so anything outside these sets is an
// input validation error, not a provider failure.
var (
	allowedDurations   = map[int]struct{}{5: {}, 10: {}}
	allowedResolutions = map[string]struct{}{"720p": {}, "1080p": {}}
	allowedAspects     = map[string]struct{}{"16:9": {}, "9:16": {}, "1:1": {}}
)

// GenerationInput is the payload of a video-generation job.
type GenerationInput struct {
	Prompt          string `json:"prompt"`
	DurationSeconds int    `json:"duration_seconds"`
	Resolution      string `json:"resolution"`
	AspectRatio     string `json:"aspect_ratio"`
}

// Validate checks the input against the provider constraint set.
func (in *GenerationInput) Validate() error {
	if strings.TrimSpace(in.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if len(in.Prompt) > MaxPromptLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrPromptTooLong, len(in.Prompt), MaxPromptLength)
	}
	if _, ok := allowedDurations[in.DurationSeconds]; !ok {
		return fmt.Errorf("%w: %d seconds", ErrUnsupportedDuration, in.DurationSeconds)
	}
	if _, ok := allowedResolutions[in.Resolution]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedResolution, in.Resolution)
	}
	if in.AspectRatio != "" {
		if _, ok := allowedAspects[in.AspectRatio]; !ok {
			return fmt.Errorf("%w: %q", ErrUnsupportedAspectRatio, in.AspectRatio)
		}
	}
	return nil
}

// ScriptRequest is the payload of a script-generate or script-refine job.
type ScriptRequest struct {
	ProjectName  string `json:"project_name"`
	Description  string `json:"description"`
	ImageCaption string `json:"image_caption,omitempty"`
	// ExistingScript is set for script-refine jobs only.
	ExistingScript string `json:"existing_script,omitempty"`
	Instruction    string `json:"instruction,omitempty"`
}

// Validate checks the script request for the given job type.
func (r *ScriptRequest) Validate(jobType JobType) error {
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyPrompt
	}
	if len(r.Description) > MaxPromptLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrPromptTooLong, len(r.Description), MaxPromptLength)
	}
	if jobType == JobTypeScriptRefine && strings.TrimSpace(r.ExistingScript) == "" {
		return fmt.Errorf("%w: refine requires an existing script", ErrInvalidRequest)
	}
	return nil
}

// GenerationState is the normalized status of an external generation.
type GenerationState string

const (
	GenerationStateQueued     GenerationState = "queued"
	GenerationStateProcessing GenerationState = "processing"
	GenerationStateCompleted  GenerationState = "completed"
	GenerationStateFailed     GenerationState = "failed"
)

// GenerationStatus is the provider-agnostic poll result for an external handle.
type GenerationStatus struct {
	State           GenerationState `json:"state"`
	Progress        int             `json:"progress"`
	ResultURL       string          `json:"result_url,omitempty"`
	DurationSeconds int             `json:"duration_seconds,omitempty"`
	Resolution      string          `json:"resolution,omitempty"`
	Message         string          `json:"message,omitempty"`
}

// Script is the normalized result of a script generation call.
type Script struct {
	Script       string `json:"script"`
	VisualPrompt string `json:"visual_prompt"`
}
