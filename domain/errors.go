// ABOUTME: Domain-level sentinel errors for the trailer-engine service
// ABOUTME: These errors are used with errors.Is() for error type checking
package domain

import "errors"

// Job-related errors
var (
	// ErrJobNotFound indicates the requested job does not exist
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownJobType indicates the job type is not one of the supported kinds
	ErrUnknownJobType = errors.New("unknown job type")
)

// Validation errors
var (
	// ErrInvalidRequest indicates the request format is invalid
	ErrInvalidRequest = errors.New("invalid request format")

	// ErrEmptyPrompt indicates the prompt field is required but empty
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrPromptTooLong indicates the prompt exceeds the provider maximum
	ErrPromptTooLong = errors.New("prompt too long")

	// ErrUnsupportedDuration indicates a duration outside the provider's fixed set
	ErrUnsupportedDuration = errors.New("unsupported duration")

	// ErrUnsupportedResolution indicates a resolution outside the provider's fixed set
	ErrUnsupportedResolution = errors.New("unsupported resolution")

	// ErrUnsupportedAspectRatio indicates an aspect ratio outside the provider's fixed set
	ErrUnsupportedAspectRatio = errors.New("unsupported aspect ratio")
)

// Segment/project errors
var (
	// ErrSegmentNotFound indicates the requested segment does not exist
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrProjectNotFound indicates the requested project does not exist
	ErrProjectNotFound = errors.New("project not found")

	// ErrSegmentOrderInvalid indicates project segment indices are not contiguous from 0
	ErrSegmentOrderInvalid = errors.New("segment order indices must be contiguous and unique")
)

// External provider errors
var (
	// ErrMalformedHandle indicates an external job handle this service never issued
	ErrMalformedHandle = errors.New("malformed external job handle")

	// ErrProviderFailed indicates the provider reported a permanent generation failure
	ErrProviderFailed = errors.New("provider reported generation failure")

	// ErrPollTimeout indicates the poll attempt cap was exhausted before a terminal state
	ErrPollTimeout = errors.New("polling attempts exhausted")

	// ErrJobCancelled indicates generation was stopped by an explicit cancel request
	ErrJobCancelled = errors.New("generation cancelled")
)
