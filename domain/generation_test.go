package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationInput_Validate(t *testing.T) {
	valid := GenerationInput{
		Prompt:          "a neon-lit CLI demo, fast cuts",
		DurationSeconds: 5,
		Resolution:      "720p",
		AspectRatio:     "16:9",
	}

	t.Run("should accept a valid input", func(t *testing.T) {
		in := valid
		assert.NoError(t, in.Validate())
	})

	t.Run("should accept every supported duration and resolution", func(t *testing.T) {
		for _, d := range []int{5, 10} {
			for _, res := range []string{"720p", "1080p"} {
				in := valid
				in.DurationSeconds = d
				in.Resolution = res
				assert.NoError(t, in.Validate(), "duration=%d resolution=%s", d, res)
			}
		}
	})

	t.Run("should reject an empty prompt", func(t *testing.T) {
		in := valid
		in.Prompt = "   "
		assert.ErrorIs(t, in.Validate(), ErrEmptyPrompt)
	})

	t.Run("should reject a prompt over the length cap", func(t *testing.T) {
		in := valid
		in.Prompt = strings.Repeat("x", MaxPromptLength+1)
		assert.ErrorIs(t, in.Validate(), ErrPromptTooLong)
	})

	t.Run("should accept a prompt exactly at the length cap", func(t *testing.T) {
		in := valid
		in.Prompt = strings.Repeat("x", MaxPromptLength)
		assert.NoError(t, in.Validate())
	})

	t.Run("should reject unsupported durations", func(t *testing.T) {
		for _, d := range []int{0, 3, 7, 15, -5} {
			in := valid
			in.DurationSeconds = d
			assert.ErrorIs(t, in.Validate(), ErrUnsupportedDuration, "duration=%d", d)
		}
	})

	t.Run("should reject an unsupported resolution", func(t *testing.T) {
		in := valid
		in.Resolution = "480p"
		assert.ErrorIs(t, in.Validate(), ErrUnsupportedResolution)
	})

	t.Run("should reject an unsupported aspect ratio", func(t *testing.T) {
		in := valid
		in.AspectRatio = "4:3"
		assert.ErrorIs(t, in.Validate(), ErrUnsupportedAspectRatio)
	})

	t.Run("should allow the aspect ratio to be omitted", func(t *testing.T) {
		in := valid
		in.AspectRatio = ""
		assert.NoError(t, in.Validate())
	})
}

func TestScriptRequest_Validate(t *testing.T) {
	t.Run("should accept a generate request with a description", func(t *testing.T) {
		req := ScriptRequest{ProjectName: "launchpad", Description: "a deploy tool for solo devs"}
		assert.NoError(t, req.Validate(JobTypeScriptGenerate))
	})

	t.Run("should reject an empty description", func(t *testing.T) {
		req := ScriptRequest{ProjectName: "launchpad"}
		assert.ErrorIs(t, req.Validate(JobTypeScriptGenerate), ErrEmptyPrompt)
	})

	t.Run("should require an existing script for refine", func(t *testing.T) {
		req := ScriptRequest{Description: "a deploy tool", Instruction: "make it shorter"}
		assert.ErrorIs(t, req.Validate(JobTypeScriptRefine), ErrInvalidRequest)
	})

	t.Run("should accept refine with an existing script", func(t *testing.T) {
		req := ScriptRequest{
			Description:    "a deploy tool",
			ExistingScript: "Meet launchpad.",
			Instruction:    "make it shorter",
		}
		assert.NoError(t, req.Validate(JobTypeScriptRefine))
	})
}
