package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"trailer-engine/domain"
	"trailer-engine/repository"
)

// mockScriptGateway produces deterministic scripts without any I/O. The output
// is a pure function of the request so tests can assert on it exactly.
type mockScriptGateway struct {
	logger *slog.Logger
}

// NewMockScriptGateway creates a deterministic script gateway.
func NewMockScriptGateway(logger *slog.Logger) repository.ScriptGateway {
	return &mockScriptGateway{logger: logger}
}

// GenerateScript deterministically derives a script from the request fields.
func (g *mockScriptGateway) GenerateScript(ctx context.Context, req *domain.ScriptRequest) (*domain.Script, error) {
	if strings.Contains(req.Description, MockFailMarker) {
		return nil, fmt.Errorf("%w: simulated script provider failure", domain.ErrProviderFailed)
	}

	name := req.ProjectName
	if name == "" {
		name = "your product"
	}

	if req.ExistingScript != "" {
		g.logger.DebugContext(ctx, "mock script refined", "project_name", name)
		return &domain.Script{
			Script:       fmt.Sprintf("%s Now sharper than ever. (%s)", req.ExistingScript, req.Instruction),
			VisualPrompt: fmt.Sprintf("Tight product shots of %s, refined pacing, bold typography.", name),
		}, nil
	}

	g.logger.DebugContext(ctx, "mock script generated", "project_name", name)
	return &domain.Script{
		Script:       fmt.Sprintf("Meet %s. %s Built for people who ship. Try it today.", name, firstSentence(req.Description)),
		VisualPrompt: fmt.Sprintf("Cinematic close-up of %s in use, soft studio lighting, slow dolly-in.", name),
	}, nil
}

// firstSentence returns the request description up to and including its first
// period, keeping the mock script short.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "."); idx >= 0 {
		return text[:idx+1]
	}
	if text == "" {
		return ""
	}
	return text + "."
}
