// ABOUTME: LLM-backed script writer for trailer narration and visual prompts
// ABOUTME: Talks to an Ollama-compatible completion endpoint and parses the sectioned reply
package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"trailer-engine/domain"
	"trailer-engine/repository"
)

const (
	// Prompt templates for trailer script work. The model is asked for two
	// labelled sections that parseScriptReply splits apart.
	generateScriptTemplate = `You are a copywriter for short product trailers. Write a punchy voiceover
script for the product below, then a separate visual direction prompt for a
video generation model.

PRODUCT: %s
DESCRIPTION: %s
%s
RULES:
- Script: 2-4 sentences, energetic, no hashtags, no emoji
- Visual prompt: one paragraph of concrete imagery, camera and mood direction

Reply with exactly two sections:
SCRIPT:
<the voiceover script>
VISUAL:
<the visual prompt>
`

	refineScriptTemplate = `You are a copywriter revising a product trailer voiceover. Apply the
instruction to the existing script while keeping its length and energy, then
update the visual direction prompt to match.

PRODUCT: %s
DESCRIPTION: %s
EXISTING SCRIPT:
%s
INSTRUCTION: %s

Reply with exactly two sections:
SCRIPT:
<the revised voiceover script>
VISUAL:
<the visual prompt>
`
)

// completionRequest is the Ollama-compatible generation request body.
type completionRequest struct {
	Model   string            `json:"model"`
	Prompt  string            `json:"prompt"`
	Stream  bool              `json:"stream"`
	Options completionOptions `json:"options"`
}

type completionOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
	NumCtx      int     `json:"num_ctx"`
}

// completionResponse is the Ollama-compatible generation reply.
type completionResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// ScriptGatewayConfig configures the live script gateway client.
type ScriptGatewayConfig struct {
	Host    string
	APIPath string
	Model   string
	Timeout time.Duration
}

type scriptGatewayClient struct {
	apiURL     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewScriptGatewayClient creates a live script gateway client.
func NewScriptGatewayClient(cfg ScriptGatewayConfig, logger *slog.Logger) repository.ScriptGateway {
	return &scriptGatewayClient{
		apiURL:     strings.TrimSuffix(cfg.Host, "/") + cfg.APIPath,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// GenerateScript asks the model for a voiceover script and visual prompt.
func (g *scriptGatewayClient) GenerateScript(ctx context.Context, req *domain.ScriptRequest) (*domain.Script, error) {
	prompt := buildScriptPrompt(req)

	body, err := json.Marshal(completionRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
		Options: completionOptions{
			Temperature: 0.7,
			TopP:        0.9,
			NumPredict:  500,
			NumCtx:      4096,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	g.logger.DebugContext(ctx, "requesting script generation", "api_url", g.apiURL, "model", g.model)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: script provider unreachable: %v", domain.ErrProviderFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: completion rejected with status %d: %s", domain.ErrProviderFailed, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("%w: invalid completion response: %v", domain.ErrProviderFailed, err)
	}

	script, err := parseScriptReply(completion.Response)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "script generated", "project_name", req.ProjectName, "script_len", len(script.Script))
	return script, nil
}

// buildScriptPrompt picks the generate or refine template based on whether an
// existing script is present.
func buildScriptPrompt(req *domain.ScriptRequest) string {
	if req.ExistingScript != "" {
		return fmt.Sprintf(refineScriptTemplate, req.ProjectName, req.Description, req.ExistingScript, req.Instruction)
	}

	caption := ""
	if req.ImageCaption != "" {
		caption = "IMAGE: " + req.ImageCaption + "\n"
	}
	return fmt.Sprintf(generateScriptTemplate, req.ProjectName, req.Description, caption)
}

// parseScriptReply splits the model reply into its SCRIPT and VISUAL sections.
func parseScriptReply(reply string) (*domain.Script, error) {
	scriptIdx := strings.Index(reply, "SCRIPT:")
	visualIdx := strings.Index(reply, "VISUAL:")
	if scriptIdx < 0 {
		return nil, fmt.Errorf("%w: completion missing SCRIPT section", domain.ErrProviderFailed)
	}

	var script, visual string
	if visualIdx > scriptIdx {
		script = reply[scriptIdx+len("SCRIPT:") : visualIdx]
		visual = reply[visualIdx+len("VISUAL:"):]
	} else {
		script = reply[scriptIdx+len("SCRIPT:"):]
	}

	script = strings.TrimSpace(script)
	if script == "" {
		return nil, fmt.Errorf("%w: completion produced an empty script", domain.ErrProviderFailed)
	}

	return &domain.Script{
		Script:       script,
		VisualPrompt: strings.TrimSpace(visual),
	}, nil
}
