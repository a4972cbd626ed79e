package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const anthropicMaxTokens = 1024

// AnthropicProvider calls the Anthropic messages API.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider builds an Anthropic provider. An empty baseURL
// uses the public API endpoint. SDK-internal retries are disabled; the
// engine's retry policy owns retry behavior.
func NewAnthropicProvider(apiKey string, baseURL string) *AnthropicProvider {
	opts := make([]option.RequestOption, 0, 3)
	if key := strings.TrimSpace(apiKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if base := strings.TrimSpace(strings.TrimRight(baseURL, "/")); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/v1")))
	}
	opts = append(opts, option.WithMaxRetries(0))

	return &AnthropicProvider{client: anthropic.NewClient(opts...)}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	if p == nil {
		return nil, errors.New("llm: anthropic: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("llm: anthropic: nil context")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(strings.TrimSpace(req.Model)),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(req.Prompt),
			},
		}},
		// Temperature is sent unconditionally, so an explicit 0.0 reaches
		// the API instead of falling back to the provider default.
		Temperature: param.NewOpt(req.Temperature),
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, normalizeAnthropicError(err)
	}
	if msg == nil {
		return nil, errors.New("llm: anthropic: nil response")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	return &Completion{
		Text:         sb.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

type anthropicErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func normalizeAnthropicError(err error) error {
	if err == nil {
		return nil
	}

	var sdkErr *anthropic.Error
	if !errors.As(err, &sdkErr) {
		return err
	}

	apiErr := &APIError{
		Provider:   "anthropic",
		StatusCode: sdkErr.StatusCode,
	}
	if sdkErr.Response != nil {
		apiErr.Status = sdkErr.Response.Status
	} else if sdkErr.StatusCode != 0 {
		apiErr.Status = fmt.Sprintf("%d %s", sdkErr.StatusCode, http.StatusText(sdkErr.StatusCode))
	}

	if raw := strings.TrimSpace(sdkErr.RawJSON()); raw != "" {
		var env anthropicErrorEnvelope
		if json.Unmarshal([]byte(raw), &env) == nil {
			apiErr.Message = env.Error.Message
		}
	}

	return apiErr
}
