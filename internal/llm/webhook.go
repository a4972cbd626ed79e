package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const webhookMaxBody = 4 << 20

// WebhookProvider posts prompts to a user-specified HTTP endpoint.
//
// The endpoint must accept POST with JSON body
// {"prompt": "...", "model": "...", "temperature": 0.7} and reply with
// {"text": "...", "usage": {...}} or an OpenAI-compatible
// {"choices": [{"message": {"content": "..."}}]}. Usage is optional.
type WebhookProvider struct {
	url        string
	httpClient *http.Client
}

// NewWebhookProvider builds a webhook provider for the given endpoint.
func NewWebhookProvider(url string, timeout time.Duration) *WebhookProvider {
	return &WebhookProvider{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *WebhookProvider) Name() string {
	return "webhook"
}

type webhookRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

type webhookResponse struct {
	Text    string `json:"text"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *WebhookProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	if p == nil || p.httpClient == nil {
		return nil, errors.New("llm: webhook: nil provider")
	}
	if ctx == nil {
		return nil, errors.New("llm: webhook: nil context")
	}
	if p.url == "" {
		return nil, errors.New("llm: webhook: empty endpoint url")
	}

	body, err := json.Marshal(webhookRequest{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: webhook: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: webhook: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, webhookMaxBody))
	if err != nil {
		return nil, fmt.Errorf("llm: webhook: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Provider:   "webhook",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	var payload webhookResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("llm: webhook: invalid JSON response: %w", err)
	}

	text := payload.Text
	if text == "" && len(payload.Choices) > 0 {
		text = payload.Choices[0].Message.Content
	}
	if text == "" {
		return nil, errors.New("llm: webhook: response missing 'text' or 'choices[0].message.content'")
	}

	return &Completion{
		Text:         text,
		InputTokens:  payload.Usage.PromptTokens,
		OutputTokens: payload.Usage.CompletionTokens,
	}, nil
}
