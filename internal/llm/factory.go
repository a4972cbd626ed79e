package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Options configures provider construction. Empty fields fall back to
// the conventional environment variables.
type Options struct {
	APIKey      string
	BaseURL     string
	WebhookURL  string
	HTTPTimeout time.Duration
}

// New builds a provider by name: "openai", "anthropic", or "webhook".
func New(name string, opts Options) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		key := firstNonEmpty(opts.APIKey, os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("llm: provider %q requires OPENAI_API_KEY", name)
		}
		base := firstNonEmpty(opts.BaseURL, os.Getenv("OPENAI_BASE_URL"))
		return NewOpenAIProvider(key, base), nil

	case "anthropic", "claude":
		key := firstNonEmpty(opts.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("llm: provider %q requires ANTHROPIC_API_KEY", name)
		}
		base := firstNonEmpty(opts.BaseURL, os.Getenv("ANTHROPIC_BASE_URL"))
		return NewAnthropicProvider(key, base), nil

	case "webhook":
		url := firstNonEmpty(opts.WebhookURL, os.Getenv("WEBHOOK_URL"))
		if url == "" {
			return nil, fmt.Errorf("llm: provider %q requires WEBHOOK_URL (e.g. http://localhost:8080/complete)", name)
		}
		return NewWebhookProvider(url, opts.HTTPTimeout), nil

	default:
		return nil, fmt.Errorf("llm: unknown provider %q (known: openai, anthropic, webhook)", name)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
