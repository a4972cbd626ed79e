package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func anthropicStub(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAnthropicProvider("test-key", srv.URL)
}

func messageResponse(text string, in, out int) map[string]any {
	return map[string]any{
		"id":          "msg_1",
		"type":        "message",
		"role":        "assistant",
		"model":       "claude-3-5-haiku-latest",
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"usage":       map[string]int{"input_tokens": in, "output_tokens": out},
	}
}

func TestAnthropic_Complete(t *testing.T) {
	p := anthropicStub(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			http.Error(w, "auth", http.StatusUnauthorized)
			return
		}

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "json", http.StatusBadRequest)
			return
		}
		if req["max_tokens"] == nil || req["max_tokens"] == float64(0) {
			http.Error(w, "missing max_tokens", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse("Hello Alice", 6, 2))
	})

	comp, err := p.Complete(context.Background(), Request{
		Prompt: "Say hi to Alice",
		Model:  "claude-3-5-haiku-latest",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if comp.Text != "Hello Alice" || comp.InputTokens != 6 || comp.OutputTokens != 2 {
		t.Fatalf("completion: %+v", comp)
	}
}

func TestAnthropic_SendsZeroTemperature(t *testing.T) {
	p := anthropicStub(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "json", http.StatusBadRequest)
			return
		}
		temp, ok := req["temperature"]
		if !ok {
			http.Error(w, "missing temperature", http.StatusBadRequest)
			return
		}
		if temp != float64(0) {
			http.Error(w, "wrong temperature", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse("ok", 1, 1))
	})

	_, err := p.Complete(context.Background(), Request{
		Prompt:      "p",
		Model:       "claude-3-5-haiku-latest",
		Temperature: 0,
	})
	if err != nil {
		t.Fatalf("Complete with temperature 0: %v", err)
	}
}

func TestAnthropic_OverloadedNormalized(t *testing.T) {
	p := anthropicStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "overloaded_error", "message": "Overloaded"}}`))
	})

	_, err := p.Complete(context.Background(), Request{Prompt: "p", Model: "m"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 529 {
		t.Fatalf("status: %d", apiErr.StatusCode)
	}
	if !IsTransient(err) {
		t.Fatalf("overloaded should classify transient")
	}
}
