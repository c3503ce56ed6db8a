package structurer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatServer(t *testing.T, status int, reply string, seen func(r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if seen != nil {
			seen(r, body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": reply, "type": "error", "code": "upstream", "param": ""},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var gotAuth, gotReferer, gotTitle string
	var gotBody map[string]any
	srv := chatServer(t, http.StatusOK, "  {\"a\":1}  ", func(r *http.Request, body map[string]any) {
		gotAuth = r.Header.Get("Authorization")
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		gotBody = body
	})

	p := NewOpenAIProvider(ProviderConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "test-model"})
	out, err := p.Complete(context.Background(), SystemMessage, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if out != `{"a":1}` {
		t.Errorf("content = %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReferer != DefaultReferer || gotTitle != DefaultTitle {
		t.Errorf("headers = %q, %q", gotReferer, gotTitle)
	}
	if gotBody["model"] != "test-model" || gotBody["temperature"] != 0.1 || gotBody["max_tokens"] != float64(4000) {
		t.Errorf("body = %v", gotBody)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" || first["content"] != SystemMessage {
		t.Errorf("system message = %v", first)
	}
}

func TestOpenAIProvider_StatusError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "slow down", nil)
	p := NewOpenAIProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})

	_, err := p.Complete(context.Background(), "s", "u")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T %v", err, err)
	}
	if pe.Status != http.StatusTooManyRequests || pe.Body != "slow down" || !pe.Temporary() {
		t.Errorf("ProviderError = %+v", pe)
	}
}

func TestOpenAIProvider_EmptyContent(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "   ", nil)
	p := NewOpenAIProvider(ProviderConfig{APIKey: "k", BaseURL: srv.URL + "/v1"})
	if _, err := p.Complete(context.Background(), "s", "u"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestOpenAIProvider_NoKey(t *testing.T) {
	p := NewOpenAIProvider(ProviderConfig{})
	if _, err := p.Complete(context.Background(), "s", "u"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if p.Model() != DefaultModel {
		t.Errorf("model = %q", p.Model())
	}
}

func TestProviderError_Temporary(t *testing.T) {
	for status, want := range map[int]bool{400: false, 401: false, 429: true, 500: true, 503: true} {
		if got := (&ProviderError{Status: status}).Temporary(); got != want {
			t.Errorf("status %d: Temporary = %v", status, got)
		}
	}
}
