package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/engram-memory/engram/internal/config"
)

func TestProviderErrorThrottled(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{429, true},
		{529, true},
		{500, false},
		{400, false},
		{0, false},
	}
	for _, tc := range cases {
		e := &ProviderError{Provider: "anthropic", StatusCode: tc.code}
		if got := e.Throttled(); got != tc.want {
			t.Errorf("Throttled(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	e := &ProviderError{Provider: "ollama", Err: inner}
	if !errors.Is(e, inner) {
		t.Error("ProviderError does not unwrap to its cause")
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "gpt-basement"})
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewClientAnthropicNeedsKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "anthropic"})
	if err == nil {
		t.Error("expected error without API key")
	}
}

func TestMockClientQueue(t *testing.T) {
	m := &MockClient{Responses: []*Response{
		{Content: "first"},
		{Content: "second"},
	}}
	ctx := context.Background()

	r1, _ := m.Complete(ctx, "prompt one")
	r2, _ := m.Complete(ctx, "prompt two")
	r3, _ := m.Complete(ctx, "prompt three")

	if r1.Content != "first" || r2.Content != "second" {
		t.Errorf("responses out of order: %q, %q", r1.Content, r2.Content)
	}
	if r3.Content != "second" {
		t.Errorf("last response should repeat, got %q", r3.Content)
	}
	if len(m.Calls) != 3 {
		t.Errorf("calls = %d, want 3", len(m.Calls))
	}
}
