package ai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/skillforge/internal/ai"
)

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter()
	router.Register("openai", ai.NewMockProvider("Hello!"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
	if resp.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", resp.Provider)
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter()
	router.Register("openai", &ai.MockProvider{Err: errors.New("rate limited")})
	router.Register("ollama", ai.NewMockProvider("Fallback response"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Fallback response" {
		t.Errorf("Content = %q, want %q", resp.Content, "Fallback response")
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter()
	last := errors.New("fail 2")
	router.Register("openai", &ai.MockProvider{Err: errors.New("fail 1")})
	router.Register("ollama", &ai.MockProvider{Err: last})

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
	if !errors.Is(err, last) {
		t.Errorf("error = %v, want it to wrap the last provider error", err)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter()

	_, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("Complete() error = %v, want ErrNoProvider", err)
	}
}

func TestRouter_CancelledContext(t *testing.T) {
	router := ai.NewRouter()
	mock := ai.NewMockProvider("never")
	router.Register("mock", mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := router.Complete(ctx, ai.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Complete() error = %v, want context.Canceled", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("provider called %d times after cancellation", mock.Calls())
	}
}

func TestRouter_HasProvider(t *testing.T) {
	router := ai.NewRouter()
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}

	router.Register("mock", ai.NewMockProvider("ok"))
	if !router.HasProvider() {
		t.Error("HasProvider() should be true after Register")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter()
	router.Register("first", ai.NewMockProvider("first"))
	router.Register("second", ai.NewMockProvider("second"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{
		Messages: []ai.Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Content = %q, want %q (first registered should be tried first)", resp.Content, "first")
	}
}

func TestRouter_ReRegisterKeepsPosition(t *testing.T) {
	router := ai.NewRouter()
	router.Register("first", ai.NewMockProvider("old"))
	router.Register("second", ai.NewMockProvider("second"))
	router.Register("first", ai.NewMockProvider("new"))

	resp, err := router.Complete(context.Background(), ai.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "new" {
		t.Errorf("Content = %q, want new", resp.Content)
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := ai.NewRouter()
	if err := router.HealthCheck(context.Background()); !errors.Is(err, ai.ErrNoProvider) {
		t.Errorf("HealthCheck() with no providers = %v, want ErrNoProvider", err)
	}

	router.Register("down", &ai.MockProvider{Err: errors.New("down")})
	if err := router.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail when every provider is down")
	}

	router.Register("up", ai.NewMockProvider("ok"))
	if err := router.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil when one provider is up", err)
	}
}
