package llm

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestRouterFallsBackOnAuthFailure(t *testing.T) {
	a := &fakeProvider{
		name:       "alpha",
		configured: true,
		errs:       []error{&AuthError{Provider: "alpha", Err: errors.New("401 invalid api key")}},
	}
	b := &fakeProvider{
		name:       "beta",
		configured: true,
		results:    []*Result{{Content: "hello from beta", Model: "beta-cheap", TokensUsed: 7}},
	}

	registry := NewRegistry(zap.NewNop())
	registry.RegisterAll(a, b)
	router := NewRouter(registry, zap.NewNop())

	result, err := router.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Provider: "alpha",
		Tier:     TierCheap,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result.Content != "hello from beta" {
		t.Errorf("Content = %q, want fallback provider answer", result.Content)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls alpha=%d beta=%d, want 1 each", a.calls, b.calls)
	}

	// alpha stays excluded for the rest of the process.
	p, err := registry.Resolve("alpha")
	if err != nil {
		t.Fatalf("Resolve after auth failure: %v", err)
	}
	if p.Name() != "beta" {
		t.Errorf("resolved %q after auth failure, want beta", p.Name())
	}
}

func TestRouterAllProvidersAuthFailed(t *testing.T) {
	a := &fakeProvider{
		name:       "alpha",
		configured: true,
		errs:       []error{&AuthError{Provider: "alpha", Err: errors.New("unauthorized")}},
	}
	b := &fakeProvider{
		name:       "beta",
		configured: true,
		errs:       []error{&AuthError{Provider: "beta", Err: errors.New("unauthorized")}},
	}

	registry := NewRegistry(zap.NewNop())
	registry.RegisterAll(a, b)
	router := NewRouter(registry, zap.NewNop())

	_, err := router.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Provider: "alpha",
		Tier:     TierCheap,
	})
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("Chat error = %v, want ErrNoProvider", err)
	}

	if _, err := registry.Resolve("alpha"); !errors.Is(err, ErrNoProvider) {
		t.Errorf("both providers should remain marked auth-failed, Resolve error = %v", err)
	}
}

func TestRouterDoesNotFallBackOnTransportError(t *testing.T) {
	transport := &TransportError{Provider: "alpha", Err: errors.New("503 overloaded")}
	a := &fakeProvider{name: "alpha", configured: true, errs: []error{transport}}
	b := &fakeProvider{name: "beta", configured: true}

	registry := NewRegistry(zap.NewNop())
	registry.RegisterAll(a, b)
	router := NewRouter(registry, zap.NewNop())

	_, err := router.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Provider: "alpha",
		Tier:     TierCheap,
	})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Chat error = %v, want the provider's transport error", err)
	}
	if b.calls != 0 {
		t.Errorf("beta called %d times on a transport error, want 0", b.calls)
	}

	// Transport errors do not disqualify the provider.
	p, err := registry.Resolve("alpha")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.Name() != "alpha" {
		t.Errorf("resolved %q, alpha should still be usable", p.Name())
	}
}

func TestRouterNoConfiguredProvider(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	registry.RegisterAll(&fakeProvider{name: "alpha", configured: false})
	router := NewRouter(registry, zap.NewNop())

	_, err := router.Chat(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Tier:     TierCheap,
	})
	if !errors.Is(err, ErrNoProvider) {
		t.Errorf("Chat error = %v, want ErrNoProvider", err)
	}
}

func TestIsAuthFailureRecognizesMessageText(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&AuthError{Provider: "alpha", Err: errors.New("nope")}, true},
		{errors.New("API returned 401 Unauthorized"), true},
		{errors.New("invalid API key provided"), true},
		{errors.New("authentication_error: bad credentials"), true},
		{&TransportError{Provider: "alpha", Err: errors.New("timeout")}, false},
		{errors.New("connection refused"), false},
	}
	for _, c := range cases {
		if got := isAuthFailure(c.err); got != c.want {
			t.Errorf("isAuthFailure(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
