package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/antonstanevich/majordomo/internal/tool"
)

// Router is the single entry point for "ask a language model anything".
// It resolves a provider through the registry and, on an authentication
// failure, transparently retries with the remaining configured providers.
type Router struct {
	registry *Registry
	logger   *zap.Logger
}

func NewRouter(registry *Registry, logger *zap.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// Request carries one uniform chat call.
type Request struct {
	Messages []Message
	// Provider is the preferred provider name; the registry may substitute.
	Provider string
	Tier     Tier
	System   string
	Tools    []tool.Spec
}

// Chat resolves a provider and performs the call. Authentication failures
// mark the provider for the rest of the process and trigger one fallback
// sweep across the remaining providers in registration order. Transport and
// other failures propagate to the caller untouched.
func (r *Router) Chat(ctx context.Context, req Request) (*Result, error) {
	provider, err := r.registry.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	result, err := provider.Chat(ctx, req.Messages, req.Tier, req.System, req.Tools)
	if err == nil {
		return result, nil
	}
	if !isAuthFailure(err) {
		return nil, err
	}

	r.logger.Warn("Provider auth failed, trying fallback",
		zap.String("provider", provider.Name()),
		zap.Error(err))
	r.registry.MarkAuthFailed(provider.Name())

	for _, alternate := range r.registry.usable(provider.Name()) {
		r.logger.Info("Falling back to provider", zap.String("provider", alternate.Name()))
		result, err = alternate.Chat(ctx, req.Messages, req.Tier, req.System, req.Tools)
		if err == nil {
			return result, nil
		}
		if !isAuthFailure(err) {
			return nil, err
		}
		r.registry.MarkAuthFailed(alternate.Name())
	}

	return nil, fmt.Errorf("%w: API key for %s rejected and no alternate succeeded",
		ErrNoProvider, provider.Name())
}

// ConfiguredNames lists the providers whose credentials are present.
func (r *Router) ConfiguredNames() []string {
	return r.registry.ConfiguredNames()
}
