package llm

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the available LLM providers in registration order.
// The auth-failed flag per provider is process-lifetime and monotone: once
// set it is never cleared in-process.
type Registry struct {
	mu      sync.Mutex
	entries []*registryEntry
	logger  *zap.Logger
}

type registryEntry struct {
	provider   Provider
	authFailed bool
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds one provider. Empty and duplicate names are rejected.
func (r *Registry) Register(p Provider) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("provider has empty name: %T", p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.provider.Name() == name {
			return fmt.Errorf("provider already registered: %s", name)
		}
	}

	r.entries = append(r.entries, &registryEntry{provider: p})
	r.logger.Info("Registered provider",
		zap.String("name", name),
		zap.Bool("configured", p.IsConfigured()))
	return nil
}

// RegisterAll registers every provider. A faulty entry is logged and skipped.
func (r *Registry) RegisterAll(providers ...Provider) {
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			r.logger.Warn("Skipping provider registration", zap.Error(err))
		}
	}
	r.logger.Info("Provider registration complete",
		zap.Strings("configured", r.ConfiguredNames()))
}

// ConfiguredNames returns, in registration order, the providers whose
// credentials were present at startup.
func (r *Registry) ConfiguredNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, e := range r.entries {
		if e.provider.IsConfigured() {
			names = append(names, e.provider.Name())
		}
	}
	return names
}

// Resolve returns the preferred provider when it is configured and has not
// auth-failed; otherwise the first usable provider in registration order;
// otherwise ErrNoProvider. Registration order is the tie-break; there is no
// load balancing here.
func (r *Registry) Resolve(preferred string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.provider.Name() == preferred && e.provider.IsConfigured() && !e.authFailed {
			return e.provider, nil
		}
	}

	for _, e := range r.entries {
		if e.provider.IsConfigured() && !e.authFailed {
			if e.provider.Name() != preferred {
				r.logger.Warn("Preferred provider not available, falling back",
					zap.String("preferred", preferred),
					zap.String("fallback", e.provider.Name()))
			}
			return e.provider, nil
		}
	}

	return nil, ErrNoProvider
}

// MarkAuthFailed flags a provider as unusable for the rest of the process.
func (r *Registry) MarkAuthFailed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.provider.Name() == name && !e.authFailed {
			e.authFailed = true
			r.logger.Warn("Provider marked auth-failed", zap.String("name", name))
		}
	}
}

// usable returns the configured, non-auth-failed providers in registration
// order, excluding the named one. Used by the router's fallback sweep.
func (r *Registry) usable(excluding string) []Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Provider
	for _, e := range r.entries {
		if e.provider.Name() != excluding && e.provider.IsConfigured() && !e.authFailed {
			out = append(out, e.provider)
		}
	}
	return out
}
