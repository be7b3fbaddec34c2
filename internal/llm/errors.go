package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProvider signals that no configured, non-auth-failed provider is left.
// Recoverable only by operator action.
var ErrNoProvider = errors.New(
	"no LLM provider available — set ANTHROPIC_API_KEY or OPENAI_API_KEY")

// AuthError marks an authentication/authorization failure from a provider.
// The router reacts by marking the provider auth-failed for the rest of the
// process and falling back to the next configured provider.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError marks a connection/timeout/rate-limit class failure that
// survived the provider's own bounded retry. Not retried at the router.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %s: transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// isAuthFailure classifies an error as authentication-class. Typed errors
// first; message sniffing covers SDKs that return bare errors.
func isAuthFailure(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authentication"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "invalid") && strings.Contains(msg, "api"):
		return true
	}
	return false
}
