package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const maxChatAttempts = 3

// chatWithRetry runs a provider call with bounded exponential backoff.
// Only TransportError is retried; authentication and validation failures
// fail fast so the router can decide.
func chatWithRetry(ctx context.Context, logger *zap.Logger, fn func() (*Result, error)) (*Result, error) {
	delay := 2 * time.Second

	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		var transportErr *TransportError
		if attempt >= maxChatAttempts || !errors.As(err, &transportErr) {
			return nil, err
		}

		logger.Warn("Transient provider error, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 10*time.Second {
			delay = 10 * time.Second
		}
	}
}

// transientStatus reports whether an HTTP status from a provider warrants a
// retry: request timeout, rate limit, or server-side failure.
func transientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// authStatus reports whether an HTTP status is authentication-class.
func authStatus(code int) bool {
	return code == 401 || code == 403
}
