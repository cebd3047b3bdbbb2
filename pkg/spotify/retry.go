package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/zmb3/spotify"

	"Camelot-Organizer-Go/pkg/metrics"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// Retry controls how transient provider failures are retried. Zero values
// fall back to three attempts starting with a 500ms backoff.
type Retry struct {
	MaxAttempts int
	Backoff     time.Duration
}

// do runs fn until it succeeds, fails permanently or the attempts are
// exhausted. Backoff doubles after each attempt. ctx is checked before every
// attempt because the wrapped library cannot be cancelled mid request.
func (r Retry) do(ctx context.Context, op string, fn func() error) error {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxRetries
	}
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("spotify %s: request canceled: %w", op, cerr)
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return fmt.Errorf("spotify %s: %w", op, err)
		}
		if attempt == attempts-1 {
			break
		}
		metrics.ProviderRetries.WithLabelValues(op).Inc()
		log.WithError(err).WithFields(log.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"max":     attempts,
		}).Warn("retrying spotify request")
		if serr := sleepWithContext(ctx, backoff*time.Duration(1<<attempt)); serr != nil {
			return fmt.Errorf("spotify %s: %w", op, serr)
		}
	}
	return fmt.Errorf("spotify %s: failed after %d attempts: %w", op, attempts, err)
}

// retryable reports whether err is a rate limit, a server error or a
// transport failure.
func retryable(err error) bool {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// StatusCode extracts the HTTP status from a provider error, or 0.
func StatusCode(err error) int {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
