package chat

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
)

// withRetry runs op until it succeeds, fails with a non-transient error or
// runs out of attempts.
func withRetry[T any](ctx context.Context, attempts int, initial time.Duration, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = 20 * initial

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !apperr.IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))
}
