package store

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kamperhub/kamperhub-server/internal/domain"
)

// maxTransactionAttempts bounds how often a conflicted transaction is
// re-run from scratch before domain.ErrConflict is surfaced to the caller.
const maxTransactionAttempts = 5

// RunInTransaction runs fn through s.RunTransaction, retrying the whole
// read/compute/commit cycle with fibonacci backoff whenever the store
// reports a write conflict. Any other error aborts immediately. When the
// attempt budget is exhausted the last conflict error is returned, still
// matching domain.ErrConflict for the caller.
func RunInTransaction(ctx context.Context, s Store, fn func(tx Tx) error) error {
	backoff := retry.WithMaxRetries(maxTransactionAttempts-1, retry.NewFibonacci(10*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.RunTransaction(ctx, fn)
		if errors.Is(err, domain.ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}
