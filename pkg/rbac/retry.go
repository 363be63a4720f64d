package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

// defaultMaxTransactRetries bounds the jittered retry loop around a
// TransactionAborted store error (spec §7): "retried at most N times with
// jittered backoff at the repository boundary."
const defaultMaxTransactRetries = 3

// retryTransact runs op, retrying while it fails with a TransactionAborted
// store error, up to r.maxRetries times with jittered exponential backoff.
// Any other error, or exhaustion of retries, is returned as-is for the
// caller to translate.
func (r *Repository) retryTransact(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		if isTransactionAborted(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.maxRetries+1))

	return err
}

func isTransactionAborted(err error) bool {
	return errors.Is(err, rbacstore.ErrTransactionAborted)
}
