// Package retry wraps exponential backoff for calls to remote engines.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vango-go/avatar-live/pkg/core"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultPolicy keeps retries short enough to fit inside one spoken turn.
var DefaultPolicy = Policy{
	MaxRetries:      2,
	InitialInterval: 200 * time.Millisecond,
	MaxElapsedTime:  5 * time.Second,
}

// Do runs op until it succeeds, returns a non-retryable *core.Error, or the
// policy or ctx is exhausted.
func Do(ctx context.Context, p Policy, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	b.MaxElapsedTime = p.MaxElapsedTime

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		var engineErr *core.Error
		if errors.As(err, &engineErr) && !engineErr.IsRetryable() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx))
}
