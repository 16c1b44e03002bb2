package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/logging"
)

// RetryPolicy bounds each backend call and retries transient failures.
type RetryPolicy struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// BaseDelay is the first backoff interval; it doubles per attempt.
	BaseDelay time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
}

// DefaultRetryPolicy keeps signing and deletion in the low seconds.
func DefaultRetryPolicy(timeout time.Duration) RetryPolicy {
	return RetryPolicy{Timeout: timeout, BaseDelay: 100 * time.Millisecond, MaxRetries: 3}
}

// Retrying decorates a Backend. Only common.ErrStorageUnavailable is
// retried; not-found, auth and validation failures return at once.
type Retrying struct {
	next   Backend
	policy RetryPolicy
	logger logging.Logger
}

func NewRetrying(next Backend, policy RetryPolicy, logger logging.Logger) *Retrying {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Retrying{next: next, policy: policy, logger: logger.With("module", "storage_retry")}
}

func (r *Retrying) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(r.policy.MaxRetries, retry.NewExponential(r.policy.BaseDelay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		actx := ctx
		if r.policy.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
			defer cancel()
		}

		err := fn(actx)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrStorageUnavailable) {
			r.logger.Warn(ctx, "storage call failed, retrying", "op", op, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *Retrying) SignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (SignedRequest, error) {
	var out SignedRequest
	err := r.do(ctx, "sign_put", func(ctx context.Context) error {
		var err error
		out, err = r.next.SignPut(ctx, key, contentType, size, ttl)
		return err
	})
	return out, err
}

func (r *Retrying) SignGet(ctx context.Context, key string, ttl time.Duration) (SignedRequest, error) {
	var out SignedRequest
	err := r.do(ctx, "sign_get", func(ctx context.Context) error {
		var err error
		out, err = r.next.SignGet(ctx, key, ttl)
		return err
	})
	return out, err
}

func (r *Retrying) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	var out ObjectInfo
	err := r.do(ctx, "stat", func(ctx context.Context) error {
		var err error
		out, err = r.next.Stat(ctx, key)
		return err
	})
	return out, err
}

func (r *Retrying) Delete(ctx context.Context, key string) error {
	return r.do(ctx, "delete", func(ctx context.Context) error {
		return r.next.Delete(ctx, key)
	})
}

func (r *Retrying) Close() error {
	return r.next.Close()
}
