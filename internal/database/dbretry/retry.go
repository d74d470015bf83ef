// Package dbretry retries database calls that fail for transient reasons.
package dbretry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Options configures the retry loop.
type Options struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultOptions is used by Operation and NoResult.
var DefaultOptions = Options{ //nolint:gochecknoglobals // -
	MaxElapsedTime:  10 * time.Second,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxRetries:      4,
}

// retryableCodes are the SQLSTATE codes of failures that may succeed on retry.
var retryableCodes = map[string]struct{}{ //nolint:gochecknoglobals // -
	"08000": {}, // connection_exception
	"08001": {}, // sqlclient_unable_to_establish_sqlconnection
	"08003": {}, // connection_does_not_exist
	"08004": {}, // sqlserver_rejected_establishment_of_sqlconnection
	"08006": {}, // connection_failure
	"08007": {}, // transaction_resolution_unknown
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"53000": {}, // insufficient_resources
	"53300": {}, // too_many_connections
	"55P03": {}, // lock_not_available
	"57P01": {}, // admin_shutdown
	"57P02": {}, // crash_shutdown
	"57P03": {}, // cannot_connect_now
}

// IsRetryableError reports whether err is a transient database failure.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pgerr pgdriver.Error
	if errors.As(err, &pgerr) {
		_, ok := retryableCodes[pgerr.Field('C')]
		return ok
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()
	for _, s := range []string{"connection reset by peer", "broken pipe", "connection refused", "no connection", "i/o timeout", "EOF"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Operation runs a database call, retrying transient failures. When the retries
// are exhausted the error unwraps to types.ErrPersistenceUnavailable; other
// errors are returned unchanged.
func Operation[T any](ctx context.Context, operation func(context.Context) (T, error)) (T, error) {
	return OperationWith(ctx, DefaultOptions, operation)
}

// OperationWith is Operation with explicit options.
func OperationWith[T any](ctx context.Context, opts Options, operation func(context.Context) (T, error)) (T, error) {
	var (
		result    T
		transient error
	)

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(opts.MaxElapsedTime),
		backoff.WithInitialInterval(opts.InitialInterval),
		backoff.WithMaxInterval(opts.MaxInterval),
	), opts.MaxRetries)

	err := backoff.Retry(func() error {
		var err error
		result, err = operation(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		transient = err
		return err
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return result, nil
	}

	if transient != nil {
		return result, fmt.Errorf("%w: %w", types.ErrPersistenceUnavailable, transient)
	}
	return result, err
}

// NoResult wraps a database call that returns only an error.
func NoResult(ctx context.Context, operation func(context.Context) error) error {
	_, err := Operation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})
	return err
}

// Transaction runs fn in a transaction, retrying the whole transaction on transient failures.
func Transaction(ctx context.Context, db *bun.DB, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}
