package database

import (
	"context"
	"time"

	"github.com/denismitr/ladder/internal/retry"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	DefaultConnectionAttempts    = 10
	DefaultConnectionTimeout     = 60 * time.Second
	DefaultConnectionAttemptStep = 500 * time.Millisecond
)

type ConnectOptions struct {
	MaxAttempts int
	MaxTimeout  time.Duration
	RetryStep   time.Duration
}

func NewDefaultConnectOptions() *ConnectOptions {
	return &ConnectOptions{
		MaxAttempts: DefaultConnectionAttempts,
		MaxTimeout:  DefaultConnectionTimeout,
		RetryStep:   DefaultConnectionAttemptStep,
	}
}

// Connect waits for the database to accept connections and answer a trivial query
func Connect(ctx context.Context, db *sqlx.DB, opts *ConnectOptions) error {
	if opts == nil {
		opts = NewDefaultConnectOptions()
	}

	ctx, cancel := context.WithTimeout(ctx, opts.MaxTimeout)
	defer cancel()

	err := retry.Incremental(ctx, opts.RetryStep, opts.MaxAttempts, func(attempt int) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.Retryable(errors.Wrap(err, "could not establish DB connection"), attempt)
		}

		return nil
	})
	if err != nil {
		return err
	}

	var result int
	if err := db.QueryRowxContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return errors.Wrap(err, "db ping failed")
	}

	return nil
}
