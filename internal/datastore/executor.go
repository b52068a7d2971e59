package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"geotourist/internal/datastore/retry"
	"geotourist/internal/observability/metrics"
)

const (
	defaultStatementTimeout = 3 * time.Second
	rollbackTimeout         = time.Second
)

// Mode selects the pool and transaction access mode.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxFunc runs inside one transaction attempt. It may be called several times.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// Outcome describes how an operation finished.
type Outcome struct {
	Attempts int
	Skipped  bool
}

// Executor runs operations in retried transactions.
type Executor struct {
	read    TxBeginner
	write   TxBeginner
	policy  retry.Policy
	sleep   retry.Sleeper
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithPolicy overrides the retry policy.
func WithPolicy(policy retry.Policy) Option {
	return func(e *Executor) {
		e.policy = policy
	}
}

// WithSleeper overrides how backoff delays are waited out.
func WithSleeper(sleep retry.Sleeper) Option {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithStatementTimeout sets the per-attempt deadline.
func WithStatementTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor constructs an Executor over explicit read and write beginners.
func NewExecutor(read, write TxBeginner, opts ...Option) (*Executor, error) {
	if read == nil || write == nil {
		return nil, ErrNilPool
	}
	e := &Executor{
		read:    read,
		write:   write,
		policy:  retry.NewPolicy(retry.DefaultMaxAttempts, nil),
		sleep:   retry.Sleep,
		timeout: defaultStatementTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// NewPoolExecutor constructs an Executor over Pools.
func NewPoolExecutor(pools *Pools, opts ...Option) (*Executor, error) {
	if pools == nil || pools.Read == nil || pools.Write == nil {
		return nil, ErrNilPool
	}
	return NewExecutor(pools.Read, pools.Write, opts...)
}

// Execute runs fn in a transaction on the pool chosen by mode, retrying per policy.
// A unique violation yields Outcome.Skipped with a nil error.
func (e *Executor) Execute(ctx context.Context, mode Mode, op string, fn TxFunc) (Outcome, error) {
	start := time.Now()
	outcome, err := e.execute(ctx, mode, op, fn)

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case outcome.Skipped:
		result = metrics.ResultSkipped
	}
	metrics.ObserveStatement(mode.String(), result, time.Since(start))
	return outcome, err
}

func (e *Executor) execute(ctx context.Context, mode Mode, op string, fn TxFunc) (Outcome, error) {
	beginner, txOpts := e.route(mode)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Attempts: attempt - 1}, err
		}

		err := e.attempt(ctx, beginner, txOpts, fn)
		class := retry.Classify(err)
		metrics.IncStatementAttempt(op, class.String())
		if err == nil {
			return Outcome{Attempts: attempt}, nil
		}
		if ctx.Err() != nil {
			return Outcome{Attempts: attempt}, err
		}

		decision := e.policy.Decide(class, attempt)
		switch decision.Action {
		case retry.ActionSkip:
			e.logger.Warn().Str("op", op).Int("attempt", attempt).Err(err).Msg("unique constraint conflict, skipping")
			return Outcome{Attempts: attempt, Skipped: true}, nil
		case retry.ActionAbort:
			return Outcome{Attempts: attempt}, err
		case retry.ActionExhausted:
			e.logger.Error().Str("op", op).Int("attempts", attempt).Str("class", class.String()).Err(err).Msg("retries exhausted")
			return Outcome{Attempts: attempt}, &RetriesExhaustedError{Op: op, Attempts: attempt, Class: class, Err: err}
		}

		e.logger.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Str("class", class.String()).
			Dur("delay", decision.Delay).
			Err(err).
			Msg("retrying statement")
		metrics.IncStatementRetry(op, class.String())
		if err := e.sleep(ctx, decision.Delay); err != nil {
			return Outcome{Attempts: attempt}, err
		}
	}
}

func (e *Executor) route(mode Mode) (TxBeginner, pgx.TxOptions) {
	if mode == ModeWrite {
		return e.write, pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}
	}
	return e.read, pgx.TxOptions{AccessMode: pgx.ReadOnly}
}

func (e *Executor) attempt(ctx context.Context, beginner TxBeginner, txOpts pgx.TxOptions, fn TxFunc) error {
	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := runTx(attemptCtx, beginner, txOpts, fn)
	if err != nil && ctx.Err() == nil && attemptCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("datastore: attempt exceeded %s: %w: %w", e.timeout, context.DeadlineExceeded, err)
	}
	return err
}

func runTx(ctx context.Context, beginner TxBeginner, txOpts pgx.TxOptions, fn TxFunc) error {
	tx, err := beginner.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		_ = tx.Rollback(rollbackCtx)
		return err
	}
	return tx.Commit(ctx)
}
