package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rocketscienceinc/gameroom-backend/internal/entity"
)

// Oracle is the rule-check dependency the room actor consumes. The checks are
// pure, but the oracle may live out of process, so every call takes a context
// and can fail.
type Oracle interface {
	IsLegalMove(ctx context.Context, board entity.Board, x, y int) (bool, error)
	Outcome(ctx context.Context, board entity.Board, lastX, lastY int, mark string) (string, error)
}

type localOracle struct{}

// NewLocalOracle returns an Oracle that runs the rule checks in-process.
func NewLocalOracle() Oracle {
	return &localOracle{}
}

func (that *localOracle) IsLegalMove(ctx context.Context, board entity.Board, x, y int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("legality check canceled: %w", err)
	}

	return IsLegalMove(board, x, y), nil
}

func (that *localOracle) Outcome(ctx context.Context, board entity.Board, lastX, lastY int, mark string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("outcome check canceled: %w", err)
	}

	return Outcome(board, lastX, lastY, mark), nil
}

const retryInterval = 100 * time.Millisecond

type retryOracle struct {
	next       Oracle
	attempts   uint64
	perAttempt time.Duration
}

// NewRetryOracle wraps an Oracle with a bounded retry policy: up to attempts
// calls, each under its own perAttempt deadline. After the last attempt the
// last error is returned and the caller must treat the move as not applied.
func NewRetryOracle(next Oracle, attempts int, perAttempt time.Duration) Oracle {
	if attempts < 1 {
		attempts = 1
	}

	return &retryOracle{
		next:       next,
		attempts:   uint64(attempts),
		perAttempt: perAttempt,
	}
}

func (that *retryOracle) IsLegalMove(ctx context.Context, board entity.Board, x, y int) (bool, error) {
	var legal bool

	err := that.retry(ctx, func(attemptCtx context.Context) error {
		var checkErr error
		legal, checkErr = that.next.IsLegalMove(attemptCtx, board, x, y)
		return checkErr
	})
	if err != nil {
		return false, fmt.Errorf("legality check exhausted retries: %w", err)
	}

	return legal, nil
}

func (that *retryOracle) Outcome(ctx context.Context, board entity.Board, lastX, lastY int, mark string) (string, error) {
	var outcome string

	err := that.retry(ctx, func(attemptCtx context.Context) error {
		var checkErr error
		outcome, checkErr = that.next.Outcome(attemptCtx, board, lastX, lastY, mark)
		return checkErr
	})
	if err != nil {
		return "", fmt.Errorf("outcome check exhausted retries: %w", err)
	}

	return outcome, nil
}

func (that *retryOracle) retry(ctx context.Context, call func(ctx context.Context) error) error {
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, that.perAttempt)
		defer cancel()

		return call(attemptCtx)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(retryInterval), that.attempts-1)

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
