// Package verify confirms that an external CI run reached a terminal
// state, by polling a pull-based status source at a fixed cadence under a
// bounded retry budget.
//
// This is intentionally the only part of the pipeline that performs
// wall-clock waiting; everything else is computed synchronously.
package verify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Status is one observation from the external status source.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the terminal result of one polling loop.
type Outcome string

const (
	// OutcomeSuccess means the run was observed to succeed.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure means the run was observed to fail.
	OutcomeFailure Outcome = "failure"

	// OutcomeTimeout means the retry budget was exhausted without a
	// terminal observation. Callers must treat this as "unknown,
	// escalate", never as "confirmed broken".
	OutcomeTimeout Outcome = "timeout"

	// OutcomeCancelled means the polling loop was interrupted by
	// external cancellation before reaching a terminal observation.
	OutcomeCancelled Outcome = "cancelled"

	// OutcomeError means the status source itself was unreachable. This
	// is an infrastructure fault, not an observation: callers must
	// escalate it, never treat it as a confirmed CI failure.
	OutcomeError Outcome = "error"
)

// Terminal reports whether the outcome confirms a terminal CI state.
func (o Outcome) Terminal() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// StatusFunc obtains one status observation. Implementations typically
// query an external CI system for a specific run identifier.
type StatusFunc func(ctx context.Context) (Status, error)

// Result describes how a polling loop ended.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	Attempts int     `json:"attempts"`
	// Err carries the status source failure when the source itself was
	// unreachable, distinct from an observed CI failure.
	Err error `json:"-"`
}

// Poller polls a status source until a terminal state or the attempt
// budget is exhausted.
type Poller struct {
	logger *zap.Logger
}

// NewPoller creates a poller.
func NewPoller(logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{logger: logger}
}

// Poll calls statusFn up to maxAttempts times, sleeping interval between
// attempts.
//
// A success or failure observation returns immediately. A pending
// observation sleeps and retries. Exhausting maxAttempts returns
// OutcomeTimeout without an extra trailing sleep. Cancellation is honored
// both between attempts and mid-sleep, returning OutcomeCancelled rather
// than silently folding into OutcomeTimeout.
//
// A status source error aborts the loop with OutcomeError: not being able
// to reach the collaborator at all is an infrastructure fault, not an
// observation, and must never read as a confirmed CI failure.
func (p *Poller) Poll(ctx context.Context, statusFn StatusFunc, maxAttempts int, interval time.Duration) Result {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Attempts: attempt - 1}
		}

		status, err := statusFn(ctx)
		if err != nil {
			p.logger.Error("status source unreachable",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return Result{Outcome: OutcomeError, Attempts: attempt, Err: err}
		}

		p.logger.Debug("verification poll",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.String("status", string(status)),
		)

		switch status {
		case StatusSuccess:
			return Result{Outcome: OutcomeSuccess, Attempts: attempt}
		case StatusFailure:
			return Result{Outcome: OutcomeFailure, Attempts: attempt}
		}

		// Pending: sleep before the next attempt, but never after the
		// last one.
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{Outcome: OutcomeCancelled, Attempts: attempt}
		case <-timer.C:
		}
	}

	return Result{Outcome: OutcomeTimeout, Attempts: maxAttempts}
}
