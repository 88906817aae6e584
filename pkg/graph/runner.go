package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/skilld/pkg/manifest"
)

// ActionExecutor performs the work of a single action. Implementations
// live outside this package; the runner only sequences them.
type ActionExecutor interface {
	Execute(ctx context.Context, action manifest.Action) error
}

// ActionExecutorFunc adapts a function to the ActionExecutor interface.
type ActionExecutorFunc func(ctx context.Context, action manifest.Action) error

// Execute implements ActionExecutor.
func (f ActionExecutorFunc) Execute(ctx context.Context, action manifest.Action) error {
	return f(ctx, action)
}

// RunnerConfig controls plan execution.
type RunnerConfig struct {
	// Parallel allows actions in the same batch to run concurrently.
	// Default is sequential execution, which keeps failure attribution
	// simple; turn this on only for skills established as parallel-safe.
	Parallel bool

	// MaxConcurrent bounds in-flight actions when Parallel is set.
	// Zero means one worker per action in the batch.
	MaxConcurrent int
}

// ActionResult records the outcome of one executed action.
type ActionResult struct {
	ActionID string              `json:"action_id"`
	Type     manifest.ActionType `json:"type"`
	Err      string              `json:"error,omitempty"`
	Duration time.Duration       `json:"duration"`
}

// Runner executes a resolved plan. Every action failure is an explicit
// outcome; the runner never continues past a failed action.
type Runner struct {
	exec   ActionExecutor
	config RunnerConfig
	logger *zap.Logger
}

// NewRunner creates a plan runner.
func NewRunner(exec ActionExecutor, config RunnerConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{exec: exec, config: config, logger: logger}
}

// Run executes the plan and returns per-action results in execution order.
//
// On the first action failure the remaining plan is abandoned and the
// failing action's error is returned alongside the results collected so
// far. In parallel mode the failing batch is drained before returning.
func (r *Runner) Run(ctx context.Context, plan *Plan) ([]ActionResult, error) {
	if r.config.Parallel {
		return r.runParallel(ctx, plan)
	}
	return r.runSequential(ctx, plan)
}

func (r *Runner) runSequential(ctx context.Context, plan *Plan) ([]ActionResult, error) {
	results := make([]ActionResult, 0, len(plan.Ordered))
	for _, action := range plan.Ordered {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := r.runOne(ctx, action)
		results = append(results, result)
		if result.Err != "" {
			return results, fmt.Errorf("action %s failed: %s", action.ID, result.Err)
		}
	}
	return results, nil
}

func (r *Runner) runParallel(ctx context.Context, plan *Plan) ([]ActionResult, error) {
	var results []ActionResult
	for _, batch := range plan.Batches {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		g, gctx := errgroup.WithContext(ctx)
		if r.config.MaxConcurrent > 0 {
			g.SetLimit(r.config.MaxConcurrent)
		}

		var mu sync.Mutex
		batchResults := make([]ActionResult, len(batch))
		for i, action := range batch {
			g.Go(func() error {
				result := r.runOne(gctx, action)
				mu.Lock()
				batchResults[i] = result
				mu.Unlock()
				if result.Err != "" {
					return fmt.Errorf("action %s failed: %s", action.ID, result.Err)
				}
				return nil
			})
		}

		err := g.Wait()
		results = append(results, batchResults...)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, action manifest.Action) ActionResult {
	start := time.Now()
	result := ActionResult{ActionID: action.ID, Type: action.Type}

	r.logger.Debug("executing action",
		zap.String("action", action.ID),
		zap.String("type", string(action.Type)),
	)

	if err := r.exec.Execute(ctx, action); err != nil {
		result.Err = err.Error()
		r.logger.Warn("action failed",
			zap.String("action", action.ID),
			zap.Error(err),
		)
	}

	result.Duration = time.Since(start)
	return result
}
