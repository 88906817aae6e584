package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skilld/pkg/manifest"
)

// Progress reports phase-level progress during a run.
type Progress struct {
	RunID  string `json:"run_id"`
	Phase  Phase  `json:"phase"`
	Status Status `json:"status"`
}

// ProgressCallback receives progress updates during execution.
type ProgressCallback func(progress Progress)

// Runner sequences the six pipeline phases for one skill at a time.
//
// The runner itself is side-effect-free beyond sequencing, logging, and
// metrics. Each Execute call builds an isolated Run, so a single Runner
// may serve concurrent executions of different skills.
type Runner struct {
	handlers map[Phase]Handler
	logger   *zap.Logger
	metrics  *Metrics
	progress ProgressCallback
}

// NewRunner creates a pipeline runner.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		handlers: make(map[Phase]Handler),
		logger:   logger,
		metrics:  NewMetrics(),
	}
}

// RegisterHandler registers the handler for its phase, replacing any
// previous registration.
func (r *Runner) RegisterHandler(handler Handler) {
	r.handlers[handler.Phase()] = handler
}

// OnProgress sets the progress callback.
func (r *Runner) OnProgress(callback ProgressCallback) {
	r.progress = callback
}

// Execute runs every phase in order for the given skill.
//
// Transition rules: a status=error envelope halts the pipeline
// immediately and becomes its result; a skipped phase is recorded and
// the runner advances; anything else advances normally. The validate
// phase's status is the pipeline's overall verdict.
//
// Cancellation between phases tags the run with an error/cancelled
// envelope for the phase that never ran, so a partial run is never left
// ambiguous. All envelopes produced before a halt are preserved for
// audit. The returned error is non-nil only for infrastructure faults
// (missing handler, contract violation, cancellation); a pipeline that
// completes with a failure verdict is not a Go error.
func (r *Runner) Execute(ctx context.Context, skill *manifest.Skill) (*Run, error) {
	run := &Run{
		ID:        "run_" + uuid.New().String(),
		Skill:     skill,
		SkillID:   skill.ID,
		StartedAt: time.Now(),
	}

	logger := r.logger.With(
		zap.String("run_id", run.ID),
		zap.String("skill", skill.ID),
	)
	logger.Info("pipeline run starting")

	for _, phase := range Phases() {
		if err := ctx.Err(); err != nil {
			run.Envelopes = append(run.Envelopes, &Envelope{
				Phase:  phase,
				Status: StatusError,
				Error:  "cancelled before phase ran",
			})
			run.Verdict = StatusError
			r.metrics.observeRun(run.Verdict)
			logger.Warn("pipeline run cancelled", zap.String("phase", string(phase)))
			return run, err
		}

		handler, ok := r.handlers[phase]
		if !ok {
			run.Verdict = StatusError
			r.metrics.observeRun(run.Verdict)
			return run, fmt.Errorf("%w: %s", ErrNoHandler, phase)
		}

		r.reportProgress(Progress{RunID: run.ID, Phase: phase, Status: StatusStarted})

		start := time.Now()
		env, err := handler.Execute(ctx, run)
		r.metrics.observePhase(phase, time.Since(start))

		if err != nil {
			env = ErrorEnvelope(phase, err)
		} else if cerr := validateEnvelope(phase, env); cerr != nil {
			run.Verdict = StatusError
			r.metrics.observeRun(run.Verdict)
			return run, cerr
		}

		run.Envelopes = append(run.Envelopes, env)
		r.reportProgress(Progress{RunID: run.ID, Phase: phase, Status: env.Status})

		logger.Debug("phase finished",
			zap.String("phase", string(phase)),
			zap.String("status", string(env.Status)),
			zap.Duration("duration", time.Since(start)),
		)

		if env.Status == StatusError {
			run.Verdict = StatusError
			r.metrics.observeRun(run.Verdict)
			logger.Warn("pipeline halted",
				zap.String("phase", string(phase)),
				zap.String("error", env.Error),
			)
			return run, nil
		}
	}

	run.Verdict = verdictFrom(run.Envelope(PhaseValidate))
	r.metrics.observeRun(run.Verdict)

	logger.Info("pipeline run finished", zap.String("verdict", string(run.Verdict)))
	return run, nil
}

// verdictFrom derives the overall verdict from the validate envelope.
// A skipped validate phase counts as success: skipping is a legitimate
// no-op, not a failure.
func verdictFrom(env *Envelope) Status {
	if env == nil {
		return StatusError
	}
	switch env.Status {
	case StatusFailure:
		return StatusFailure
	case StatusSkipped, StatusSuccess, StatusComplete:
		return StatusSuccess
	default:
		return StatusError
	}
}

func (r *Runner) reportProgress(progress Progress) {
	if r.progress != nil {
		r.progress(progress)
	}
}
