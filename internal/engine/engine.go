// Package engine composes the skill pipeline: manifest validation, action
// graph resolution, the six-phase runner, CI verification, and the
// validation aggregator.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skilld/pkg/git"
	"github.com/fyrsmithlabs/skilld/pkg/graph"
	"github.com/fyrsmithlabs/skilld/pkg/manifest"
	"github.com/fyrsmithlabs/skilld/pkg/pipeline"
	"github.com/fyrsmithlabs/skilld/pkg/validation"
	"github.com/fyrsmithlabs/skilld/pkg/verify"
)

// SchemaError reports a structurally invalid manifest. It is fatal and
// raised before any side-effecting work runs.
type SchemaError struct {
	SkillID string
	Report  *manifest.Report
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("skill %s failed schema validation: %s", e.SkillID, strings.Join(e.Report.Errors, "; "))
}

// GraphError reports a cycle or dangling dependency. It is fatal and
// raised before any side-effecting work runs.
type GraphError struct {
	SkillID string
	Err     error
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("skill %s has an unresolvable action graph: %v", e.SkillID, e.Err)
}

func (e *GraphError) Unwrap() error { return e.Err }

// Options configures an engine.
type Options struct {
	// RepoPath is the repository the integrate phase commits in. Empty
	// disables integration (the phase reports skipped).
	RepoPath string

	// Branch is the branch remediations are committed and pushed to.
	// Empty keeps the repository's current branch, or derives a
	// per-skill branch under skilld/ when the current branch is a main
	// branch. Remediations are never committed directly to main.
	Branch string

	// Push pushes the integration branch to origin after committing.
	// Off by default so local-only repositories work out of the box.
	Push bool

	// Parallel allows independent actions to run concurrently.
	Parallel bool

	// MaxConcurrent bounds in-flight actions when Parallel is set.
	MaxConcurrent int

	// PollMaxAttempts and PollInterval bound CI verification polling.
	PollMaxAttempts int
	PollInterval    time.Duration
}

// Engine runs skills through the remediation pipeline. One engine serves
// concurrent runs; each run's state is isolated in its pipeline.Run.
type Engine struct {
	opts      Options
	validator *manifest.Validator
	executor  graph.ActionExecutor
	poller    *verify.Poller

	// statusFor supplies the CI observation for a commit; nil disables
	// CI verification.
	statusFor func(ref string) verify.StatusFunc

	// governance is the external identity collaborator for the
	// governance validation layer; nil fails that layer closed.
	governance validation.GovernanceChecker

	diagnoser Diagnoser
	logger    *zap.Logger
}

// New creates an engine with the default shell action executor and
// manifest-derived diagnoser.
func New(opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollMaxAttempts == 0 {
		opts.PollMaxAttempts = 30
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Second
	}
	return &Engine{
		opts:      opts,
		validator: manifest.NewValidator(logger.Named("validator")),
		executor:  NewShellExecutor(logger.Named("actions")),
		poller:    verify.NewPoller(logger.Named("poller")),
		diagnoser: manifestDiagnoser{},
		logger:    logger,
	}
}

// WithExecutor replaces the action executor.
func (e *Engine) WithExecutor(exec graph.ActionExecutor) *Engine {
	e.executor = exec
	return e
}

// WithStatusSource wires the CI status source used to verify commits.
func (e *Engine) WithStatusSource(statusFor func(ref string) verify.StatusFunc) *Engine {
	e.statusFor = statusFor
	return e
}

// WithGovernance wires the governance collaborator.
func (e *Engine) WithGovernance(checker validation.GovernanceChecker) *Engine {
	e.governance = checker
	return e
}

// WithDiagnoser replaces the understand/analyze/reason intelligence.
func (e *Engine) WithDiagnoser(d Diagnoser) *Engine {
	e.diagnoser = d
	return e
}

// Run executes one skill through the full pipeline.
//
// Schema and graph errors are fatal and returned before any phase runs,
// so an invalid skill never causes partial execution. Otherwise the
// returned Run carries the verdict; a failing pipeline is not a Go
// error.
func (e *Engine) Run(ctx context.Context, skill *manifest.Skill) (*pipeline.Run, error) {
	report := e.validator.Validate(skill)
	if !report.Valid {
		return nil, &SchemaError{SkillID: skill.ID, Report: report}
	}
	for _, warning := range report.Warnings {
		e.logger.Warn("manifest warning",
			zap.String("skill", skill.ID),
			zap.String("warning", warning),
		)
	}

	plan, err := graph.Resolve(skill.Actions)
	if err != nil {
		return nil, &GraphError{SkillID: skill.ID, Err: err}
	}

	runner := pipeline.NewRunner(e.logger.Named("pipeline"))
	for _, handler := range e.handlers(plan) {
		runner.RegisterHandler(handler)
	}

	return runner.Execute(ctx, skill)
}

// Launch implements trigger.Launcher: it starts one isolated run in the
// background and logs its verdict.
//
// The trigger context is typically request-scoped and cancelled as soon
// as the response is written, so the run is detached from it. The
// context's values (request IDs, trace data) still flow through.
func (e *Engine) Launch(ctx context.Context, skill *manifest.Skill, source manifest.TriggerType) {
	runCtx := context.WithoutCancel(ctx)
	go func() {
		run, err := e.Run(runCtx, skill)
		if err != nil {
			e.logger.Error("pipeline run rejected",
				zap.String("skill", skill.ID),
				zap.String("source", string(source)),
				zap.Error(err),
			)
			return
		}
		e.logger.Info("pipeline run complete",
			zap.String("skill", skill.ID),
			zap.String("run_id", run.ID),
			zap.String("source", string(source)),
			zap.String("verdict", string(run.Verdict)),
		)
	}()
}

// branchFor picks the integration branch for a skill. An explicitly
// configured branch wins; otherwise the repository's current branch is
// kept unless it is a main branch, in which case a per-skill branch is
// derived.
func (e *Engine) branchFor(skill *manifest.Skill) string {
	if e.opts.Branch != "" {
		return e.opts.Branch
	}
	if current := git.DetectBranch(e.opts.RepoPath); current != "" && !git.IsMainBranch(current) {
		return current
	}
	return "skilld/" + skill.ID
}

// committerFor builds the version-control collaborator for this run, or
// nil when integration is disabled.
func (e *Engine) committerFor() *git.Committer {
	if e.opts.RepoPath == "" {
		return nil
	}
	return git.NewCommitter(e.opts.RepoPath, e.logger.Named("git"))
}
