package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skilld/pkg/git"
	"github.com/fyrsmithlabs/skilld/pkg/graph"
	"github.com/fyrsmithlabs/skilld/pkg/manifest"
	"github.com/fyrsmithlabs/skilld/pkg/pipeline"
	"github.com/fyrsmithlabs/skilld/pkg/validation"
	"github.com/fyrsmithlabs/skilld/pkg/verify"
)

// Diagnoser supplies the intelligence behind the understand, analyze, and
// reason phases. The default implementation derives everything from the
// manifest; richer implementations can plug in incident data or an
// external analysis service.
type Diagnoser interface {
	// Understand describes the observed and expected behavior.
	Understand(ctx context.Context, skill *manifest.Skill) (current, expected string, err error)

	// Analyze names the root cause being remediated.
	Analyze(ctx context.Context, skill *manifest.Skill) (rootCause string, err error)

	// Propose enumerates candidate solutions, selects one, and returns
	// the file changes (repo-relative path to content) the remediation
	// should integrate. An empty patch is valid: some skills only run
	// actions and change no files.
	Propose(ctx context.Context, skill *manifest.Skill) (candidates []string, selected string, patch map[string]string, err error)
}

// manifestDiagnoser is the default Diagnoser. It is deterministic: all
// three phases are derived from the manifest alone.
type manifestDiagnoser struct{}

func (manifestDiagnoser) Understand(_ context.Context, skill *manifest.Skill) (string, string, error) {
	current := skill.Description
	if current == "" {
		current = fmt.Sprintf("condition targeted by skill %s", skill.ID)
	}
	expected := fmt.Sprintf("%s actions of skill %s complete successfully", skill.Category, skill.ID)
	return current, expected, nil
}

func (manifestDiagnoser) Analyze(_ context.Context, skill *manifest.Skill) (string, error) {
	return fmt.Sprintf("as declared by skill %s: %s", skill.ID, skill.Description), nil
}

func (manifestDiagnoser) Propose(_ context.Context, skill *manifest.Skill) ([]string, string, map[string]string, error) {
	candidates := make([]string, 0, len(skill.Actions))
	for _, action := range skill.Actions {
		candidates = append(candidates, fmt.Sprintf("run %s action %s", action.Type, action.ID))
	}
	selected := "execute the declared action graph in dependency order"
	return candidates, selected, nil, nil
}

// runState carries phase-to-phase working data that has no place in the
// envelope payloads, scoped to a single run.
type runState struct {
	plan  *graph.Plan
	patch map[string]string
}

// handlers builds the per-run phase handlers. Each call returns fresh
// closures over a fresh runState, so concurrent runs never share state.
func (e *Engine) handlers(plan *graph.Plan) []pipeline.Handler {
	state := &runState{plan: plan}
	return []pipeline.Handler{
		pipeline.HandlerFunc{ForPhase: pipeline.PhaseUnderstand, Fn: e.understand},
		pipeline.HandlerFunc{ForPhase: pipeline.PhaseAnalyze, Fn: e.analyze},
		pipeline.HandlerFunc{ForPhase: pipeline.PhaseReason, Fn: e.reason(state)},
		pipeline.HandlerFunc{ForPhase: pipeline.PhaseRemediate, Fn: e.remediate(state)},
		pipeline.HandlerFunc{ForPhase: pipeline.PhaseIntegrate, Fn: e.integrate(state)},
		pipeline.HandlerFunc{ForPhase: pipeline.PhaseValidate, Fn: e.validate(state)},
	}
}

func (e *Engine) understand(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
	current, expected, err := e.diagnoser.Understand(ctx, run.Skill)
	if err != nil {
		return nil, fmt.Errorf("understanding skill %s: %w", run.SkillID, err)
	}
	return &pipeline.Envelope{
		Phase:            pipeline.PhaseUnderstand,
		Status:           pipeline.StatusComplete,
		CurrentBehavior:  current,
		ExpectedBehavior: expected,
	}, nil
}

func (e *Engine) analyze(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
	rootCause, err := e.diagnoser.Analyze(ctx, run.Skill)
	if err != nil {
		return nil, fmt.Errorf("analyzing skill %s: %w", run.SkillID, err)
	}
	return &pipeline.Envelope{
		Phase:     pipeline.PhaseAnalyze,
		Status:    pipeline.StatusComplete,
		RootCause: rootCause,
	}, nil
}

func (e *Engine) reason(state *runState) func(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
	return func(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
		candidates, selected, patch, err := e.diagnoser.Propose(ctx, run.Skill)
		if err != nil {
			return nil, fmt.Errorf("proposing solution for skill %s: %w", run.SkillID, err)
		}
		state.patch = patch
		return &pipeline.Envelope{
			Phase:              pipeline.PhaseReason,
			Status:             pipeline.StatusComplete,
			CandidateSolutions: candidates,
			SelectedSolution:   selected,
		}, nil
	}
}

func (e *Engine) remediate(state *runState) func(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
	return func(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
		runner := graph.NewRunner(e.executor, graph.RunnerConfig{
			Parallel:      e.opts.Parallel,
			MaxConcurrent: e.opts.MaxConcurrent,
		}, e.logger.Named("actions"))

		results, err := runner.Run(ctx, state.plan)
		if err != nil {
			// Results collected before the failure stay in the envelope
			// so the audit trail shows exactly how far execution got.
			return &pipeline.Envelope{
				Phase:         pipeline.PhaseRemediate,
				Status:        pipeline.StatusError,
				ActionResults: results,
				Error:         err.Error(),
			}, nil
		}

		return &pipeline.Envelope{
			Phase:         pipeline.PhaseRemediate,
			Status:        pipeline.StatusComplete,
			ActionResults: results,
			Patch:         describePatch(state.patch),
		}, nil
	}
}

func (e *Engine) integrate(state *runState) func(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
	return func(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
		committer := e.committerFor()
		if committer == nil {
			return pipeline.SkippedEnvelope(pipeline.PhaseIntegrate, "no repository configured"), nil
		}

		branch := e.branchFor(run.Skill)
		if git.IsMainBranch(branch) {
			return nil, fmt.Errorf("refusing to commit remediation directly to %s", branch)
		}

		req := git.CommitRequest{
			Branch:  branch,
			Message: fmt.Sprintf("remediate: %s (%s)", run.Skill.Name, run.ID),
			Files:   state.patch,
		}

		var (
			result *git.CommitResult
			err    error
		)
		if e.opts.Push {
			result, err = committer.CommitAndPush(ctx, req)
		} else {
			result, err = committer.Commit(ctx, req)
		}
		if errors.Is(err, git.ErrNothingToCommit) {
			return pipeline.SkippedEnvelope(pipeline.PhaseIntegrate, "worktree clean, nothing to integrate"), nil
		}
		if err != nil {
			return nil, fmt.Errorf("integrating remediation: %w", err)
		}

		return &pipeline.Envelope{
			Phase:     pipeline.PhaseIntegrate,
			Status:    pipeline.StatusComplete,
			CommitSHA: result.SHA,
			Branch:    result.Branch,
		}, nil
	}
}

func (e *Engine) validate(state *runState) func(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
	return func(ctx context.Context, run *pipeline.Run) (*pipeline.Envelope, error) {
		env := &pipeline.Envelope{Phase: pipeline.PhaseValidate}

		var funcs []validation.LayerFunc

		if manifestJSON, err := json.Marshal(run.Skill); err == nil {
			funcs = append(funcs, validation.SyntaxLayer("manifest-syntax", manifestJSON))
		}

		if e.governance != nil {
			owner := ""
			if run.Skill.Governance != nil {
				owner = run.Skill.Governance.Owner
			}
			funcs = append(funcs, validation.GovernanceLayer(e.governance, run.SkillID, owner))
		}

		if len(state.patch) > 0 {
			funcs = append(funcs, validation.SecurityLayer(flattenPatch(state.patch)))
		}

		layers := validation.RunLayers(ctx, e.logger.Named("validation"), funcs...)

		if ciLayer, halt := e.verifyCI(ctx, run, env); halt != nil {
			return halt, nil
		} else if ciLayer != nil {
			layers = append(layers, *ciLayer)
		}

		summary := validation.Aggregate(layers)
		env.Layers = layers
		env.Summary = &summary

		switch summary.Status {
		case validation.StatusSuccess:
			env.Status = pipeline.StatusSuccess
		case validation.StatusFailure:
			env.Status = pipeline.StatusFailure
		default:
			env.Status = pipeline.StatusSkipped
		}
		return env, nil
	}
}

// verifyCI polls the CI status source for the integrated commit. It
// returns either a layer to fold into the aggregate (terminal CI
// observation) or a halting envelope (inconclusive: timeout and
// cancellation escalate rather than masquerade as failure).
func (e *Engine) verifyCI(ctx context.Context, run *pipeline.Run, env *pipeline.Envelope) (*validation.Layer, *pipeline.Envelope) {
	if e.statusFor == nil {
		return nil, nil
	}
	if !run.Skill.HasActionType(manifest.ActionDeploy) && !run.Skill.HasActionType(manifest.ActionValidate) {
		return nil, nil
	}
	integrated := run.Envelope(pipeline.PhaseIntegrate)
	if integrated == nil || integrated.CommitSHA == "" {
		return nil, nil
	}

	result := e.poller.Poll(ctx, e.statusFor(integrated.CommitSHA), e.opts.PollMaxAttempts, e.opts.PollInterval)
	env.Verification = string(result.Outcome)

	switch result.Outcome {
	case verify.OutcomeSuccess:
		return &validation.Layer{Name: "ci-verification", Passed: true}, nil
	case verify.OutcomeFailure:
		// Only an observed CI failure contributes a failed layer.
		return &validation.Layer{Name: "ci-verification", Passed: false, Detail: "ci reported failure"}, nil
	case verify.OutcomeError:
		env.Status = pipeline.StatusError
		env.Error = fmt.Sprintf("ci status source unreachable: %v", result.Err)
		return nil, env
	case verify.OutcomeCancelled:
		env.Status = pipeline.StatusError
		env.Error = "cancelled during ci verification"
		return nil, env
	default:
		env.Status = pipeline.StatusError
		env.Error = fmt.Sprintf("ci verification inconclusive after %d attempts", result.Attempts)
		return nil, env
	}
}

// ShellExecutor is the default action executor. Shell actions run their
// command line through sh; the remaining action types are delegated to
// external collaborators and recorded as dispatched here.
type ShellExecutor struct {
	logger *zap.Logger
}

// NewShellExecutor creates the default executor.
func NewShellExecutor(logger *zap.Logger) *ShellExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShellExecutor{logger: logger}
}

// Execute implements graph.ActionExecutor.
func (s *ShellExecutor) Execute(ctx context.Context, action manifest.Action) error {
	switch action.Type {
	case manifest.ActionShell:
		if action.Command == "" {
			return fmt.Errorf("shell action %s has no command", action.ID)
		}
		cmd := exec.CommandContext(ctx, "sh", "-c", action.Command)
		output, err := cmd.CombinedOutput()
		if err != nil {
			detail := strings.TrimSpace(string(output))
			if detail == "" {
				detail = err.Error()
			}
			return fmt.Errorf("command failed: %s", detail)
		}
		return nil
	default:
		s.logger.Info("action dispatched",
			zap.String("action", action.ID),
			zap.String("type", string(action.Type)),
			zap.String("target", action.Target),
		)
		return nil
	}
}

// describePatch renders a stable, order-independent summary of the file
// changes a remediation carries.
func describePatch(patch map[string]string) string {
	if len(patch) == 0 {
		return ""
	}
	paths := make([]string, 0, len(patch))
	for path := range patch {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return fmt.Sprintf("%d file(s): %s", len(paths), strings.Join(paths, ", "))
}

// flattenPatch concatenates patch contents for scanning, in path order.
func flattenPatch(patch map[string]string) string {
	paths := make([]string, 0, len(patch))
	for path := range patch {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		b.WriteString(patch[path])
		b.WriteString("\n")
	}
	return b.String()
}
