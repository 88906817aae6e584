// Package pipeline executes the fixed six-phase remediation pipeline:
// understand → analyze → reason → remediate → integrate → validate.
//
// Phases run strictly sequentially with no back-edges. Each phase
// consumes the accumulated run context and emits exactly one envelope;
// the runner only sequences phases and enforces the envelope contract
// between them. Phase work, including side effects like committing a
// patch, is entirely phase-local.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/skilld/pkg/graph"
	"github.com/fyrsmithlabs/skilld/pkg/manifest"
	"github.com/fyrsmithlabs/skilld/pkg/validation"
)

var (
	// ErrNoHandler indicates no handler is registered for a phase.
	ErrNoHandler = errors.New("no handler registered for phase")

	// ErrEnvelopeContract indicates a phase emitted an envelope that
	// violates the inter-phase contract.
	ErrEnvelopeContract = errors.New("envelope contract violation")
)

// Phase is one stage of the fixed remediation pipeline.
type Phase string

const (
	PhaseUnderstand Phase = "understand"
	PhaseAnalyze    Phase = "analyze"
	PhaseReason     Phase = "reason"
	PhaseRemediate  Phase = "remediate"
	PhaseIntegrate  Phase = "integrate"
	PhaseValidate   Phase = "validate"
)

// Phases returns all phases in execution order.
func Phases() []Phase {
	return []Phase{PhaseUnderstand, PhaseAnalyze, PhaseReason, PhaseRemediate, PhaseIntegrate, PhaseValidate}
}

// Status is the status carried by a phase envelope.
type Status string

const (
	StatusStarted  Status = "started"
	StatusComplete Status = "complete"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
)

// Envelope is the structured result a phase must emit: phase and status
// always, plus whatever phase-specific payload applies. An envelope is
// created by the phase that emits it and never mutated afterwards.
type Envelope struct {
	Phase  Phase  `json:"phase"`
	Status Status `json:"status"`

	// understand / analyze payload
	CurrentBehavior  string `json:"current_behavior,omitempty"`
	ExpectedBehavior string `json:"expected_behavior,omitempty"`
	RootCause        string `json:"root_cause,omitempty"`

	// reason payload
	CandidateSolutions []string `json:"candidate_solutions,omitempty"`
	SelectedSolution   string   `json:"selected_solution,omitempty"`

	// remediate payload
	Patch         string               `json:"patch,omitempty"`
	ActionResults []graph.ActionResult `json:"action_results,omitempty"`

	// integrate payload
	CommitSHA string `json:"commit_sha,omitempty"`
	Branch    string `json:"branch,omitempty"`

	// validate payload
	Verification string              `json:"verification,omitempty"`
	Layers       []validation.Layer  `json:"layers,omitempty"`
	Summary      *validation.Summary `json:"summary,omitempty"`

	// Error carries diagnostic detail when Status is error.
	Error string `json:"error,omitempty"`
}

// ErrorEnvelope builds the terminal envelope for a phase that failed.
func ErrorEnvelope(phase Phase, err error) *Envelope {
	return &Envelope{Phase: phase, Status: StatusError, Error: err.Error()}
}

// SkippedEnvelope builds the envelope for a phase with nothing to do.
// Skipping is not failing: an empty patch to integrate is a legitimate
// no-op.
func SkippedEnvelope(phase Phase, reason string) *Envelope {
	return &Envelope{Phase: phase, Status: StatusSkipped, Error: reason}
}

// Run is the accumulated context of one pipeline execution. Exactly one
// orchestrator owns a run; runs of different skills never share state.
type Run struct {
	ID        string          `json:"id"`
	Skill     *manifest.Skill `json:"-"`
	SkillID   string          `json:"skill_id"`
	StartedAt time.Time       `json:"started_at"`

	// Envelopes holds every emitted envelope in phase order, preserved
	// for audit even when a later phase halts the pipeline.
	Envelopes []*Envelope `json:"envelopes"`

	// Verdict is the overall pipeline outcome.
	Verdict Status `json:"verdict"`
}

// Envelope returns the envelope emitted for the given phase, or nil if
// the phase has not run.
func (r *Run) Envelope(phase Phase) *Envelope {
	for _, env := range r.Envelopes {
		if env.Phase == phase {
			return env
		}
	}
	return nil
}

// Succeeded reports whether the run's overall verdict is success.
func (r *Run) Succeeded() bool {
	return r.Verdict == StatusSuccess
}

// Handler executes the work of one phase.
type Handler interface {
	// Phase returns the phase this handler manages.
	Phase() Phase

	// Execute runs the phase against the accumulated run context and
	// returns its terminal envelope. Returning a Go error is equivalent
	// to emitting a status=error envelope carrying the error text.
	Execute(ctx context.Context, run *Run) (*Envelope, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc struct {
	ForPhase Phase
	Fn       func(ctx context.Context, run *Run) (*Envelope, error)
}

// Phase implements Handler.
func (h HandlerFunc) Phase() Phase { return h.ForPhase }

// Execute implements Handler.
func (h HandlerFunc) Execute(ctx context.Context, run *Run) (*Envelope, error) {
	return h.Fn(ctx, run)
}

// validateEnvelope enforces the minimum inter-phase contract: the
// envelope exists, names the emitting phase, and carries a known status.
func validateEnvelope(phase Phase, env *Envelope) error {
	if env == nil {
		return fmt.Errorf("%w: phase %s emitted no envelope", ErrEnvelopeContract, phase)
	}
	if env.Phase != phase {
		return fmt.Errorf("%w: phase %s emitted envelope for %q", ErrEnvelopeContract, phase, env.Phase)
	}
	switch env.Status {
	case StatusStarted, StatusComplete, StatusSkipped, StatusError, StatusSuccess, StatusFailure:
		return nil
	default:
		return fmt.Errorf("%w: phase %s emitted unknown status %q", ErrEnvelopeContract, phase, env.Status)
	}
}
