package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/skilld/pkg/manifest"
)

func testSkill() *manifest.Skill {
	return &manifest.Skill{
		ID:       "restart-flaky-deploy",
		Name:     "Restart flaky deploy",
		Version:  "1.0.0",
		Category: manifest.CategoryRemediation,
		Actions: []manifest.Action{
			{ID: "rollout", Type: manifest.ActionDeploy, Target: "staging"},
		},
	}
}

// statusHandler emits a fixed status for its phase and records invocation.
func statusHandler(phase Phase, status Status, invoked *[]Phase) Handler {
	return HandlerFunc{
		ForPhase: phase,
		Fn: func(ctx context.Context, run *Run) (*Envelope, error) {
			if invoked != nil {
				*invoked = append(*invoked, phase)
			}
			return &Envelope{Phase: phase, Status: status}, nil
		},
	}
}

// newTestRunner registers one handler per phase with the given statuses.
func newTestRunner(invoked *[]Phase, statuses map[Phase]Status) *Runner {
	r := NewRunner(nil)
	for _, phase := range Phases() {
		status, ok := statuses[phase]
		if !ok {
			status = StatusComplete
		}
		r.RegisterHandler(statusHandler(phase, status, invoked))
	}
	return r
}

func TestExecute_AllPhasesInOrder(t *testing.T) {
	var invoked []Phase
	r := newTestRunner(&invoked, map[Phase]Status{PhaseValidate: StatusSuccess})

	run, err := r.Execute(context.Background(), testSkill())
	require.NoError(t, err)

	assert.Equal(t, Phases(), invoked)
	assert.Equal(t, StatusSuccess, run.Verdict)
	assert.True(t, run.Succeeded())
	require.Len(t, run.Envelopes, 6)
	assert.Equal(t, PhaseUnderstand, run.Envelopes[0].Phase)
	assert.Equal(t, PhaseValidate, run.Envelopes[5].Phase)
	assert.NotEmpty(t, run.ID)
}

// Two skipped phases must not spoil a successful verdict.
func TestExecute_SkippedPhasesStillSucceed(t *testing.T) {
	var invoked []Phase
	r := newTestRunner(&invoked, map[Phase]Status{
		PhaseRemediate: StatusSkipped,
		PhaseIntegrate: StatusSkipped,
		PhaseValidate:  StatusSuccess,
	})

	run, err := r.Execute(context.Background(), testSkill())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, run.Verdict)
	assert.Len(t, invoked, 6, "skipped phases advance, they do not halt")
	assert.Equal(t, StatusSkipped, run.Envelope(PhaseRemediate).Status)
}

// An error in reason must halt immediately: remediate never runs, and the
// error envelope is the pipeline result.
func TestExecute_ErrorHaltsImmediately(t *testing.T) {
	var invoked []Phase
	r := newTestRunner(&invoked, map[Phase]Status{PhaseReason: StatusError})

	run, err := r.Execute(context.Background(), testSkill())
	require.NoError(t, err, "a phase error is a verdict, not a process failure")

	assert.Equal(t, []Phase{PhaseUnderstand, PhaseAnalyze, PhaseReason}, invoked)
	assert.Equal(t, StatusError, run.Verdict)
	require.Len(t, run.Envelopes, 3, "prior envelopes preserved for audit")
	assert.Nil(t, run.Envelope(PhaseRemediate))
}

func TestExecute_HandlerGoErrorBecomesErrorEnvelope(t *testing.T) {
	r := NewRunner(nil)
	for _, phase := range Phases() {
		r.RegisterHandler(statusHandler(phase, StatusComplete, nil))
	}
	r.RegisterHandler(HandlerFunc{
		ForPhase: PhaseAnalyze,
		Fn: func(ctx context.Context, run *Run) (*Envelope, error) {
			return nil, errors.New("log source unreachable")
		},
	})

	run, err := r.Execute(context.Background(), testSkill())
	require.NoError(t, err)

	env := run.Envelope(PhaseAnalyze)
	require.NotNil(t, env)
	assert.Equal(t, StatusError, env.Status)
	assert.Contains(t, env.Error, "log source unreachable")
	assert.Equal(t, StatusError, run.Verdict)
}

func TestExecute_ValidateFailureIsPipelineFailure(t *testing.T) {
	r := newTestRunner(nil, map[Phase]Status{PhaseValidate: StatusFailure})

	run, err := r.Execute(context.Background(), testSkill())
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, run.Verdict)
	assert.False(t, run.Succeeded())
}

func TestExecute_MissingHandler(t *testing.T) {
	r := NewRunner(nil)

	run, err := r.Execute(context.Background(), testSkill())
	assert.ErrorIs(t, err, ErrNoHandler)
	assert.Equal(t, StatusError, run.Verdict)
}

func TestExecute_EnvelopeContractEnforced(t *testing.T) {
	r := newTestRunner(nil, nil)
	r.RegisterHandler(HandlerFunc{
		ForPhase: PhaseUnderstand,
		Fn: func(ctx context.Context, run *Run) (*Envelope, error) {
			// Wrong phase name in the envelope.
			return &Envelope{Phase: PhaseReason, Status: StatusComplete}, nil
		},
	})

	_, err := r.Execute(context.Background(), testSkill())
	assert.ErrorIs(t, err, ErrEnvelopeContract)
}

func TestExecute_CancellationTagsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	r := newTestRunner(nil, nil)
	r.RegisterHandler(HandlerFunc{
		ForPhase: PhaseAnalyze,
		Fn: func(cctx context.Context, run *Run) (*Envelope, error) {
			cancel() // cancel mid-run; reason must never start
			return &Envelope{Phase: PhaseAnalyze, Status: StatusComplete}, nil
		},
	})

	run, err := r.Execute(ctx, testSkill())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusError, run.Verdict)

	env := run.Envelope(PhaseReason)
	require.NotNil(t, env, "the phase that never ran is tagged, not left ambiguous")
	assert.Equal(t, StatusError, env.Status)
	assert.Contains(t, env.Error, "cancelled")
}

func TestExecute_ProgressCallback(t *testing.T) {
	var updates []Progress
	r := newTestRunner(nil, map[Phase]Status{PhaseValidate: StatusSuccess})
	r.OnProgress(func(p Progress) { updates = append(updates, p) })

	_, err := r.Execute(context.Background(), testSkill())
	require.NoError(t, err)

	// Two updates per phase: started and terminal.
	assert.Len(t, updates, 12)
	assert.Equal(t, StatusStarted, updates[0].Status)
}

// Concurrent runs of different skills must not share state.
func TestExecute_ConcurrentRunsIsolated(t *testing.T) {
	r := newTestRunner(nil, map[Phase]Status{PhaseValidate: StatusSuccess})

	first := testSkill()
	second := testSkill()
	second.ID = "bump-pinned-deps"

	type result struct {
		run *Run
		err error
	}
	results := make(chan result, 2)
	for _, skill := range []*manifest.Skill{first, second} {
		go func() {
			run, err := r.Execute(context.Background(), skill)
			results <- result{run, err}
		}()
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		res := <-results
		require.NoError(t, res.err)
		assert.Equal(t, StatusSuccess, res.run.Verdict)
		assert.Len(t, res.run.Envelopes, 6)
		seen[res.run.SkillID] = true
	}
	assert.Len(t, seen, 2)
}

func TestVerdictFrom(t *testing.T) {
	tests := []struct {
		name string
		env  *Envelope
		want Status
	}{
		{"success", &Envelope{Status: StatusSuccess}, StatusSuccess},
		{"failure", &Envelope{Status: StatusFailure}, StatusFailure},
		{"skipped validate is success", &Envelope{Status: StatusSkipped}, StatusSuccess},
		{"complete is success", &Envelope{Status: StatusComplete}, StatusSuccess},
		{"missing envelope", nil, StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verdictFrom(tt.env))
		})
	}
}
