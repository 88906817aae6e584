package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSkill returns a minimal valid skill manifest.
func newTestSkill() *Skill {
	return &Skill{
		ID:          "restart-flaky-deploy",
		Name:        "Restart flaky deploy",
		Version:     "1.2.0",
		Description: "Restarts a deployment stuck in a crash loop",
		Category:    CategoryRemediation,
		Triggers: []Trigger{
			{Type: TriggerManual},
		},
		Actions: []Action{
			{ID: "fetch-logs", Type: ActionAPI, Target: "https://ci.internal/logs"},
			{ID: "patch-config", Type: ActionTransform, DependsOn: []string{"fetch-logs"}},
			{ID: "rollout", Type: ActionDeploy, Target: "staging", DependsOn: []string{"patch-config"}},
		},
		Inputs: []Parameter{
			{Name: "service", Type: ParamString, Required: true},
		},
		Outputs: []Parameter{
			{Name: "commit_sha", Type: ParamString},
		},
		Governance: &Governance{Owner: "platform-team", Lifecycle: LifecycleActive},
		Metadata:   &Metadata{UniqueID: "b2c3d4", SchemaVersion: "1"},
	}
}

func TestValidator_ValidSkill(t *testing.T) {
	report := NewValidator(nil).Validate(newTestSkill())

	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings)
}

func TestValidator_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Skill)
		wantErr string
	}{
		{
			name:    "missing id",
			mutate:  func(s *Skill) { s.ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "id not kebab-case",
			mutate:  func(s *Skill) { s.ID = "Restart_Deploy" },
			wantErr: "kebab-case",
		},
		{
			name:    "missing name",
			mutate:  func(s *Skill) { s.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "missing version",
			mutate:  func(s *Skill) { s.Version = "" },
			wantErr: "version is required",
		},
		{
			name:    "version missing patch",
			mutate:  func(s *Skill) { s.Version = "1.2" },
			wantErr: "semantic version",
		},
		{
			name:    "missing category",
			mutate:  func(s *Skill) { s.Category = "" },
			wantErr: "category is required",
		},
		{
			name:    "unknown category",
			mutate:  func(s *Skill) { s.Category = "wizardry" },
			wantErr: "category",
		},
		{
			name:    "no actions",
			mutate:  func(s *Skill) { s.Actions = nil },
			wantErr: "at least one action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSkill()
			tt.mutate(s)

			report := NewValidator(nil).Validate(s)

			assert.False(t, report.Valid)
			require.NotEmpty(t, report.Errors)
			assert.True(t, containsSubstring(report.Errors, tt.wantErr),
				"expected an error containing %q, got %v", tt.wantErr, report.Errors)
		})
	}
}

func TestValidator_VersionWithPrereleaseSuffix(t *testing.T) {
	s := newTestSkill()
	s.Version = "2.0.1-rc.1"

	report := NewValidator(nil).Validate(s)

	assert.True(t, report.Valid)
}

func TestValidator_TriggerChecks(t *testing.T) {
	s := newTestSkill()
	s.Triggers = []Trigger{
		{Type: "carrier-pigeon"},
		{Type: TriggerSchedule}, // missing cron expression
		{Type: TriggerSchedule, Schedule: "0 */4 * * *"},
	}

	report := NewValidator(nil).Validate(s)

	assert.False(t, report.Valid)
	assert.Len(t, report.Errors, 2)
}

func TestValidator_DuplicateActionIDs(t *testing.T) {
	s := newTestSkill()
	// Three occurrences of the same id: exactly two errors, one per
	// occurrence beyond the first.
	s.Actions = []Action{
		{ID: "step", Type: ActionShell, Command: "true"},
		{ID: "step", Type: ActionShell, Command: "true"},
		{ID: "step", Type: ActionShell, Command: "true"},
	}

	report := NewValidator(nil).Validate(s)

	assert.False(t, report.Valid)
	var dupes int
	for _, e := range report.Errors {
		if strings.Contains(e, "duplicate action id") {
			dupes++
		}
	}
	assert.Equal(t, 2, dupes)
}

func TestValidator_ActionTypeChecks(t *testing.T) {
	s := newTestSkill()
	s.Actions = append(s.Actions, Action{ID: "bad", Type: "teleport"})

	report := NewValidator(nil).Validate(s)

	assert.False(t, report.Valid)
	assert.True(t, containsSubstring(report.Errors, "teleport"))
}

// Forward references and references to ids that exist nowhere are both
// soft warnings here. Existence is enforced by the graph resolver, which
// turns a genuinely missing id into a hard UnknownDependencyError.
func TestValidator_DependsOnWarnings(t *testing.T) {
	s := newTestSkill()
	s.Actions = []Action{
		{ID: "a", Type: ActionShell, Command: "true", DependsOn: []string{"b"}},
		{ID: "b", Type: ActionShell, Command: "true", DependsOn: []string{"ghost"}},
	}

	report := NewValidator(nil).Validate(s)

	assert.True(t, report.Valid, "depends_on issues must never flip Valid")
	assert.True(t, containsSubstring(report.Warnings, "declared later"))
	assert.True(t, containsSubstring(report.Warnings, "not declared in this manifest"))
}

// A cyclic graph is not the validator's problem: it must not falsely
// report a hard error for it.
func TestValidator_CycleIsNotAValidationError(t *testing.T) {
	s := newTestSkill()
	s.Actions = []Action{
		{ID: "a", Type: ActionShell, Command: "true", DependsOn: []string{"b"}},
		{ID: "b", Type: ActionShell, Command: "true", DependsOn: []string{"a"}},
	}

	report := NewValidator(nil).Validate(s)

	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
}

func TestValidator_ParameterChecks(t *testing.T) {
	s := newTestSkill()
	s.Inputs = append(s.Inputs, Parameter{Name: "", Type: ParamNumber})
	s.Outputs = append(s.Outputs, Parameter{Name: "blob", Type: "binary"})

	report := NewValidator(nil).Validate(s)

	assert.False(t, report.Valid)
	assert.True(t, containsSubstring(report.Errors, "inputs[1]: name is required"))
	assert.True(t, containsSubstring(report.Errors, `"binary"`))
}

func TestValidator_GovernanceWarnings(t *testing.T) {
	s := newTestSkill()
	s.Governance = nil
	s.Metadata = nil

	report := NewValidator(nil).Validate(s)

	assert.True(t, report.Valid, "missing governance is drift, not failure")
	assert.Len(t, report.Warnings, 3)
}

func TestValidator_InvalidLifecycle(t *testing.T) {
	s := newTestSkill()
	s.Governance.Lifecycle = "zombie"

	report := NewValidator(nil).Validate(s)

	assert.False(t, report.Valid)
}

func containsSubstring(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.Contains(h, needle) {
			return true
		}
	}
	return false
}
