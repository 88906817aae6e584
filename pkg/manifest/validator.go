package manifest

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

var (
	// idPattern matches kebab-case skill identifiers.
	idPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

	// versionPattern matches semantic versions with at least
	// major.minor.patch. Pre-release and build suffixes are accepted.
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+`)
)

// Report is the result of statically validating one skill manifest.
//
// Errors and warnings are strictly separated: CI gates on Errors while
// Warnings surface authoring drift (ordering-sensitive depends_on,
// missing governance) without failing the skill.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *Report) errorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *Report) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validator statically checks skill manifests against the schema.
//
// The validator never executes anything; its only output is the Report.
// Graph-level problems (cycles, dependencies that exist nowhere) are the
// resolver's job and are deliberately not treated as errors here.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a manifest validator.
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger}
}

// Validate statically checks a skill manifest and returns a report.
func (v *Validator) Validate(s *Skill) *Report {
	report := &Report{Valid: true, Errors: []string{}, Warnings: []string{}}

	v.checkTopLevel(s, report)
	v.checkTriggers(s, report)
	v.checkActions(s, report)
	v.checkParameters("inputs", s.Inputs, report)
	v.checkParameters("outputs", s.Outputs, report)
	v.checkGovernance(s, report)

	v.logger.Debug("manifest validated",
		zap.String("skill", s.ID),
		zap.Bool("valid", report.Valid),
		zap.Int("errors", len(report.Errors)),
		zap.Int("warnings", len(report.Warnings)),
	)

	return report
}

func (v *Validator) checkTopLevel(s *Skill, report *Report) {
	if s.ID == "" {
		report.errorf("id is required")
	} else if !idPattern.MatchString(s.ID) {
		report.errorf("id %q must be kebab-case (lowercase letters, digits, hyphens)", s.ID)
	}

	if s.Name == "" {
		report.errorf("name is required")
	}

	if s.Version == "" {
		report.errorf("version is required")
	} else if !versionPattern.MatchString(s.Version) {
		report.errorf("version %q must be a semantic version (major.minor.patch)", s.Version)
	}

	if s.Category == "" {
		report.errorf("category is required")
	} else if !validCategory(s.Category) {
		report.errorf("category %q is not one of %v", s.Category, Categories())
	}

	if len(s.Actions) == 0 {
		report.errorf("at least one action is required")
	}
}

func (v *Validator) checkTriggers(s *Skill, report *Report) {
	for i, t := range s.Triggers {
		if t.Type == "" {
			report.errorf("triggers[%d]: type is required", i)
			continue
		}
		if !validTriggerType(t.Type) {
			report.errorf("triggers[%d]: type %q is not one of %v", i, t.Type, TriggerTypes())
			continue
		}
		if t.Type == TriggerSchedule && t.Schedule == "" {
			report.errorf("triggers[%d]: schedule triggers require a cron expression", i)
		}
	}
}

// checkActions validates each action's shape and ID uniqueness, and emits
// ordering warnings for depends_on references. A dependency on an ID that
// only appears later in the list is an authoring note, not an error; a
// dependency that exists nowhere is also only warned here because its
// hard-failure counterpart (UnknownDependencyError) belongs to the graph
// resolver.
func (v *Validator) checkActions(s *Skill, report *Report) {
	declared := make(map[string]bool, len(s.Actions))
	all := make(map[string]bool, len(s.Actions))
	for _, a := range s.Actions {
		if a.ID != "" {
			all[a.ID] = true
		}
	}

	for i, a := range s.Actions {
		if a.ID == "" {
			report.errorf("actions[%d]: id is required", i)
		} else if declared[a.ID] {
			// One error per duplicate occurrence beyond the first.
			report.errorf("actions[%d]: duplicate action id %q", i, a.ID)
		}

		if a.Type == "" {
			report.errorf("actions[%d]: type is required", i)
		} else if !validActionType(a.Type) {
			report.errorf("actions[%d]: type %q is not one of %v", i, a.Type, ActionTypes())
		}

		for _, dep := range a.DependsOn {
			switch {
			case declared[dep]:
				// Already declared above this action; nothing to note.
			case all[dep]:
				report.warnf("actions[%d]: %q depends on %q which is declared later in the list", i, a.ID, dep)
			default:
				report.warnf("actions[%d]: %q depends on %q which is not declared in this manifest", i, a.ID, dep)
			}
		}

		if a.ID != "" {
			declared[a.ID] = true
		}
	}
}

func (v *Validator) checkParameters(section string, params []Parameter, report *Report) {
	for i, p := range params {
		if p.Name == "" {
			report.errorf("%s[%d]: name is required", section, i)
		}
		if p.Type == "" {
			report.errorf("%s[%d]: type is required", section, i)
		} else if !validParameterType(p.Type) {
			report.errorf("%s[%d]: type %q is not one of %v", section, i, p.Type, ParameterTypes())
		}
	}
}

func (v *Validator) checkGovernance(s *Skill, report *Report) {
	if s.Governance == nil || s.Governance.Owner == "" {
		report.warnf("governance.owner is not set")
	}
	if s.Governance != nil && s.Governance.Lifecycle != "" && !validLifecycle(s.Governance.Lifecycle) {
		report.errorf("governance.lifecycle %q is not one of %v", s.Governance.Lifecycle, LifecycleStates())
	}
	if s.Metadata == nil || s.Metadata.UniqueID == "" {
		report.warnf("metadata.unique_id is not set")
	}
	if s.Metadata == nil || s.Metadata.SchemaVersion == "" {
		report.warnf("metadata.schema_version is not set")
	}
}

func validCategory(c Category) bool {
	for _, v := range Categories() {
		if c == v {
			return true
		}
	}
	return false
}

func validTriggerType(t TriggerType) bool {
	for _, v := range TriggerTypes() {
		if t == v {
			return true
		}
	}
	return false
}

func validActionType(t ActionType) bool {
	for _, v := range ActionTypes() {
		if t == v {
			return true
		}
	}
	return false
}

func validParameterType(t ParameterType) bool {
	for _, v := range ParameterTypes() {
		if t == v {
			return true
		}
	}
	return false
}

func validLifecycle(l LifecycleState) bool {
	for _, v := range LifecycleStates() {
		if l == v {
			return true
		}
	}
	return false
}
