// Package manifest defines the skill manifest schema and its static validator.
//
// A skill manifest is a versioned, immutable JSON document describing one
// automatable remediation skill: what triggers it, the dependency-ordered
// actions it performs, its typed inputs/outputs, and lifecycle governance.
// Validation here is purely static; nothing in this package executes actions.
package manifest

import "fmt"

// ManifestFileName is the conventional file name for a skill manifest
// inside a skill directory.
const ManifestFileName = "skill.json"

// Category classifies a skill within the registry.
type Category string

const (
	CategoryRemediation    Category = "remediation"
	CategoryDependency     Category = "dependency"
	CategorySecurity       Category = "security"
	CategoryInfrastructure Category = "infrastructure"
	CategoryTesting        Category = "testing"
)

// Categories returns the closed set of valid skill categories.
func Categories() []Category {
	return []Category{
		CategoryRemediation,
		CategoryDependency,
		CategorySecurity,
		CategoryInfrastructure,
		CategoryTesting,
	}
}

// TriggerType identifies how a skill execution is initiated.
type TriggerType string

const (
	TriggerWebhook  TriggerType = "webhook"
	TriggerSchedule TriggerType = "schedule"
	TriggerEvent    TriggerType = "event"
	TriggerManual   TriggerType = "manual"
)

// TriggerTypes returns the closed set of valid trigger types.
func TriggerTypes() []TriggerType {
	return []TriggerType{TriggerWebhook, TriggerSchedule, TriggerEvent, TriggerManual}
}

// ActionType identifies what kind of work an action performs.
type ActionType string

const (
	ActionShell     ActionType = "shell"
	ActionAPI       ActionType = "api"
	ActionTransform ActionType = "transform"
	ActionValidate  ActionType = "validate"
	ActionDeploy    ActionType = "deploy"
)

// ActionTypes returns the closed set of valid action types.
func ActionTypes() []ActionType {
	return []ActionType{ActionShell, ActionAPI, ActionTransform, ActionValidate, ActionDeploy}
}

// ParameterType identifies the JSON type of a skill input or output.
type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamNumber  ParameterType = "number"
	ParamBoolean ParameterType = "boolean"
	ParamObject  ParameterType = "object"
	ParamArray   ParameterType = "array"
)

// ParameterTypes returns the closed set of valid parameter types.
func ParameterTypes() []ParameterType {
	return []ParameterType{ParamString, ParamNumber, ParamBoolean, ParamObject, ParamArray}
}

// LifecycleState tracks governance lifecycle for a skill.
type LifecycleState string

const (
	LifecycleDraft      LifecycleState = "draft"
	LifecycleActive     LifecycleState = "active"
	LifecycleDeprecated LifecycleState = "deprecated"
	LifecycleRetired    LifecycleState = "retired"
)

// LifecycleStates returns the closed set of valid lifecycle states.
func LifecycleStates() []LifecycleState {
	return []LifecycleState{LifecycleDraft, LifecycleActive, LifecycleDeprecated, LifecycleRetired}
}

// Skill is a versioned, declarative description of one automatable
// unit of remediation work. Instances are read-only after loading.
type Skill struct {
	// ID is a kebab-case identifier, unique within a registry.
	ID string `json:"id"`

	// Name is a human-readable skill name.
	Name string `json:"name"`

	// Version is a semantic version (at least major.minor.patch).
	Version string `json:"version"`

	// Description explains what the skill remediates.
	Description string `json:"description"`

	// Category is one of the closed category set.
	Category Category `json:"category"`

	// Triggers fire pipeline execution. Evaluated at dispatch, never mutated.
	Triggers []Trigger `json:"triggers,omitempty"`

	// Actions are the nodes of the skill's dependency graph, in
	// declaration order. Declaration order is the tie-break for
	// topological sorting.
	Actions []Action `json:"actions"`

	// Inputs are the typed parameters the skill consumes.
	Inputs []Parameter `json:"inputs,omitempty"`

	// Outputs are the typed parameters the skill produces.
	Outputs []Parameter `json:"outputs,omitempty"`

	// Governance holds ownership and lifecycle state (optional).
	Governance *Governance `json:"governance,omitempty"`

	// Metadata holds registry bookkeeping (optional).
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Trigger declares how a skill execution is initiated.
type Trigger struct {
	Type TriggerType `json:"type"`

	// Schedule is a cron expression, required for schedule triggers.
	Schedule string `json:"schedule,omitempty"`

	// Event names the event source, for event triggers.
	Event string `json:"event,omitempty"`
}

// Action is one node in a skill's dependency graph. Actions are created
// at authoring time and read-only at execution time.
type Action struct {
	ID   string     `json:"id"`
	Type ActionType `json:"type"`

	// Command is the shell command line, for shell actions.
	Command string `json:"command,omitempty"`

	// Target is the endpoint or environment acted on, for api and
	// deploy actions.
	Target string `json:"target,omitempty"`

	// DependsOn lists action IDs that must complete before this one.
	DependsOn []string `json:"depends_on,omitempty"`
}

// Parameter is a typed skill input or output. Inputs and outputs are
// validated identically.
type Parameter struct {
	Name        string        `json:"name"`
	Type        ParameterType `json:"type"`
	Required    bool          `json:"required,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Governance holds ownership and lifecycle information for a skill.
type Governance struct {
	Owner     string         `json:"owner,omitempty"`
	Lifecycle LifecycleState `json:"lifecycle,omitempty"`
}

// Metadata holds registry bookkeeping for a skill.
type Metadata struct {
	UniqueID      string `json:"unique_id,omitempty"`
	SchemaVersion string `json:"schema_version,omitempty"`
}

// String implements fmt.Stringer for log output.
func (s *Skill) String() string {
	return fmt.Sprintf("%s@%s", s.ID, s.Version)
}

// HasActionType reports whether any action in the skill has the given type.
func (s *Skill) HasActionType(t ActionType) bool {
	for _, a := range s.Actions {
		if a.Type == t {
			return true
		}
	}
	return false
}
