package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a store scenario: an initial value, the steps to run
// against it and the assertions to check afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the store's initial value.
	Initial any `yaml:"initial"`

	// Schema is inline CUE source. When set, every transition is validated
	// and rejected if it does not conform.
	Schema string `yaml:"schema,omitempty"`

	// SchemaFile is a CUE file, relative to the scenario file.
	SchemaFile string `yaml:"schema_file,omitempty"`

	// History installs the undo/redo plugin, enabling undo and redo steps.
	History bool `yaml:"history,omitempty"`

	// CascadeMargin overrides the store's cascade guard margin.
	CascadeMargin int `yaml:"cascade_margin,omitempty"`

	// Steps run in order. A final drain always follows the last step.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final value.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, update_count
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single operation against the store.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Path addresses part of the state. Required for *_at ops and actions.
	Path string `yaml:"path,omitempty"`

	// Value is the operation argument: the new value, the merge partial, the
	// appended element, the removed index or the increment.
	Value any `yaml:"value,omitempty"`

	// Reason is the rejection message for reject steps.
	Reason string `yaml:"reason,omitempty"`
}

// Step operations.
const (
	OpSet       = "set"
	OpSetAt     = "set_at"
	OpMerge     = "merge"
	OpMergeAt   = "merge_at"
	OpReset     = "reset"
	OpResetAt   = "reset_at"
	OpAppend    = "append"
	OpRemove    = "remove"
	OpToggle    = "toggle"
	OpIncrement = "increment"
	OpResolve   = "resolve"
	OpReject    = "reject"
	OpDrain     = "drain"
	OpUndo      = "undo"
	OpRedo      = "redo"
)

// Assertion validates the trace or final value.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of Event (and Path, when given) occurred
	// - "trace_order": Events occur in this order
	// - "trace_count": Event occurs exactly Count times
	// - "final_state": the value at Path (root when empty) equals Expect
	// - "update_count": the subscriber was notified exactly Count times
	Type string `yaml:"type"`

	// Event is an event type name or "step".
	Event string `yaml:"event,omitempty"`

	// Events is the expected order (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Path narrows trace_contains to failures at a path, and selects the
	// value checked by final_state.
	Path string `yaml:"path,omitempty"`

	// Count is the expected number of occurrences.
	Count int `yaml:"count,omitempty"`

	// Expect is the expected value (used by final_state).
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertUpdateCount   = "update_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schema_file is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.SchemaFile != "" && !filepath.IsAbs(scenario.SchemaFile) {
		scenario.SchemaFile = filepath.Join(filepath.Dir(path), scenario.SchemaFile)
	}
	if scenario.SchemaFile != "" {
		if _, err := os.Stat(scenario.SchemaFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.SchemaFile)
		}
	}

	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Schema != "" && s.SchemaFile != "" {
		return fmt.Errorf("schema and schema_file are mutually exclusive")
	}

	if s.CascadeMargin < 0 {
		return fmt.Errorf("cascade_margin must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, s.History); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step, history bool) error {
	switch step.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpSet, OpMerge, OpReset, OpDrain, OpReject:
		if step.Path != "" {
			return fmt.Errorf("steps[%d]: %s takes no path (use %s_at)", index, step.Op, step.Op)
		}
	case OpSetAt, OpMergeAt, OpResetAt, OpAppend, OpRemove, OpToggle, OpIncrement:
		if step.Path == "" {
			return fmt.Errorf("steps[%d]: path is required for %s", index, step.Op)
		}
	case OpResolve:
	case OpUndo, OpRedo:
		if !history {
			return fmt.Errorf("steps[%d]: %s requires history: true", index, step.Op)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
	case AssertUpdateCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for update_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
