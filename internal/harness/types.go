package harness

// TraceStep is the TraceEvent type of scenario steps.
const TraceStep = "step"

// TraceEvent is one entry of a scenario trace: either a step or a store
// event.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"` // "step" or an event type name

	// Op is the step operation (steps only).
	Op string `json:"op,omitempty"`

	// Path is the step path, or the path of a failed update.
	Path string `json:"path,omitempty"`

	// Value is the step argument, or the next value of an update event.
	Value any `json:"value,omitempty"`

	// Error is the step's returned error or the failure's reason.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace contains steps and traced events in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the store value after the last drain.
	Final any `json:"final"`

	// Updates counts notifications received by the scenario's subscriber.
	Updates int `json:"updates"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// StepErrors returns the errors returned by steps, in order.
func (r *Result) StepErrors() []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.Type == TraceStep && ev.Error != "" {
			out = append(out, ev.Error)
		}
	}
	return out
}
