package harness

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/statekit/internal/actions"
	"github.com/roach88/statekit/internal/async"
	"github.com/roach88/statekit/internal/event"
	"github.com/roach88/statekit/internal/history"
	"github.com/roach88/statekit/internal/store"
	"github.com/roach88/statekit/internal/subscriber"
	"github.com/roach88/statekit/internal/testutil"
	"github.com/roach88/statekit/internal/validate"
)

// traced lists the event types recorded in scenario traces.
var traced = []event.Type{
	store.AfterInitialize,
	store.BeforeUpdate,
	store.AfterUpdate,
	store.SetterException,
	store.SetterRejection,
}

// Harness executes one scenario against a fresh store.
type Harness struct {
	store   *store.Store
	history *history.History
	clock   *testutil.Clock
	logger  *slog.Logger
	result  *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store on its own loop. The loop is
// drained only by drain steps and once after the last step, so scenarios
// control exactly when notifications and promise continuations happen.
//
// Returns an error only when the scenario cannot be set up (bad schema,
// plugin failure); step failures are recorded in the trace.
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		clock:  testutil.NewClock(),
		logger: testutil.QuietLogger(),
		result: NewResult(),
	}

	opts := []store.Option{
		store.WithID(scenario.Name),
		store.WithLogger(h.logger),
	}
	if scenario.CascadeMargin > 0 {
		opts = append(opts, store.WithCascadeMargin(scenario.CascadeMargin))
	}
	for _, t := range traced {
		opts = append(opts, store.WithHandler(t, h.trace))
	}

	schema, err := loadSchema(scenario)
	if err != nil {
		return nil, err
	}
	if schema != nil {
		opts = append(opts, store.WithMiddleware(validate.Interceptor(schema)))
	}

	h.store = store.New(scenario.Initial, opts...)

	if scenario.History {
		h.history, err = history.Install(h.store)
		if err != nil {
			return nil, fmt.Errorf("failed to install history: %w", err)
		}
	}

	h.store.Subscribe(&subscriber.Descriptor{
		Notify: func(any) { h.result.Updates++ },
	})

	for i, step := range scenario.Steps {
		h.executeStep(i, step)
	}
	h.store.Loop().Drain()

	h.result.Final = h.store.GetState()

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}

	return h.result, nil
}

func loadSchema(scenario *Scenario) (*validate.Schema, error) {
	switch {
	case scenario.Schema != "":
		schema, err := validate.Compile(scenario.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema: %w", err)
		}
		return schema, nil
	case scenario.SchemaFile != "":
		schema, err := validate.CompileFile(scenario.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema: %w", err)
		}
		return schema, nil
	}
	return nil, nil
}

// trace records a store event.
func (h *Harness) trace(ev *event.Event) {
	te := TraceEvent{Seq: h.clock.Next(), Type: string(ev.Type)}
	switch data := ev.Data.(type) {
	case *store.Transition:
		te.Value = data.Next
	case *store.SetterError:
		te.Path = data.Path
		te.Error = data.Err.Error()
	default:
		te.Value = data
	}
	h.result.Trace = append(h.result.Trace, te)
}

// executeStep records step i and runs it. The step entry precedes any
// events the step causes.
func (h *Harness) executeStep(i int, step Step) {
	idx := len(h.result.Trace)
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Seq:   h.clock.Next(),
		Type:  TraceStep,
		Op:    step.Op,
		Path:  step.Path,
		Value: step.Value,
	})

	if err := h.apply(step); err != nil {
		h.result.Trace[idx].Error = err.Error()
		h.logger.Debug("step failed", "step", i, "op", step.Op, "error", err)
	}
}

func (h *Harness) apply(step Step) error {
	s := h.store
	switch step.Op {
	case OpSet:
		return s.SetState(step.Value)
	case OpSetAt:
		return s.SetStateAt(step.Path, step.Value)
	case OpMerge:
		return s.MergeState(step.Value)
	case OpMergeAt:
		return s.MergeStateAt(step.Path, step.Value)
	case OpReset:
		return s.ResetState()
	case OpResetAt:
		return s.ResetStateAt(step.Path)
	case OpAppend:
		return h.invoke(actions.Append, step)
	case OpRemove:
		return h.invoke(actions.Remove, step)
	case OpToggle:
		return h.invoke(actions.Toggle, step)
	case OpIncrement:
		return h.invoke(actions.Increment, step)
	case OpResolve:
		if step.Path == "" {
			return s.SetState(async.Resolved(step.Value))
		}
		return s.SetStateAt(step.Path, async.Resolved(step.Value))
	case OpReject:
		reason := step.Reason
		if reason == "" {
			reason = "rejected"
		}
		return s.SetState(async.Rejected(errors.New(reason)))
	case OpDrain:
		s.Loop().Drain()
		return nil
	case OpUndo:
		_, err := h.history.Undo()
		return err
	case OpRedo:
		_, err := h.history.Redo()
		return err
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

type actionFactory func(s *store.Store, path string) (actions.Action, error)

func (h *Harness) invoke(factory actionFactory, step Step) error {
	action, err := factory(h.store, step.Path)
	if err != nil {
		return err
	}
	if step.Value == nil {
		return action()
	}
	return action(step.Value)
}
