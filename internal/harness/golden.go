package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/statekit/internal/value"
)

// TraceSnapshot captures the trace and final value of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Final        any          `json:"final"`
}

// toCanonicalMap flattens the snapshot into plain maps, leaving out empty
// trace fields so golden files stay small.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":  ev.Seq,
			"type": ev.Type,
		}
		if ev.Op != "" {
			m["op"] = ev.Op
		}
		if ev.Path != "" {
			m["path"] = ev.Path
		}
		if ev.Value != nil {
			m["value"] = ev.Value
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		traceList[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final":         s.Final,
	}
}

// Marshal returns the canonical JSON of the snapshot.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return value.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden runs scenario and checks its trace against
// testdata/golden/<name>.golden. Pass -update to go test to rewrite the file.
// A mismatch fails t through goldie; the error is for setup failures.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden checks an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{ScenarioName: name, Trace: result.Trace, Final: result.Final}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
