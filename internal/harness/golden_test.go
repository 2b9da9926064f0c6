package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Counter(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/counter.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestTraceSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/async.yaml")
	require.NoError(t, err)

	var outputs []string
	for i := 0; i < 3; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		snap := TraceSnapshot{ScenarioName: scenario.Name, Trace: result.Trace, Final: result.Final}
		data, err := snap.Marshal()
		require.NoError(t, err)
		outputs = append(outputs, string(data))
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])
}

func TestTraceSnapshot_OmitsEmptyFields(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "s",
		Trace:        []TraceEvent{{Seq: 1, Type: TraceStep, Op: OpDrain}},
		Final:        nil,
	}
	data, err := snap.Marshal()
	require.NoError(t, err)
	assert.Equal(t, `{"final":null,"scenario_name":"s","trace":[{"op":"drain","seq":1,"type":"step"}]}`, string(data))
}
