package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jmapc/internal/cli"
)

func runScenario(t *testing.T, name string) *Result {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRunPassingScenarios(t *testing.T) {
	for _, name := range []string{"query_then_get", "query_then_destroy", "set_outcomes", "missing_response"} {
		t.Run(name, func(t *testing.T) {
			result := runScenario(t, name)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRunFlagsBadFixture(t *testing.T) {
	result := runScenario(t, "bad_get_fixture")

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: get_partition")
	assert.Contains(t, result.Errors[0], `"t1" in list and notFound`)
	assert.Contains(t, result.Errors[0], `"t3" in none of list, notFound`)
	assert.Contains(t, result.Errors[0], "[1] fetch Task/get: ok")
}

func TestRunTrace(t *testing.T) {
	result := runScenario(t, "missing_response")

	require.Len(t, result.Trace, 3)
	assert.Empty(t, result.Trace[0].Error)
	assert.NotEmpty(t, result.Trace[0].Response)
	assert.Equal(t, "MISSING_RESPONSE", result.Trace[1].ErrorType)
	assert.Nil(t, result.Trace[1].Response)
	assert.Equal(t, "UNMATCHED_CLIENT_ID", result.Trace[2].ErrorType)
}

func TestRunBuildFailure(t *testing.T) {
	s := &Scenario{
		Name:        "forward",
		Description: "reference to a later call",
		Account:     "A1",
		Assertions:  []Assertion{{Type: AssertResultOK, Call: "a"}},
	}
	s.Batch.Calls = append(s.Batch.Calls,
		callSpec("a", "Task/get", "b"),
		callSpec("b", "Task/query", ""),
	)

	_, err := Run(s)
	assert.ErrorContains(t, err, "failed to build batch")
}

func TestRunWithGolden(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/query_then_get.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func callSpec(id, method, idsFrom string) cli.CallSpec {
	spec := cli.CallSpec{ID: id, Method: method, Args: map[string]any{}}
	if idsFrom != "" {
		spec.Refs = map[string]cli.RefSpec{"ids": {From: idsFrom, Path: "/ids"}}
	}
	return spec
}
