package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/jmapc/internal/wire"
)

// TraceSnapshot captures what a scenario sent and what came back.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Request      any          `json:"request"`
	Trace        []TraceEvent `json:"trace"`
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	request, err := wire.FromJSON(result.Request)
	if err != nil {
		return err
	}
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Request:      request,
		Trace:        result.Trace,
	}
	data, err := wire.Canonicalize(snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
