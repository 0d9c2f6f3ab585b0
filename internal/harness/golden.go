package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/ashgale/canon/internal/prop"
)

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// The trace is serialized canonically, so a golden mismatch means real
// behavioral drift, not formatting noise.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already executed result's trace against the
// named golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = map[string]any(ev)
	}
	snapshot := map[string]any{
		"scenario_name": name,
		"trace":         trace,
	}

	raw, err := prop.MarshalCanonical(snapshot)
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, raw)
}
