package harness_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/ashgale/canon/internal/harness"
)

// TestScenarios runs every YAML scenario under testdata/scenarios and
// compares each trace against its golden file. Regenerate goldens with:
//
//	go test ./internal/harness -update
func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarioDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios, "no scenarios found")

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			_, err := RunWithGolden(t, s)
			require.NoError(t, err)
		})
	}
}

func TestRunDeterministic(t *testing.T) {
	scenarios, err := LoadScenarioDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	for _, s := range scenarios {
		first, err := Run(s)
		require.NoError(t, err, s.Name)
		second, err := Run(s)
		require.NoError(t, err, s.Name)

		h1, err := first.Session.Graph().Hash()
		require.NoError(t, err)
		h2, err := second.Session.Graph().Hash()
		require.NoError(t, err)
		assert.Equal(t, h1, h2, "%s: same scenario, same graph hash", s.Name)
		assert.Equal(t, first.Trace, second.Trace, "%s: same scenario, same trace", s.Name)
	}
}

func TestRunRejectsUnexpectedRejection(t *testing.T) {
	s := &Scenario{
		Name: "bad",
		WorldSource: `world: {
	name: "w"
	entities: "x": {type: "region", name: "X"}
}`,
		Steps: []Step{
			{Commit: &CommitStep{Proposer: "test", Patches: []PatchDef{
				{Op: "set", Entity: "ghost", Field: "a", Value: 1},
			}}},
		},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected rejection")
}

func TestRunRejectsFailedAssertion(t *testing.T) {
	s := &Scenario{
		Name: "bad-assert",
		WorldSource: `world: {
	name: "w"
	entities: "x": {type: "region", name: "X"}
}`,
		Assertions: []Assertion{{Type: "entity_count", Count: 99}},
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity count")
}

func TestLoadScenarioValidation(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	_, err := LoadScenario(write("noname.yaml", "description: x\nworld_source: 'world: {}'\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")

	_, err = LoadScenario(write("noworld.yaml", "name: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "world")

	_, err = LoadScenario(write("twosteps.yaml", `name: x
world_source: 'world: {}'
steps:
  - discover: {actor: a, entity: b}
    search: {text: c}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one action")
}
