package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: seed a world, drive it
// through commits, routes and queries, then assert on the final state.
// The executed trace is compared against a golden file, so scenarios pin
// both outcomes and the exact shape of every intermediate result.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// World is a path to a CUE world file, relative to the scenario file.
	World string `yaml:"world,omitempty"`

	// WorldSource is inline CUE, for small self-contained scenarios.
	// Exactly one of World or WorldSource must be set.
	WorldSource string `yaml:"world_source,omitempty"`

	// Steps run in order against the seeded session.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final session state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action. Exactly one of the fields is set.
type Step struct {
	Commit   *CommitStep   `yaml:"commit,omitempty"`
	Route    *RouteStep    `yaml:"route,omitempty"`
	Discover *DiscoverStep `yaml:"discover,omitempty"`
	Query    *QueryStep    `yaml:"query,omitempty"`
	Search   *SearchStep   `yaml:"search,omitempty"`
}

// CommitStep submits a patch batch through the arbiter.
type CommitStep struct {
	Proposer string     `yaml:"proposer"`
	Patches  []PatchDef `yaml:"patches"`

	// ExpectRejected marks batches that must fail atomically; the
	// itemized issues land in the trace. A rejection when this is false
	// (or a commit when true) aborts the scenario.
	ExpectRejected bool `yaml:"expect_rejected,omitempty"`
}

// PatchDef is the YAML form of one patch.
type PatchDef struct {
	Op     string `yaml:"op"`
	Entity string `yaml:"entity"`
	Field  string `yaml:"field,omitempty"`
	Value  any    `yaml:"value,omitempty"`
}

// RouteStep computes a route for an actor. When Move is true and the
// route succeeds, the resulting move patches are committed as well.
type RouteStep struct {
	Actor     string  `yaml:"actor,omitempty"`
	From      string  `yaml:"from"`
	To        string  `yaml:"to"`
	Transport string  `yaml:"transport,omitempty"`
	Weather   string  `yaml:"weather,omitempty"`
	Stamina   float64 `yaml:"stamina,omitempty"`
	Health    float64 `yaml:"health,omitempty"`
	Move      bool    `yaml:"move,omitempty"`
}

// DiscoverStep marks an entity as known to an actor.
type DiscoverStep struct {
	Actor  string `yaml:"actor"`
	Entity string `yaml:"entity"`
}

// QueryStep runs a structured query; the matching ids go into the trace.
type QueryStep struct {
	Kind      string `yaml:"kind"`
	ID        string `yaml:"id,omitempty"`
	Type      string `yaml:"type,omitempty"`
	Field     string `yaml:"field,omitempty"`
	Value     any    `yaml:"value,omitempty"`
	Direction string `yaml:"direction,omitempty"`
	Limit     int    `yaml:"limit,omitempty"`
}

// SearchStep runs a free-text search; ranked ids go into the trace.
type SearchStep struct {
	Text  string `yaml:"text"`
	Limit int    `yaml:"limit,omitempty"`
}

// Assertion validates final session state.
type Assertion struct {
	// Type selects the assertion:
	//   - "entity_prop": entity's field equals value
	//   - "entity_missing": entity does not exist
	//   - "entity_count": total entity count
	//   - "relation_count": total relation count
	//   - "ledger_len": number of committed entries
	//   - "replay_matches": replaying the ledger reproduces the graph
	Type string `yaml:"type"`

	Entity string `yaml:"entity,omitempty"`
	Field  string `yaml:"field,omitempty"`
	Value  any    `yaml:"value,omitempty"`
	Count  int    `yaml:"count,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}

	// Resolve the world path against the scenario's directory.
	if s.World != "" && !filepath.IsAbs(s.World) {
		s.World = filepath.Join(filepath.Dir(path), s.World)
	}
	return &s, nil
}

// LoadScenarioDir loads every *.yaml scenario under dir, sorted by path.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob scenarios: %w", err)
	}

	var scenarios []*Scenario
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if (s.World == "") == (s.WorldSource == "") {
		return fmt.Errorf("exactly one of world or world_source is required")
	}
	for i, step := range s.Steps {
		n := 0
		if step.Commit != nil {
			n++
		}
		if step.Route != nil {
			n++
		}
		if step.Discover != nil {
			n++
		}
		if step.Query != nil {
			n++
		}
		if step.Search != nil {
			n++
		}
		if n != 1 {
			return fmt.Errorf("step %d: exactly one action is required, got %d", i, n)
		}
	}
	return nil
}
