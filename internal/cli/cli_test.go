package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const testWorld = `
world: {
	name: "vale"
	entities: {
		"region.vale": {
			type: "region"
			name: "Greenvale"
			props: {
				meters_per_unit: 15
			}
		}
		"region.mistwood": {
			type: "region"
			name: "Mistwood"
			props: {
				grid_x:  0
				grid_y:  0
				terrain: "forest"
			}
		}
		"village.brook": {
			type: "village"
			name: "Brookhollow"
			props: {
				grid_x: 40
				grid_y: 30
			}
		}
		"char.mira": {
			type: "character"
			name: "Mira"
			props: {
				stamina: 80
				health:  100
			}
			discovered_by: ["char.mira"]
		}
	}
	relations: [
		{
			id:   "rel.mistwood-in-vale"
			type: "contained_in"
			from: "region.mistwood"
			to:   "region.vale"
		},
		{
			id:   "rel.brook-in-vale"
			type: "contained_in"
			from: "village.brook"
			to:   "region.vale"
		},
		{
			id:   "rel.mira-loc"
			type: "located_in"
			from: "char.mira"
			to:   "village.brook"
		},
	]
}
`

// writeWorld drops the shared test world into a temp dir and returns its path.
func writeWorld(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.cue")
	require.NoError(t, os.WriteFile(path, []byte(testWorld), 0o644))
	return path
}

func writeFileT(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// seededDB seeds a fresh database from the shared test world and returns
// its path.
func seededDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "canon.db")
	opts := &RootOptions{Format: "text", DBPath: db}
	cmd := NewSeedCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{writeWorld(t)})
	require.NoError(t, cmd.Execute())
	return db
}

// run executes a command constructor against a database and returns the
// combined output and error.
func run(t *testing.T, db string, build func(*RootOptions) *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts := &RootOptions{Format: "text", DBPath: db}
	cmd := build(opts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
