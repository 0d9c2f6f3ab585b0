package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedCreatesSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "canon.db")
	out, err := run(t, db, NewSeedCommand, writeWorld(t))
	require.NoError(t, err)
	assert.Contains(t, out, `seeded world "vale"`)
	assert.FileExists(t, db)
}

func TestSeedJSONEnvelope(t *testing.T) {
	db := filepath.Join(t.TempDir(), "canon.db")
	buf := &bytes.Buffer{}
	opts := &RootOptions{Format: "json", DBPath: db}
	cmd := NewSeedCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{writeWorld(t)})
	require.NoError(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "vale", data["world"])
	assert.NotEmpty(t, data["entry_id"])
	assert.NotEmpty(t, data["token"])
	assert.NotEmpty(t, data["graph_hash"])
}

func TestSeedRefusesExistingSession(t *testing.T) {
	db := seededDB(t)
	_, err := run(t, db, NewSeedCommand, writeWorld(t))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--force")
}

func TestSeedForceReplacesSession(t *testing.T) {
	db := seededDB(t)
	out, err := run(t, db, NewSeedCommand, "--force", writeWorld(t))
	require.NoError(t, err)
	assert.Contains(t, out, "seeded world")

	logOut, err := run(t, db, NewLogCommand)
	require.NoError(t, err)
	assert.Contains(t, logOut, "tick 0")
}

func TestSeedInvalidWorld(t *testing.T) {
	db := filepath.Join(t.TempDir(), "canon.db")
	path := filepath.Join(t.TempDir(), "bad.cue")
	writeFileT(t, path, "world: {entities: {}}")

	_, err := run(t, db, NewSeedCommand, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
