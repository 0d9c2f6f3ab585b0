package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ashgale/canon/internal/canon"
)

// patchFileSchema validates the shape of a patch batch before any patch
// is interpreted against the graph.
const patchFileSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["proposer", "patches"],
  "additionalProperties": false,
  "properties": {
    "proposer": {"type": "string", "minLength": 1},
    "patches": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["op", "entity"],
        "additionalProperties": false,
        "properties": {
          "op": {
            "enum": [
              "create_entity", "delete_entity",
              "create_relation", "delete_relation",
              "add", "remove", "set", "replace", "increment", "decrement"
            ]
          },
          "entity": {"type": "string", "minLength": 1},
          "field": {"type": "string"},
          "value": {},
          "proposer": {"type": "string"},
          "tick": {"type": "integer"},
          "meta": {"type": "object"}
        }
      }
    }
  }
}`

var compiledPatchSchema = jsonschema.MustCompileString("patchfile.json", patchFileSchema)

// patchFile is a batch of patches as authored on disk.
type patchFile struct {
	Proposer string         `json:"proposer"`
	Patches  canon.PatchSet `json:"patches"`
}

// NewApplyCommand submits a patch batch from a file to the session.
func NewApplyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <patches.json|patches.yaml>",
		Short: "Apply a patch batch to the session",
		Long: `Apply reads a batch of patches from a JSON or YAML file, validates
it against the current graph, and commits it as one atomic ledger
entry. A batch with any invalid patch is rejected whole and the
command exits non-zero with the itemized issues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, opts)

			pf, err := readPatchFile(args[0])
			if err != nil {
				return err
			}

			state, err := openSession(opts.DBPath, true)
			if err != nil {
				return err
			}
			defer state.close()

			tick := state.session.AdvanceTick()
			result, err := state.session.Submit(pf.Patches, pf.Proposer)
			if err != nil {
				var batch *canon.BatchError
				if errors.As(err, &batch) {
					return rejectionError(out, batch)
				}
				return WrapExitError(ExitCommandError, "commit batch", err)
			}

			if err := state.save(cmd.Context()); err != nil {
				return err
			}

			out.VerboseLog("committed %d patches at tick %d", len(pf.Patches), tick)
			return out.Successf(map[string]any{
				"entry_id":   result.Entry.ID,
				"token":      result.Entry.Token,
				"tick":       tick,
				"patches":    len(pf.Patches),
				"graph_hash": result.Entry.GraphHash,
			}, "committed entry %s at tick %d (%d patches)",
				result.Entry.ID, tick, len(pf.Patches))
		},
	}
	return cmd
}

// readPatchFile loads a patch batch from disk. YAML files are converted
// to JSON so both formats pass through the same schema check.
func readPatchFile(path string) (*patchFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("read %s", path), err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("parse %s", path), err)
		}
		raw, err = json.Marshal(doc)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("convert %s", path), err)
		}
	case ".json":
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("unsupported patch file extension %q", ext))
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("parse %s", path), err)
	}
	if err := compiledPatchSchema.Validate(doc); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid patch file %s", path), err)
	}

	var pf patchFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("decode %s", path), err)
	}
	return &pf, nil
}
