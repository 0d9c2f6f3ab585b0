package canon

import (
	"fmt"
	"strings"
)

// IssueCode categorizes why a patch failed validation.
type IssueCode string

const (
	// CodeMalformed indicates a patch with a bad shape (unknown op, missing
	// required fields for its op).
	CodeMalformed IssueCode = "MALFORMED"

	// CodeMissingEntity indicates a mutating patch whose target entity does
	// not exist at the patch's position in the batch.
	CodeMissingEntity IssueCode = "MISSING_ENTITY"

	// CodeDuplicateID indicates a create colliding with an existing id.
	CodeDuplicateID IssueCode = "DUPLICATE_ID"

	// CodeMissingEndpoint indicates a create_relation endpoint that does
	// not exist.
	CodeMissingEndpoint IssueCode = "MISSING_ENDPOINT"

	// CodeFieldConflict indicates an add on an existing field or a replace
	// on a missing one.
	CodeFieldConflict IssueCode = "FIELD_CONFLICT"

	// CodeTypeMismatch indicates a value of the wrong kind for the op
	// (non-numeric increment target, non-map create payload).
	CodeTypeMismatch IssueCode = "TYPE_MISMATCH"

	// CodeUnknownType indicates a create whose entity/relation type is not
	// admitted by the registry.
	CodeUnknownType IssueCode = "UNKNOWN_TYPE"

	// CodeValidatorRejected indicates a registry validator hook vetoed the
	// patch.
	CodeValidatorRejected IssueCode = "VALIDATOR_REJECTED"
)

// PatchIssue describes one failed patch within a rejected batch.
type PatchIssue struct {
	Index  int       `json:"index"`
	Code   IssueCode `json:"code"`
	Reason string    `json:"reason"`
}

func (i PatchIssue) String() string {
	return fmt.Sprintf("patch[%d] %s: %s", i.Index, i.Code, i.Reason)
}

// BatchError rejects an entire patch set. Nothing was applied; the caller's
// graph and ledger are unchanged. This is an expected validation outcome,
// carried as an error value, never a panic.
type BatchError struct {
	Issues []PatchIssue
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("patch set rejected: %s", e.Issues[0])
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "patch set rejected (%d issues):", len(e.Issues))
	for _, i := range e.Issues {
		sb.WriteString("\n  ")
		sb.WriteString(i.String())
	}
	return sb.String()
}
