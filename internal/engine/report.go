package engine

import (
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
)

// State is the engine's position in its run lifecycle.
type State string

const (
	StateInit         State = "INIT"
	StateLoading      State = "LOADING_MAPPING"
	StateTransforming State = "TRANSFORMING"
	StatePersisting   State = "PERSISTING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// LeafIssue records one per-leaf failure or irreversibility notice.
type LeafIssue struct {
	Path    string             `json:"path"`
	Type    rules.SemanticType `json:"semantic_type"`
	Code    ErrorCode          `json:"code"`
	Message string             `json:"message"`
	Skipped bool               `json:"skipped"` // true when LENIENT left the original in place
}

// Report summarizes one anonymization or reversal run. Per-leaf errors
// are always collected, even when the run aborts, so a STRICT failure
// still names the leaf that triggered it. Redacted leaves are listed
// explicitly: their irreversibility is never implied silently.
type Report struct {
	RunID       string      `json:"run_id"`
	State       State       `json:"state"`
	Transformed int         `json:"transformed"` // leaves replaced
	Redacted    []string    `json:"redacted,omitempty"`
	Issues      []LeafIssue `json:"issues,omitempty"`
	NewEntries  int         `json:"new_entries"` // mapping entries minted this run
}

// Failed reports whether the run ended in FAILED.
func (r *Report) Failed() bool {
	return r.State == StateFailed
}

// SkippedCount returns the number of leaves LENIENT mode left unchanged.
func (r *Report) SkippedCount() int {
	n := 0
	for _, iss := range r.Issues {
		if iss.Skipped {
			n++
		}
	}
	return n
}

func (r *Report) addIssue(iss LeafIssue) {
	r.Issues = append(r.Issues, iss)
}
