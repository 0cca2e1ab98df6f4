package mapping

import (
	"fmt"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
)

// CorruptDataError reports durable mapping state that cannot be decoded.
type CorruptDataError struct {
	Source string // file path or backend description
	Reason string
	Err    error
}

func (e *CorruptDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt mapping data in %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt mapping data in %s: %s", e.Source, e.Reason)
}

func (e *CorruptDataError) Unwrap() error {
	return e.Err
}

// DuplicateEntryError reports durable state violating the bijection
// invariant: two entries sharing an original value or a token within one
// semantic type.
type DuplicateEntryError struct {
	Type     rules.SemanticType
	Original string
	Token    string
}

func (e *DuplicateEntryError) Error() string {
	if e.Original != "" {
		return fmt.Sprintf("duplicate mapping entry: original %q already mapped under %s", e.Original, e.Type)
	}
	return fmt.Sprintf("duplicate mapping entry: token %q already assigned under %s", e.Token, e.Type)
}

// TokenNotFoundError reports a reverse lookup for a token this store
// never generated (or one produced by an irreversible transform).
type TokenNotFoundError struct {
	Type  rules.SemanticType
	Token string
}

func (e *TokenNotFoundError) Error() string {
	return fmt.Sprintf("token not found: %q under %s", e.Token, e.Type)
}
