package engine

import (
	"errors"
	"fmt"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/mapping"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/transform"
)

// ErrorCode categorizes run errors.
type ErrorCode string

const (
	// CodeInvalidConfiguration: rules or transform options failed
	// validation. Fatal before any transformation.
	CodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"

	// CodeCorruptMappingData: durable mapping state could not be decoded.
	CodeCorruptMappingData ErrorCode = "CORRUPT_MAPPING_DATA"

	// CodeDuplicateMappingEntry: durable state violates the bijection.
	CodeDuplicateMappingEntry ErrorCode = "DUPLICATE_MAPPING_ENTRY"

	// CodeUnrecognizedDateFormat: a DATE leaf matched no configured
	// pattern. Per-leaf; fatal only in STRICT mode.
	CodeUnrecognizedDateFormat ErrorCode = "UNRECOGNIZED_DATE_FORMAT"

	// CodeValueNotRecoverable: reversal reached an irreversibly redacted
	// leaf. Per-leaf, never aborts the reversal.
	CodeValueNotRecoverable ErrorCode = "VALUE_NOT_RECOVERABLE"

	// CodeUnsupportedStructure: the document contains a cycle.
	CodeUnsupportedStructure ErrorCode = "UNSUPPORTED_STRUCTURE"

	// CodeTokenNotFound: reversal met a token this store never minted.
	// Per-leaf, never aborts the reversal.
	CodeTokenNotFound ErrorCode = "TOKEN_NOT_FOUND"

	// CodePersistenceFailed: the transformed document was produced but
	// the mapping store could not be saved, so reversibility is not
	// guaranteed.
	CodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
)

// RunError is an error detected during an engine run, carrying the
// category code and, for per-leaf failures, the leaf's path.
type RunError struct {
	Code    ErrorCode
	Message string
	Path    string // dotted leaf path for per-leaf errors
	Err     error
}

func (e *RunError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the error code from an error chain. Errors that did
// not originate as RunErrors are classified by their concrete type.
func CodeOf(err error) ErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	var dfe *transform.DateFormatError
	if errors.As(err, &dfe) {
		return CodeUnrecognizedDateFormat
	}
	var corrupt *mapping.CorruptDataError
	if errors.As(err, &corrupt) {
		return CodeCorruptMappingData
	}
	var dup *mapping.DuplicateEntryError
	if errors.As(err, &dup) {
		return CodeDuplicateMappingEntry
	}
	var notFound *mapping.TokenNotFoundError
	if errors.As(err, &notFound) {
		return CodeTokenNotFound
	}
	var cycle *document.CycleError
	if errors.As(err, &cycle) {
		return CodeUnsupportedStructure
	}
	return ""
}

// IsInvalidConfiguration reports whether err is a configuration error.
func IsInvalidConfiguration(err error) bool {
	return CodeOf(err) == CodeInvalidConfiguration
}

// IsPersistenceFailure reports whether err means the mapping save failed
// after a successful transformation.
func IsPersistenceFailure(err error) bool {
	return CodeOf(err) == CodePersistenceFailed
}

func newConfigError(message string, err error) *RunError {
	return &RunError{Code: CodeInvalidConfiguration, Message: message, Err: err}
}

func newLeafError(code ErrorCode, path, message string, err error) *RunError {
	return &RunError{Code: code, Message: message, Path: path, Err: err}
}
