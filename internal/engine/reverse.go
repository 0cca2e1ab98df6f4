package engine

import (
	"fmt"
	"strconv"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/mapping"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/transform"
)

// Reverse de-anonymizes a transformed document using the loaded mapping
// store. The walk is structurally symmetric to Run, but per-leaf
// failures never abort the document: unknown tokens (TOKEN_NOT_FOUND)
// and redacted leaves (VALUE_NOT_RECOVERABLE) are recorded in the report
// and the leaf is left as-is. Partial reversal is a valid, reported
// outcome.
func (e *Engine) Reverse(doc document.Value) (document.Value, *Report, error) {
	report := &Report{RunID: newRunID(), State: StateLoading}
	e.log.Info("reversal started", "run_id", report.RunID)

	if err := e.ensureLoaded(); err != nil {
		report.State = StateFailed
		return nil, report, err
	}

	report.State = StateTransforming
	out, err := document.Walk(doc, func(path document.Path, leaf document.Value) (document.Value, error) {
		return e.reverseLeaf(path, leaf, report)
	})
	if err != nil {
		// Only structural failures (cycles) reach here.
		report.State = StateFailed
		return nil, report, err
	}

	report.State = StateDone
	e.log.Info("reversal finished",
		"run_id", report.RunID,
		"restored", report.Transformed,
		"unrecoverable", len(report.Issues),
	)
	return out, report, nil
}

func (e *Engine) reverseLeaf(path document.Path, leaf document.Value, report *Report) (document.Value, error) {
	typ, matched := e.classifier.Classify(path)
	if !matched {
		return leaf, nil
	}
	if _, isNull := leaf.(document.Null); isNull {
		return leaf, nil
	}

	switch typ {
	case rules.TypeDate:
		return e.reverseDate(path, leaf, report)

	case rules.TypeName, rules.TypeIdentifier:
		token, ok := leaf.(document.String)
		if !ok {
			report.addIssue(LeafIssue{
				Path:    path.String(),
				Type:    typ,
				Code:    CodeTokenNotFound,
				Message: fmt.Sprintf("leaf is not a token: %v", leaf),
				Skipped: true,
			})
			return leaf, nil
		}
		original, err := e.store.ReverseLookup(typ, string(token))
		if err != nil {
			report.addIssue(LeafIssue{
				Path:    path.String(),
				Type:    typ,
				Code:    CodeOf(err),
				Message: err.Error(),
				Skipped: true,
			})
			return leaf, nil
		}
		report.Transformed++
		return original, nil

	case rules.TypeFreeform:
		// Redaction retains no original, so these leaves can never
		// be restored.
		report.addIssue(LeafIssue{
			Path:    path.String(),
			Type:    typ,
			Code:    CodeValueNotRecoverable,
			Message: "leaf was irreversibly redacted",
			Skipped: true,
		})
		return leaf, nil

	default:
		return leaf, nil
	}
}

// reverseDate restores a DATE leaf. The mapping store entry recorded by
// the forward run gives the exact original text; without one (e.g. a
// store from another tool version) the epoch is formatted with the
// first configured pattern. The epoch arrives as an Int in JSON
// documents and as a decimal String in delimited ones, where every
// cell is text.
func (e *Engine) reverseDate(path document.Path, leaf document.Value, report *Report) (document.Value, error) {
	var epoch int64
	switch v := leaf.(type) {
	case document.Int:
		epoch = int64(v)
	case document.String:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			report.addIssue(LeafIssue{
				Path:    path.String(),
				Type:    rules.TypeDate,
				Code:    CodeValueNotRecoverable,
				Message: fmt.Sprintf("DATE leaf is not an epoch: %v", leaf),
				Skipped: true,
			})
			return leaf, nil
		}
		epoch = n
	default:
		report.addIssue(LeafIssue{
			Path:    path.String(),
			Type:    rules.TypeDate,
			Code:    CodeValueNotRecoverable,
			Message: fmt.Sprintf("DATE leaf is not an epoch: %v", leaf),
			Skipped: true,
		})
		return leaf, nil
	}

	token := strconv.FormatInt(epoch, 10)
	if original, err := e.store.ReverseLookup(rules.TypeDate, token); err == nil {
		report.Transformed++
		return original, nil
	} else if _, isNotFound := err.(*mapping.TokenNotFoundError); !isNotFound {
		report.addIssue(LeafIssue{
			Path:    path.String(),
			Type:    rules.TypeDate,
			Code:    CodeOf(err),
			Message: err.Error(),
			Skipped: true,
		})
		return leaf, nil
	}

	pattern, err := e.registry.InversePattern()
	if err != nil {
		report.addIssue(LeafIssue{
			Path:    path.String(),
			Type:    rules.TypeDate,
			Code:    CodeValueNotRecoverable,
			Message: "no mapping entry and no date pattern to format with",
			Skipped: true,
		})
		return leaf, nil
	}
	report.Transformed++
	return document.String(transform.FormatDate(epoch, pattern)), nil
}
