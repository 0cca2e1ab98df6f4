// Package engine orchestrates the anonymization run: it walks a
// document, classifies leaves against the configured rules, applies the
// per-type transforms, and keeps the mapping store consistent and
// persisted so every run stays reversible.
package engine

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/mapping"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/transform"
)

// Mode selects how per-leaf transform failures are handled.
type Mode string

const (
	// ModeStrict aborts the whole run on the first per-leaf failure.
	ModeStrict Mode = "STRICT"

	// ModeLenient records the failure and leaves the original in place.
	ModeLenient Mode = "LENIENT"
)

// Valid reports whether m is a known failure mode.
func (m Mode) Valid() bool {
	return m == ModeStrict || m == ModeLenient
}

// Options is the resolved configuration an engine runs with.
type Options struct {
	// Rules is the ordered classification rule list.
	Rules []rules.Rule

	// Transforms configures the per-type transforms.
	Transforms transform.Options

	// Mode defaults to STRICT.
	Mode Mode

	// Persister supplies durable mapping state. Nil means in-memory
	// only: reversal is then limited to this engine instance.
	Persister mapping.Persister

	// Logger receives fire-and-forget progress events. Nil discards.
	Logger *slog.Logger
}

// Engine owns one mapping store across sequential document runs. It is
// not safe for concurrent use: callers sharing a persisted mapping must
// serialize runs.
type Engine struct {
	classifier *rules.Classifier
	registry   *transform.Registry
	mode       Mode
	persister  mapping.Persister
	log        *slog.Logger

	store *mapping.Store // lazily loaded on first run
}

// New validates the configuration and builds an engine. Pattern or
// option errors fail here with INVALID_CONFIGURATION, before any
// document is touched.
func New(opts Options) (*Engine, error) {
	if opts.Mode == "" {
		opts.Mode = ModeStrict
	}
	if !opts.Mode.Valid() {
		return nil, newConfigError(fmt.Sprintf("unknown failure mode %q", opts.Mode), nil)
	}

	classifier, err := rules.Compile(opts.Rules)
	if err != nil {
		return nil, newConfigError("invalid classification rules", err)
	}

	registry, err := transform.NewRegistry(opts.Transforms)
	if err != nil {
		return nil, newConfigError("invalid transform options", err)
	}

	hasDateRule := false
	for _, r := range opts.Rules {
		if r.Type == rules.TypeDate {
			hasDateRule = true
			break
		}
	}
	if hasDateRule {
		if _, err := registry.InversePattern(); err != nil {
			return nil, newConfigError("DATE rules configured but no date patterns", err)
		}
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		classifier: classifier,
		registry:   registry,
		mode:       opts.Mode,
		persister:  opts.Persister,
		log:        log,
	}, nil
}

// newRunID mints a run correlation ID for reports and log events.
func newRunID() string {
	return uuid.New().String()
}

// Store exposes the engine's mapping store. Nil until the first run or
// reversal has loaded it.
func (e *Engine) Store() *mapping.Store {
	return e.store
}

// ensureLoaded loads durable mapping state on first use. An absent
// backend yields an empty store; malformed state fails the run.
func (e *Engine) ensureLoaded() error {
	if e.store != nil {
		return nil
	}
	if e.persister == nil {
		e.store = mapping.NewStore()
		return nil
	}
	store, err := e.persister.Load()
	if err != nil {
		return err
	}
	e.log.Debug("mapping store loaded", "entries", store.Len())
	e.store = store
	return nil
}

// Run anonymizes one document. The input tree is never mutated; the
// returned tree has identical shape with classified leaves replaced.
//
// On a persistence failure the transformed document is still returned,
// but the report is flagged FAILED and the error carries
// PERSISTENCE_FAILED: the caller must not assume reversibility.
func (e *Engine) Run(doc document.Value) (document.Value, *Report, error) {
	report := &Report{RunID: newRunID(), State: StateInit}
	e.log.Info("run started", "run_id", report.RunID, "mode", string(e.mode))

	report.State = StateLoading
	if err := e.ensureLoaded(); err != nil {
		report.State = StateFailed
		return nil, report, err
	}
	entriesBefore := e.store.Len()

	report.State = StateTransforming
	out, err := document.Walk(doc, func(path document.Path, leaf document.Value) (document.Value, error) {
		return e.visitLeaf(path, leaf, report)
	})
	if err != nil {
		report.State = StateFailed
		report.NewEntries = e.store.Len() - entriesBefore
		return nil, report, err
	}
	report.NewEntries = e.store.Len() - entriesBefore

	report.State = StatePersisting
	if e.persister != nil {
		if err := e.persister.Save(e.store); err != nil {
			report.State = StateFailed
			e.log.Error("mapping store save failed", "run_id", report.RunID, "error", err)
			return out, report, &RunError{
				Code:    CodePersistenceFailed,
				Message: "mapping store save failed; output is not reversible",
				Err:     err,
			}
		}
	}

	report.State = StateDone
	e.log.Info("run finished",
		"run_id", report.RunID,
		"transformed", report.Transformed,
		"new_entries", report.NewEntries,
		"skipped", report.SkippedCount(),
	)
	return out, report, nil
}

// visitLeaf applies the transform for a classified leaf, honoring the
// failure mode for per-leaf errors.
func (e *Engine) visitLeaf(path document.Path, leaf document.Value, report *Report) (document.Value, error) {
	typ, matched := e.classifier.Classify(path)
	if !matched {
		return leaf, nil
	}

	// Null carries no sensitive content in any type slot.
	if _, isNull := leaf.(document.Null); isNull {
		return leaf, nil
	}

	out, err := e.transformLeaf(typ, path, leaf, report)
	if err == nil {
		report.Transformed++
		return out, nil
	}

	issue := LeafIssue{
		Path:    path.String(),
		Type:    typ,
		Code:    CodeOf(err),
		Message: err.Error(),
	}
	if e.mode == ModeStrict {
		report.addIssue(issue)
		return nil, newLeafError(issue.Code, issue.Path, issue.Message, err)
	}

	issue.Skipped = true
	report.addIssue(issue)
	e.log.Warn("leaf skipped", "path", issue.Path, "code", string(issue.Code))
	return leaf, nil
}

func (e *Engine) transformLeaf(typ rules.SemanticType, path document.Path, leaf document.Value, report *Report) (document.Value, error) {
	switch typ {
	case rules.TypeDate:
		text, ok := leaf.(document.String)
		if !ok {
			return nil, &transform.DateFormatError{Value: fmt.Sprintf("%v", leaf)}
		}
		epoch, pattern, err := e.registry.ParseDate(string(text))
		if err != nil {
			return nil, err
		}
		if err := e.store.RecordDate(typ, text, pattern, epoch); err != nil {
			return nil, err
		}
		return document.Int(epoch), nil

	case rules.TypeName, rules.TypeIdentifier:
		token, err := e.store.LookupOrCreate(typ, leaf, e.registry.TokenPrefix(typ))
		if err != nil {
			return nil, err
		}
		return document.String(token), nil

	case rules.TypeFreeform:
		text, err := document.ScalarString(leaf)
		if err != nil {
			return nil, err
		}
		report.Redacted = append(report.Redacted, path.String())
		return document.String(e.registry.Redact(text)), nil

	default:
		return nil, fmt.Errorf("unhandled semantic type %q", typ)
	}
}
