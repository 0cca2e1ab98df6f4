package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/mapping"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/transform"
)

func defaultOptions() Options {
	return Options{
		Rules: []rules.Rule{
			{Pattern: "user.name", Type: rules.TypeName},
			{Pattern: "user.signup", Type: rules.TypeDate},
		},
		Transforms: transform.Options{
			DatePatterns: []string{"2006-01-02"},
		},
	}
}

func mustDecode(t *testing.T, raw string) document.Value {
	t.Helper()
	doc, err := document.DecodeJSON([]byte(raw))
	require.NoError(t, err)
	return doc
}

func encode(t *testing.T, doc document.Value) string {
	t.Helper()
	data, err := document.EncodeJSON(doc)
	require.NoError(t, err)
	return string(data)
}

func TestRunBasicExample(t *testing.T) {
	eng, err := New(defaultOptions())
	require.NoError(t, err)

	doc := mustDecode(t, `{"user":{"name":"Alice","signup":"2023-01-15"}}`)
	out, report, err := eng.Run(doc)
	require.NoError(t, err)

	assert.Equal(t, `{"user":{"name":"NAME-1","signup":1673740800}}`, encode(t, out))
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 2, report.Transformed)
	assert.NotEmpty(t, report.RunID)

	orig, err := eng.Store().ReverseLookup(rules.TypeName, "NAME-1")
	require.NoError(t, err)
	assert.Equal(t, document.String("Alice"), orig)
}

func TestRunReferentialConsistencyAcrossDocuments(t *testing.T) {
	eng, err := New(defaultOptions())
	require.NoError(t, err)

	first := mustDecode(t, `{"user":{"name":"Alice"}}`)
	_, _, err = eng.Run(first)
	require.NoError(t, err)

	second := mustDecode(t, `{"user":{"name":"Alice"}}`)
	out, _, err := eng.Run(second)
	require.NoError(t, err)

	assert.Equal(t, `{"user":{"name":"NAME-1"}}`, encode(t, out), "same value must reuse the same token, not mint NAME-2")
}

func TestRunStructuralFidelity(t *testing.T) {
	opts := defaultOptions()
	opts.Rules = append(opts.Rules, rules.Rule{Pattern: "items[].id", Type: rules.TypeIdentifier})
	eng, err := New(opts)
	require.NoError(t, err)

	raw := `{"z_first":true,"user":{"signup":"2023-01-15","name":"Bo"},"items":[{"id":"a1","qty":2}],"a_last":null}`
	out, _, err := eng.Run(mustDecode(t, raw))
	require.NoError(t, err)

	assert.Equal(t,
		`{"z_first":true,"user":{"signup":1673740800,"name":"NAME-1"},"items":[{"id":"IDENTIFIER-1","qty":2}],"a_last":null}`,
		encode(t, out),
		"key order, key set, and container types must be untouched")
}

func TestRunStrictAbortsOnBadDate(t *testing.T) {
	eng, err := New(defaultOptions())
	require.NoError(t, err)

	_, report, err := eng.Run(mustDecode(t, `{"user":{"name":"Alice","signup":"not-a-date"}}`))
	require.Error(t, err)
	assert.Equal(t, CodeUnrecognizedDateFormat, CodeOf(err))
	assert.Equal(t, StateFailed, report.State)

	require.Len(t, report.Issues, 1, "a STRICT failure still reports which leaf triggered it")
	assert.Equal(t, "user.signup", report.Issues[0].Path)
}

func TestRunLenientSkipsBadDate(t *testing.T) {
	opts := defaultOptions()
	opts.Mode = ModeLenient
	eng, err := New(opts)
	require.NoError(t, err)

	out, report, err := eng.Run(mustDecode(t, `{"user":{"name":"Alice","signup":"not-a-date"}}`))
	require.NoError(t, err)

	assert.Equal(t, `{"user":{"name":"NAME-1","signup":"not-a-date"}}`, encode(t, out))
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 1, report.SkippedCount())
	assert.Equal(t, CodeUnrecognizedDateFormat, report.Issues[0].Code)
}

func TestRunRedactionIsReportedAndNotStored(t *testing.T) {
	opts := defaultOptions()
	opts.Rules = []rules.Rule{{Pattern: "card", Type: rules.TypeFreeform}}
	opts.Transforms.Redact = transform.RedactMaskDigits
	eng, err := New(opts)
	require.NoError(t, err)

	out, report, err := eng.Run(mustDecode(t, `{"card":"4111-1111"}`))
	require.NoError(t, err)

	assert.Equal(t, `{"card":"####-####"}`, encode(t, out))
	assert.Equal(t, []string{"card"}, report.Redacted)
	assert.Equal(t, 0, eng.Store().Len(), "redacted values must never enter the mapping store")
}

func TestRunNullLeafPassesThrough(t *testing.T) {
	eng, err := New(defaultOptions())
	require.NoError(t, err)

	out, report, err := eng.Run(mustDecode(t, `{"user":{"name":null}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"user":{"name":null}}`, encode(t, out))
	assert.Equal(t, 0, report.Transformed)
}

func TestRunTokenizesNonStringScalars(t *testing.T) {
	opts := defaultOptions()
	opts.Rules = []rules.Rule{{Pattern: "account", Type: rules.TypeIdentifier}}
	eng, err := New(opts)
	require.NoError(t, err)

	out, _, err := eng.Run(mustDecode(t, `{"account":4211970}`))
	require.NoError(t, err)
	assert.Equal(t, `{"account":"IDENTIFIER-1"}`, encode(t, out))

	orig, err := eng.Store().ReverseLookup(rules.TypeIdentifier, "IDENTIFIER-1")
	require.NoError(t, err)
	assert.Equal(t, document.Int(4211970), orig, "numeric originals round-trip typed")
}

func TestRunRejectsCyclicDocument(t *testing.T) {
	eng, err := New(defaultOptions())
	require.NoError(t, err)

	cyclic := document.NewObject()
	cyclic.Set("self", cyclic)

	_, report, err := eng.Run(cyclic)
	require.Error(t, err)
	assert.Equal(t, CodeUnsupportedStructure, CodeOf(err))
	assert.Equal(t, StateFailed, report.State)
}

func TestRunIdempotentWithPersistedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	raw := `{"user":{"name":"Alice","signup":"2023-01-15"}}`

	var outputs []string
	var entryCounts []int
	for i := 0; i < 2; i++ {
		opts := defaultOptions()
		opts.Persister = &mapping.FilePersister{Path: path}
		eng, err := New(opts)
		require.NoError(t, err)

		out, report, err := eng.Run(mustDecode(t, raw))
		require.NoError(t, err)
		outputs = append(outputs, encode(t, out))
		entryCounts = append(entryCounts, eng.Store().Len())
		if i == 1 {
			assert.Equal(t, 0, report.NewEntries, "second run must mint nothing")
		}
	}

	assert.Equal(t, outputs[0], outputs[1], "re-running with the persisted store must be byte-identical")
	assert.Equal(t, entryCounts[0], entryCounts[1])
}

func TestRunLoadsCorruptMappingFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	opts := defaultOptions()
	opts.Persister = &mapping.FilePersister{Path: path}
	eng, err := New(opts)
	require.NoError(t, err)

	_, report, err := eng.Run(mustDecode(t, `{"user":{"name":"A"}}`))
	require.Error(t, err)
	assert.Equal(t, CodeCorruptMappingData, CodeOf(err))
	assert.Equal(t, StateFailed, report.State)
}

func TestRunPersistenceFailureStillReturnsDocument(t *testing.T) {
	opts := defaultOptions()
	opts.Persister = &failingPersister{}
	eng, err := New(opts)
	require.NoError(t, err)

	out, report, err := eng.Run(mustDecode(t, `{"user":{"name":"Alice"}}`))
	require.Error(t, err)
	assert.True(t, IsPersistenceFailure(err))
	assert.Equal(t, StateFailed, report.State)
	require.NotNil(t, out, "transformed document is still returned")
	assert.Equal(t, `{"user":{"name":"NAME-1"}}`, encode(t, out))
}

func TestNewInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no_rules", Options{}},
		{"bad_pattern", Options{Rules: []rules.Rule{{Pattern: "a..b", Type: rules.TypeName}}}},
		{"unknown_type", Options{Rules: []rules.Rule{{Pattern: "a", Type: "EMAIL"}}}},
		{"bad_mode", Options{
			Rules: []rules.Rule{{Pattern: "a", Type: rules.TypeName}},
			Mode:  "CASUAL",
		}},
		{"date_rule_without_patterns", Options{
			Rules: []rules.Rule{{Pattern: "a", Type: rules.TypeDate}},
		}},
		{"bad_redact_policy", Options{
			Rules:      []rules.Rule{{Pattern: "a", Type: rules.TypeName}},
			Transforms: transform.Options{Redact: "scramble"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			require.Error(t, err)
			assert.True(t, IsInvalidConfiguration(err), "got %v", err)
		})
	}
}

// failingPersister loads empty and refuses to save.
type failingPersister struct{}

func (p *failingPersister) Load() (*mapping.Store, error) { return mapping.NewStore(), nil }
func (p *failingPersister) Save(*mapping.Store) error     { return errors.New("disk full") }
