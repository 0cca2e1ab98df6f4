package mapping

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
)

func populatedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()

	_, err := s.LookupOrCreate(rules.TypeName, document.String("Alice"), "NAME")
	require.NoError(t, err)
	_, err = s.LookupOrCreate(rules.TypeName, document.String("Bob"), "NAME")
	require.NoError(t, err)
	_, err = s.LookupOrCreate(rules.TypeIdentifier, document.Int(9007199254740993), "ID")
	require.NoError(t, err)
	_, err = s.LookupOrCreate(rules.TypeIdentifier, document.Float(0.5), "ID")
	require.NoError(t, err)
	_, err = s.LookupOrCreate(rules.TypeIdentifier, document.Bool(true), "ID")
	require.NoError(t, err)
	require.NoError(t, s.RecordDate(rules.TypeDate, "2023-01-15", "2006-01-02", 1673740800))

	return s
}

func assertStoresEqual(t *testing.T, want, got *Store) {
	t.Helper()
	require.Equal(t, want.Len(), got.Len())
	require.Equal(t, want.Entries(), got.Entries())
	for _, typ := range rules.KnownTypes {
		assert.Equal(t, want.Counter(typ), got.Counter(typ), "counter for %s", typ)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := populatedStore(t)

	data, err := MarshalSnapshot(s)
	require.NoError(t, err)

	loaded, err := UnmarshalSnapshot(data, "test")
	require.NoError(t, err)
	assertStoresEqual(t, s, loaded)
}

func TestSnapshotKeepsDateTextWithZoneOffset(t *testing.T) {
	s := NewStore()
	// 2023-01-15T10:00:00+05:00 is 05:00 UTC.
	original := "2023-01-15T10:00:00+05:00"
	require.NoError(t, s.RecordDate(rules.TypeDate, document.String(original), time.RFC3339, 1673758800))

	data, err := MarshalSnapshot(s)
	require.NoError(t, err)

	loaded, err := UnmarshalSnapshot(data, "test")
	require.NoError(t, err)

	got, err := loaded.ReverseLookup(rules.TypeDate, "1673758800")
	require.NoError(t, err)
	assert.Equal(t, document.String(original), got)
}

func TestUnmarshalSnapshotCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not_json", `{{{`},
		{"wrong_version", `{"version":99,"entries":[]}`},
		{"unknown_type", `{"version":1,"entries":[{"type":"EMAIL","original":{"kind":"string","value":"x"},"token":"T-1"}]}`},
		{"unknown_kind", `{"version":1,"entries":[{"type":"NAME","original":{"kind":"blob","value":"x"},"token":"T-1"}]}`},
		{"bad_int", `{"version":1,"entries":[{"type":"IDENTIFIER","original":{"kind":"int","value":"abc"},"token":"ID-1"}]}`},
		{"empty_token", `{"version":1,"entries":[{"type":"NAME","original":{"kind":"string","value":"x"},"token":""}]}`},
		{"date_without_pattern", `{"version":1,"entries":[{"type":"DATE","original":{"kind":"date","value":"2023-01-15"},"token":"1673740800"}]}`},
		{"date_token_not_epoch", `{"version":1,"entries":[{"type":"DATE","original":{"kind":"date","value":"2023-01-15","pattern":"2006-01-02"},"token":"DATE-1"}]}`},
		{"date_text_layout_mismatch", `{"version":1,"entries":[{"type":"DATE","original":{"kind":"date","value":"15/01/2023","pattern":"2006-01-02"},"token":"1673740800"}]}`},
		{"date_text_epoch_mismatch", `{"version":1,"entries":[{"type":"DATE","original":{"kind":"date","value":"2023-01-16","pattern":"2006-01-02"},"token":"1673740800"}]}`},
		{"bad_counter_type", `{"version":1,"entries":[],"counters":{"EMAIL":3}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalSnapshot([]byte(tt.data), "test")
			require.Error(t, err)

			var corrupt *CorruptDataError
			assert.ErrorAs(t, err, &corrupt)
		})
	}
}

func TestUnmarshalSnapshotDuplicateOriginal(t *testing.T) {
	data := `{"version":1,"entries":[
		{"type":"NAME","original":{"kind":"string","value":"Alice"},"token":"NAME-1"},
		{"type":"NAME","original":{"kind":"string","value":"Alice"},"token":"NAME-2"}
	]}`

	_, err := UnmarshalSnapshot([]byte(data), "test")
	require.Error(t, err)

	var dup *DuplicateEntryError
	assert.ErrorAs(t, err, &dup)
}

func TestFilePersisterMissingFileIsEmptyStore(t *testing.T) {
	p := &FilePersister{Path: filepath.Join(t.TempDir(), "absent.json")}

	s, err := p.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestFilePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	p := &FilePersister{Path: path}

	s := populatedStore(t)
	require.NoError(t, p.Save(s))

	loaded, err := p.Load()
	require.NoError(t, err)
	assertStoresEqual(t, s, loaded)
}

func TestFilePersisterSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	p := &FilePersister{Path: filepath.Join(dir, "mapping.json")}
	require.NoError(t, p.Save(populatedStore(t)))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "mapping.json", files[0].Name())
}

func TestFilePersisterLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := (&FilePersister{Path: path}).Load()
	var corrupt *CorruptDataError
	assert.ErrorAs(t, err, &corrupt)
}

func TestOpenPersisterByExtension(t *testing.T) {
	assert.IsType(t, &SQLitePersister{}, OpenPersister("m.db"))
	assert.IsType(t, &SQLitePersister{}, OpenPersister("m.sqlite"))
	assert.IsType(t, &SQLitePersister{}, OpenPersister("m.SQLITE3"))
	assert.IsType(t, &FilePersister{}, OpenPersister("m.json"))
	assert.IsType(t, &FilePersister{}, OpenPersister("mapping"))
}
