package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
)

// Persister loads and saves a Store's durable state.
type Persister interface {
	// Load reads the durable state. A missing backend (absent file)
	// yields an empty store, not an error.
	Load() (*Store, error)

	// Save writes all entries and counters. Atomic from the caller's
	// perspective: a crashed save never corrupts a later Load.
	Save(*Store) error
}

// OpenPersister picks a backend from the path: ".db"/".sqlite" means
// SQLite, anything else the JSON snapshot file.
func OpenPersister(path string) Persister {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return &SQLitePersister{Path: path}
	default:
		return &FilePersister{Path: path}
	}
}

const snapshotVersion = 1

type snapshotFile struct {
	Version  int               `json:"version"`
	Counters map[string]uint64 `json:"counters,omitempty"`
	Entries  []entryRecord     `json:"entries"`
}

type entryRecord struct {
	Type     string       `json:"type"`
	Original scalarRecord `json:"original"`
	Token    string       `json:"token"`
}

// scalarRecord is the typed encoding of an original value. Values are
// rendered as text so integers survive without float64 precision loss;
// the kind tag keeps Int(1) and String("1") distinct. Dates keep the
// original text verbatim in value, plus the layout it matched and the
// instant as ISO-8601. The verbatim text matters: rendering the instant
// through the layout would lose zone offsets the source carried.
type scalarRecord struct {
	Kind    string `json:"kind"` // string | int | float | bool | date
	Value   string `json:"value"`
	Instant string `json:"instant,omitempty"` // date kind only
	Pattern string `json:"pattern,omitempty"` // date kind only
}

func encodeEntry(e Entry) (entryRecord, error) {
	rec := entryRecord{Type: string(e.Type), Token: e.Token}

	if e.Pattern != "" {
		epoch, err := strconv.ParseInt(e.Token, 10, 64)
		if err != nil {
			return rec, fmt.Errorf("date entry token %q is not an epoch", e.Token)
		}
		text, err := document.ScalarString(e.Original)
		if err != nil {
			return rec, err
		}
		rec.Original = scalarRecord{
			Kind:    "date",
			Value:   text,
			Instant: time.Unix(epoch, 0).UTC().Format(time.RFC3339),
			Pattern: e.Pattern,
		}
		return rec, nil
	}

	text, err := document.ScalarString(e.Original)
	if err != nil {
		return rec, err
	}
	switch e.Original.(type) {
	case document.String:
		rec.Original = scalarRecord{Kind: "string", Value: text}
	case document.Int:
		rec.Original = scalarRecord{Kind: "int", Value: text}
	case document.Float:
		rec.Original = scalarRecord{Kind: "float", Value: text}
	case document.Bool:
		rec.Original = scalarRecord{Kind: "bool", Value: text}
	default:
		return rec, fmt.Errorf("unsupported original value type %T", e.Original)
	}
	return rec, nil
}

func decodeEntry(rec entryRecord) (Entry, error) {
	typ := rules.SemanticType(rec.Type)
	if !typ.Valid() {
		return Entry{}, fmt.Errorf("unknown semantic type %q", rec.Type)
	}
	if rec.Token == "" {
		return Entry{}, fmt.Errorf("entry under %s has an empty token", rec.Type)
	}

	e := Entry{Type: typ, Token: rec.Token}
	switch rec.Original.Kind {
	case "string":
		e.Original = document.String(rec.Original.Value)
	case "int":
		n, err := strconv.ParseInt(rec.Original.Value, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("invalid int original %q: %w", rec.Original.Value, err)
		}
		e.Original = document.Int(n)
	case "float":
		f, err := strconv.ParseFloat(rec.Original.Value, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("invalid float original %q: %w", rec.Original.Value, err)
		}
		e.Original = document.Float(f)
	case "bool":
		b, err := strconv.ParseBool(rec.Original.Value)
		if err != nil {
			return Entry{}, fmt.Errorf("invalid bool original %q: %w", rec.Original.Value, err)
		}
		e.Original = document.Bool(b)
	case "date":
		if rec.Original.Pattern == "" {
			return Entry{}, fmt.Errorf("date original %q has no pattern", rec.Original.Value)
		}
		epoch, err := strconv.ParseInt(rec.Token, 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("date entry token %q is not an epoch", rec.Token)
		}
		t, err := time.ParseInLocation(rec.Original.Pattern, rec.Original.Value, time.UTC)
		if err != nil {
			return Entry{}, fmt.Errorf("date original %q does not match layout %q: %w", rec.Original.Value, rec.Original.Pattern, err)
		}
		if t.Unix() != epoch {
			return Entry{}, fmt.Errorf("date original %q parses to epoch %d, token says %d", rec.Original.Value, t.Unix(), epoch)
		}
		e.Original = document.String(rec.Original.Value)
		e.Pattern = rec.Original.Pattern
	default:
		return Entry{}, fmt.Errorf("unknown original kind %q", rec.Original.Kind)
	}
	return e, nil
}

// MarshalSnapshot encodes a store as the versioned JSON snapshot record.
func MarshalSnapshot(s *Store) ([]byte, error) {
	out := snapshotFile{
		Version: snapshotVersion,
		Entries: make([]entryRecord, 0, s.Len()),
	}
	for _, e := range s.Entries() {
		rec, err := encodeEntry(e)
		if err != nil {
			return nil, fmt.Errorf("encode entry (token %q): %w", e.Token, err)
		}
		out.Entries = append(out.Entries, rec)
	}
	for _, typ := range rules.KnownTypes {
		if n := s.Counter(typ); n > 0 {
			if out.Counters == nil {
				out.Counters = make(map[string]uint64)
			}
			out.Counters[string(typ)] = n
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// UnmarshalSnapshot decodes snapshot bytes into a fresh store. Malformed
// records fail with CorruptDataError; entries violating the bijection
// invariant fail with DuplicateEntryError.
func UnmarshalSnapshot(data []byte, source string) (*Store, error) {
	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &CorruptDataError{Source: source, Reason: "invalid JSON", Err: err}
	}
	if file.Version != snapshotVersion {
		return nil, &CorruptDataError{Source: source, Reason: fmt.Sprintf("unsupported snapshot version %d", file.Version)}
	}

	store := NewStore()
	for i, rec := range file.Entries {
		e, err := decodeEntry(rec)
		if err != nil {
			return nil, &CorruptDataError{Source: source, Reason: fmt.Sprintf("entry %d", i), Err: err}
		}
		if err := store.Add(e); err != nil {
			return nil, err
		}
	}
	for name, n := range file.Counters {
		typ := rules.SemanticType(name)
		if !typ.Valid() {
			return nil, &CorruptDataError{Source: source, Reason: fmt.Sprintf("counter for unknown type %q", name)}
		}
		store.SetCounter(typ, n)
	}
	return store, nil
}

// FilePersister stores the snapshot as a JSON side file.
type FilePersister struct {
	Path string
}

// Load reads and decodes the snapshot file. A missing file is an empty
// store.
func (p *FilePersister) Load() (*Store, error) {
	data, err := os.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mapping snapshot: %w", err)
	}
	return UnmarshalSnapshot(data, p.Path)
}

// Save writes the snapshot to a temporary file in the destination
// directory and renames it into place, so a partial write never corrupts
// a subsequent Load.
func (p *FilePersister) Save(s *Store) error {
	data, err := MarshalSnapshot(s)
	if err != nil {
		return fmt.Errorf("marshal mapping snapshot: %w", err)
	}

	dir := filepath.Dir(p.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, p.Path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}
