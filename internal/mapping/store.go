// Package mapping implements the reversible token store: a bidirectional
// original-value/token table partitioned by semantic type, with durable
// snapshot and SQLite backends.
package mapping

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/transform"
)

// Entry is one recorded bijection: an original scalar and the token that
// replaced it, under one semantic type.
type Entry struct {
	Type     rules.SemanticType
	Original document.Value
	Token    string

	// Pattern is the date layout the original was parsed with. Set only
	// for DATE entries; reversal needs it to reconstruct the exact text.
	Pattern string
}

// Store owns all mapping entries for one engine run. Within a semantic
// type the original-to-token relation is a bijection: entries are only
// ever added, never overwritten or deleted.
//
// A Store is exclusively owned by one engine run; it is not safe for
// concurrent use.
type Store struct {
	forward  map[rules.SemanticType]map[string]string // original key -> token
	reverse  map[rules.SemanticType]map[string]int    // token -> index into entries
	counters map[rules.SemanticType]uint64
	entries  []Entry // insertion order, for deterministic persistence
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		forward:  make(map[rules.SemanticType]map[string]string),
		reverse:  make(map[rules.SemanticType]map[string]int),
		counters: make(map[rules.SemanticType]uint64),
	}
}

// originalKey builds the lookup key for an original scalar. Strings are
// NFC-normalized so the same text in different Unicode representations
// maps to one token; the kind prefix keeps Int(1) and String("1") apart.
func originalKey(v document.Value) (string, error) {
	switch val := v.(type) {
	case document.String:
		return "s:" + norm.NFC.String(string(val)), nil
	case document.Int:
		return "i:" + strconv.FormatInt(int64(val), 10), nil
	case document.Float:
		return "f:" + strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case document.Bool:
		return "b:" + strconv.FormatBool(bool(val)), nil
	default:
		return "", fmt.Errorf("unsupported original value type %T", v)
	}
}

// LookupOrCreate returns the token for an original value, allocating a
// new one from the per-type sequence when the value has not been seen.
// Repeated calls with the same (type, value) always return the same
// token for this store's lifetime, including entries loaded from durable
// state.
func (s *Store) LookupOrCreate(typ rules.SemanticType, original document.Value, prefix string) (string, error) {
	key, err := originalKey(original)
	if err != nil {
		return "", err
	}

	if tok, ok := s.forward[typ][key]; ok {
		return tok, nil
	}

	seq := s.counters[typ] + 1
	token := transform.FormatToken(prefix, seq)
	if _, taken := s.reverse[typ][token]; taken {
		// A loaded snapshot minted under a different prefix scheme can
		// occupy the next sequence's token. Never reuse: keep counting.
		for taken {
			seq++
			token = transform.FormatToken(prefix, seq)
			_, taken = s.reverse[typ][token]
		}
	}
	s.counters[typ] = seq

	s.insert(typ, key, Entry{Type: typ, Original: original, Token: token})
	return token, nil
}

// RecordDate remembers which text and pattern produced an epoch value so
// reversal reconstructs the exact original. Date conversion is
// mathematically determined, so no sequence counter is consumed. Distinct
// texts for the same instant (e.g. two configured patterns) share one
// epoch; the first recording wins and later ones are no-ops.
func (s *Store) RecordDate(typ rules.SemanticType, original document.String, pattern string, epoch int64) error {
	key, err := originalKey(original)
	if err != nil {
		return err
	}
	token := strconv.FormatInt(epoch, 10)
	if _, seen := s.forward[typ][key]; seen {
		return nil
	}
	if _, taken := s.reverse[typ][token]; taken {
		return nil
	}
	s.insert(typ, key, Entry{Type: typ, Original: original, Token: token, Pattern: pattern})
	return nil
}

// ReverseLookup returns the original value a token was minted for.
func (s *Store) ReverseLookup(typ rules.SemanticType, token string) (document.Value, error) {
	idx, ok := s.reverse[typ][token]
	if !ok {
		return nil, &TokenNotFoundError{Type: typ, Token: token}
	}
	return s.entries[idx].Original, nil
}

// HasToken reports whether token exists under the given semantic type.
func (s *Store) HasToken(typ rules.SemanticType, token string) bool {
	_, ok := s.reverse[typ][token]
	return ok
}

// Add records an entry loaded from durable state, enforcing the
// bijection invariant in both directions.
func (s *Store) Add(e Entry) error {
	key, err := originalKey(e.Original)
	if err != nil {
		return err
	}
	if _, dup := s.forward[e.Type][key]; dup {
		orig, _ := document.ScalarString(e.Original)
		return &DuplicateEntryError{Type: e.Type, Original: orig}
	}
	if _, dup := s.reverse[e.Type][e.Token]; dup {
		return &DuplicateEntryError{Type: e.Type, Token: e.Token}
	}
	s.insert(e.Type, key, e)
	s.bumpCounterFor(e.Type, e.Token)
	return nil
}

func (s *Store) insert(typ rules.SemanticType, key string, e Entry) {
	if s.forward[typ] == nil {
		s.forward[typ] = make(map[string]string)
	}
	if s.reverse[typ] == nil {
		s.reverse[typ] = make(map[string]int)
	}
	s.forward[typ][key] = e.Token
	s.reverse[typ][e.Token] = len(s.entries)
	s.entries = append(s.entries, e)
}

// bumpCounterFor keeps the sequence counter ahead of any loaded token of
// the form <prefix>-<n>, so re-runs never mint a token twice.
func (s *Store) bumpCounterFor(typ rules.SemanticType, token string) {
	dash := strings.LastIndexByte(token, '-')
	if dash < 0 {
		return
	}
	n, err := strconv.ParseUint(token[dash+1:], 10, 64)
	if err != nil {
		return
	}
	if n > s.counters[typ] {
		s.counters[typ] = n
	}
}

// Entries returns all entries in insertion order. The slice is shared;
// callers must not modify it.
func (s *Store) Entries() []Entry {
	return s.entries
}

// Len returns the number of entries across all semantic types.
func (s *Store) Len() int {
	return len(s.entries)
}

// Counter returns the current sequence counter for a semantic type.
func (s *Store) Counter(typ rules.SemanticType) uint64 {
	return s.counters[typ]
}

// SetCounter restores a persisted sequence counter. Lower values than
// the current counter are ignored: counters only move forward.
func (s *Store) SetCounter(typ rules.SemanticType, n uint64) {
	if n > s.counters[typ] {
		s.counters[typ] = n
	}
}
