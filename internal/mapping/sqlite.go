package mapping

import (
	"database/sql"
	"fmt"
	"os"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
)

//go:embed schema.sql
var schemaSQL string

// SQLitePersister stores mapping state in a SQLite database. Better
// suited than the JSON snapshot when the mapping grows large or is
// inspected with external tooling; the save runs in one transaction,
// which satisfies the same atomicity contract as the snapshot rename.
type SQLitePersister struct {
	Path string
}

// Load reads all entries and counters. A missing database file is an
// empty store and does not create the file.
func (p *SQLitePersister) Load() (*Store, error) {
	if _, err := os.Stat(p.Path); os.IsNotExist(err) {
		return NewStore(), nil
	}

	db, err := p.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	store := NewStore()

	rows, err := db.Query(`
		SELECT semantic_type, original_kind, original, date_pattern, token
		FROM mapping_entries
		ORDER BY id
	`)
	if err != nil {
		return nil, &CorruptDataError{Source: p.Path, Reason: "query entries", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var rec entryRecord
		if err := rows.Scan(&rec.Type, &rec.Original.Kind, &rec.Original.Value, &rec.Original.Pattern, &rec.Token); err != nil {
			return nil, &CorruptDataError{Source: p.Path, Reason: "scan entry", Err: err}
		}
		e, err := decodeEntry(rec)
		if err != nil {
			return nil, &CorruptDataError{Source: p.Path, Reason: "decode entry", Err: err}
		}
		if err := store.Add(e); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &CorruptDataError{Source: p.Path, Reason: "iterate entries", Err: err}
	}

	counters, err := db.Query(`SELECT semantic_type, next_value FROM sequence_counters`)
	if err != nil {
		return nil, &CorruptDataError{Source: p.Path, Reason: "query counters", Err: err}
	}
	defer counters.Close()

	for counters.Next() {
		var name string
		var n uint64
		if err := counters.Scan(&name, &n); err != nil {
			return nil, &CorruptDataError{Source: p.Path, Reason: "scan counter", Err: err}
		}
		typ := rules.SemanticType(name)
		if !typ.Valid() {
			return nil, &CorruptDataError{Source: p.Path, Reason: fmt.Sprintf("counter for unknown type %q", name)}
		}
		store.SetCounter(typ, n)
	}
	if err := counters.Err(); err != nil {
		return nil, &CorruptDataError{Source: p.Path, Reason: "iterate counters", Err: err}
	}

	return store, nil
}

// Save rewrites all entries and counters in a single transaction.
func (p *SQLitePersister) Save(s *Store) error {
	db, err := p.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if _, err := tx.Exec(`DELETE FROM mapping_entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sequence_counters`); err != nil {
		return fmt.Errorf("clear counters: %w", err)
	}

	insert, err := tx.Prepare(`
		INSERT INTO mapping_entries (semantic_type, original_kind, original, date_pattern, token)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for _, e := range s.Entries() {
		rec, err := encodeEntry(e)
		if err != nil {
			return fmt.Errorf("encode entry (token %q): %w", e.Token, err)
		}
		if _, err := insert.Exec(rec.Type, rec.Original.Kind, rec.Original.Value, rec.Original.Pattern, rec.Token); err != nil {
			return fmt.Errorf("insert entry (token %q): %w", e.Token, err)
		}
	}

	for _, typ := range rules.KnownTypes {
		if n := s.Counter(typ); n > 0 {
			if _, err := tx.Exec(`INSERT INTO sequence_counters (semantic_type, next_value) VALUES (?, ?)`, string(typ), n); err != nil {
				return fmt.Errorf("insert counter for %s: %w", typ, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}

// open creates or opens the database, applying pragmas and the schema.
// SQLite supports one writer at a time, so the pool is held to a single
// connection.
func (p *SQLitePersister) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", p.Path)
	if err != nil {
		return nil, fmt.Errorf("open mapping database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to mapping database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply mapping schema: %w", err)
	}
	return db, nil
}
