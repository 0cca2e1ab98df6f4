// Package docio converts on-disk document formats (JSON, CSV and other
// delimited text) to and from the in-memory document tree. Input is
// expected to be UTF-8.
package docio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
)

// Format identifies an on-disk document format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatAuto, FormatJSON, FormatCSV:
		return true
	}
	return false
}

// Detect resolves FormatAuto from a file extension. ".csv" and ".tsv"
// mean CSV (the caller picks the tab delimiter for ".tsv"); everything
// else is treated as JSON.
func Detect(path string, f Format) Format {
	if f != FormatAuto && f != "" {
		return f
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return FormatCSV
	default:
		return FormatJSON
	}
}

// DefaultDelimiter returns the delimiter implied by a path: tab for
// ".tsv", otherwise the given fallback.
func DefaultDelimiter(path string, fallback rune) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return fallback
}

// ReadFile loads a document from disk in the given (or detected) format.
func ReadFile(path string, format Format, delimiter rune) (document.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	switch Detect(path, format) {
	case FormatCSV:
		return DecodeCSV(data, delimiter)
	default:
		doc, err := document.DecodeJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return doc, nil
	}
}

// WriteFile renders a document to disk in the given (or detected)
// format. JSON output is indented; CSV output uses the delimiter.
func WriteFile(path string, doc document.Value, format Format, delimiter rune) error {
	var data []byte
	var err error

	switch Detect(path, format) {
	case FormatCSV:
		data, err = EncodeCSV(doc, delimiter)
	default:
		data, err = document.EncodeJSONIndent(doc, "  ")
		if err == nil {
			data = append(data, '\n')
		}
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}
