package docio

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/document"
)

// DecodeCSV parses delimited text into an array of row objects keyed by
// the header line. All cell values decode as strings: delimited text
// carries no type information, and guessing types would break
// round-tripping.
//
// Rule patterns then address cells as "[].<column>".
func DecodeCSV(data []byte, delimiter rune) (document.Value, error) {
	r := csv.NewReader(bytes.NewReader(data))
	if delimiter != 0 {
		r.Comma = delimiter
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv document has no header row")
	}

	header := records[0]
	rows := make(document.Array, 0, len(records)-1)
	for _, record := range records[1:] {
		row := document.NewObject()
		for i, col := range header {
			row.Set(col, document.String(record[i]))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EncodeCSV renders an array of row objects back to delimited text. The
// header is the first row's key order; every row must carry the same
// key set, which Decode/transform preserve by construction.
func EncodeCSV(doc document.Value, delimiter rune) ([]byte, error) {
	rows, ok := doc.(document.Array)
	if !ok {
		return nil, fmt.Errorf("csv document must be an array of rows, got %T", doc)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if delimiter != 0 {
		w.Comma = delimiter
	}

	var header []string
	for i, rowVal := range rows {
		row, ok := rowVal.(*document.Object)
		if !ok {
			return nil, fmt.Errorf("csv row %d is not an object, got %T", i, rowVal)
		}

		if header == nil {
			header = row.Keys()
			if err := w.Write(header); err != nil {
				return nil, fmt.Errorf("write csv header: %w", err)
			}
		}

		record := make([]string, 0, len(header))
		for _, col := range header {
			cell, ok := row.Get(col)
			if !ok {
				return nil, fmt.Errorf("csv row %d is missing column %q", i, col)
			}
			text, err := document.ScalarString(cell)
			if err != nil {
				return nil, fmt.Errorf("csv row %d column %q: %w", i, col, err)
			}
			record = append(record, text)
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	if header == nil {
		return nil, fmt.Errorf("csv document has no rows to derive a header from")
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
