// Package spreadsheet reads and writes the line-oriented CSV text used by
// transaction import and export.
package spreadsheet

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// SplitLines splits text on newlines, dropping a trailing carriage return from
// each line. Quoted fields spanning lines are not supported.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// ParseLine splits a single CSV line into trimmed fields. Quoted fields may
// contain commas and "" escapes; stray quotes inside unquoted fields are kept.
// A blank line yields no fields.
func ParseLine(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	record, err := r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		// Unbalanced quoting: fall back to a plain comma split.
		record = strings.Split(line, ",")
		for i, f := range record {
			record[i] = strings.Trim(strings.TrimSpace(f), `"`)
		}
	}
	fields := make([]string, len(record))
	for i, f := range record {
		fields[i] = strings.TrimSpace(f)
	}
	return fields
}

// WriteQuotedRow writes fields separated by commas with every field wrapped
// in double quotes and embedded quotes doubled. No line terminator is written.
func WriteQuotedRow(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
