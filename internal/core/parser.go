package core

// parser.go turns delimiter-separated text into records.
//
// The format is deliberately minimal: records are line-feed terminated, the
// first non-blank line is the header, and fields are split on a single
// delimiter byte. There is no quoting or escaping, so a field value cannot
// contain the delimiter. encoding/csv is not used because it would interpret
// quote characters that this format treats as plain data.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultDelimiter separates fields when none is configured.
const DefaultDelimiter byte = ';'

// Field is one column of a record.
type Field struct {
	Column string
	Value  string
}

// Record is one imported line, keyed by the header in header order.
type Record struct {
	Line   int // 1-based line number in the input
	Fields []Field
}

// Get returns the value of the last field named column.
func (r Record) Get(column string) (string, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Column == column {
			return r.Fields[i].Value, true
		}
	}
	return "", false
}

// Map returns the record as a column -> value map for reporting.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Column] = f.Value
	}
	return m
}

// RecordReader produces records lazily from an input stream. It is single
// pass: once Next returns io.EOF the reader is exhausted.
type RecordReader struct {
	br        *bufio.Reader
	delimiter string
	header    []string
	line      int
	blank     int
	done      bool
}

// NewRecordReader reads the header from r and returns a reader positioned at
// the first data line. Header names are trimmed. Blank lines before the header
// count toward BlankLines. Returns ErrHeaderMissing if r holds no non-blank line.
func NewRecordReader(r io.Reader, delimiter byte) (*RecordReader, error) {
	rr := &RecordReader{
		br:        bufio.NewReader(r),
		delimiter: string(delimiter),
	}

	for {
		line, err := rr.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if line != "" {
			rr.header = strings.Split(line, rr.delimiter)
			for i, name := range rr.header {
				rr.header[i] = strings.TrimSpace(name)
			}
			return rr, nil
		}
		if err != nil {
			return nil, ErrHeaderMissing
		}
		rr.blank++
	}
}

// Header returns the header columns in file order.
func (rr *RecordReader) Header() []string {
	return rr.header
}

// BlankLines returns how many blank lines were skipped so far.
func (rr *RecordReader) BlankLines() int {
	return rr.blank
}

// Next returns the next record. Blank lines are skipped. A line whose field
// count differs from the header yields a *RecordArityError; the reader stays
// usable. Returns io.EOF when the input is exhausted.
func (rr *RecordReader) Next() (Record, error) {
	for {
		if rr.done {
			return Record{}, io.EOF
		}

		line, err := rr.readLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Record{}, fmt.Errorf("read line %d: %w", rr.line, err)
			}
			rr.done = true
			if line == "" {
				return Record{}, io.EOF
			}
		}

		if line == "" {
			rr.blank++
			continue
		}

		values := strings.Split(line, rr.delimiter)
		if len(values) != len(rr.header) {
			return Record{}, &RecordArityError{
				Line:     rr.line,
				Expected: len(rr.header),
				Actual:   len(values),
				Raw:      line,
			}
		}

		rec := Record{Line: rr.line, Fields: make([]Field, len(values))}
		for i, v := range values {
			rec.Fields[i] = Field{Column: rr.header[i], Value: v}
		}
		return rec, nil
	}
}

// readLine returns the next line without its terminator. A trailing carriage
// return is dropped so CRLF files parse the same as LF files. On io.EOF the
// returned line holds any unterminated trailing data.
func (rr *RecordReader) readLine() (string, error) {
	s, err := rr.br.ReadString('\n')
	if s == "" && err != nil {
		return "", err
	}
	rr.line++
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, err
}
