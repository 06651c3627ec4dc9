package core

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// RawRow is one data row keyed by header text exactly as it appeared in the
// file (cleaned). Cells beyond the header are dropped; missing trailing cells
// are absent keys.
type RawRow struct {
	Row    int               // 1-based data row ordinal, blank lines excluded
	Line   int               // 1-based line in the file where the row starts
	Fields map[string]string // header -> cell
}

// RowReader yields RawRows lazily from delimited text.
type RowReader struct {
	csv    *csv.Reader
	header []string
	rows   int
	offset int64 // input offset just past the last record read cleanly
}

// ParseCSV reads the header row and returns a reader positioned at the first
// data row. A leading UTF-8 BOM is skipped. Returns ErrEmptyFile when there is
// no header and *ParseError when the header itself is malformed.
func ParseCSV(r io.Reader) (*RowReader, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	rr := &RowReader{csv: cr}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		if err != nil {
			return nil, rr.wrap(err)
		}
		rr.offset = cr.InputOffset()
		if isBlankRecord(record) {
			continue
		}
		rr.header = make([]string, len(record))
		for i, h := range record {
			rr.header[i] = CleanCell(h)
		}
		return rr, nil
	}
}

// Header returns the cleaned header cells.
func (rr *RowReader) Header() []string {
	return rr.header
}

// Next returns the next non-blank row, io.EOF at the end, or *ParseError.
func (rr *RowReader) Next() (RawRow, error) {
	for {
		record, err := rr.csv.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return RawRow{}, io.EOF
			}
			return RawRow{}, rr.wrap(err)
		}
		rr.offset = rr.csv.InputOffset()
		if isBlankRecord(record) {
			continue
		}
		line, _ := rr.csv.FieldPos(0)
		rr.rows++
		return buildRawRow(rr.header, record, rr.rows, line), nil
	}
}

// wrap converts csv.ParseError into *ParseError. Offset is where the failing
// record starts: the end of the last record read cleanly.
func (rr *RowReader) wrap(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Column: pe.Column, Offset: rr.offset, Err: pe.Err}
	}
	return fmt.Errorf("read csv: %w", err)
}

// ParseAll reads every row before returning, so a malformed file is rejected
// before any row reaches the store. maxRows <= 0 means no limit.
func ParseAll(r io.Reader, maxRows int) ([]RawRow, error) {
	rr, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}

	var rows []RawRow
	for {
		row, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if maxRows > 0 && len(rows) >= maxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, maxRows)
		}
		rows = append(rows, row)
	}
}

// ParseRecords builds RawRows from records already split into cells (for
// example a spreadsheet sheet). The first non-blank record is the header.
func ParseRecords(records [][]string, maxRows int) ([]RawRow, error) {
	start := 0
	for start < len(records) && isBlankRecord(records[start]) {
		start++
	}
	if start >= len(records) {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(records[start]))
	for i, h := range records[start] {
		header[i] = CleanCell(h)
	}

	var rows []RawRow
	for i := start + 1; i < len(records); i++ {
		if isBlankRecord(records[i]) {
			continue
		}
		if maxRows > 0 && len(rows) >= maxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, maxRows)
		}
		rows = append(rows, buildRawRow(header, records[i], len(rows)+1, i+1))
	}
	return rows, nil
}

func buildRawRow(header, record []string, row, line int) RawRow {
	fields := make(map[string]string, len(header))
	for i, h := range header {
		if h == "" || i >= len(record) {
			continue
		}
		if _, dup := fields[h]; dup {
			continue
		}
		fields[h] = record[i]
	}
	return RawRow{Row: row, Line: line, Fields: fields}
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}
