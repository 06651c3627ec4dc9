package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Import parses a file and runs it through the import pipeline. Files named
// *.xlsx are read as spreadsheets (first sheet); anything else as CSV.
//
// The whole file is parsed before the first write, so a *ParseError rejects
// the batch with nothing committed. The import holds a limiter slot for its
// whole run and returns ErrTooManyImports if none frees up in time.
func (s *Service) Import(ctx context.Context, entity string, r io.Reader, opts ImportOptions) (*ImportSummary, error) {
	def, err := s.Definition(entity)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	var rows []RawRow
	if isSpreadsheet(opts.FileName) {
		rows, err = ReadSpreadsheet(r, s.maxRows)
	} else {
		rows, err = ParseAll(r, s.maxRows)
	}
	if err != nil {
		return nil, err
	}

	return s.runImport(ctx, def, rows, opts)
}

// ImportRows runs already-parsed rows through the pipeline. Used for seed data.
func (s *Service) ImportRows(ctx context.Context, entity string, rows []RawRow, opts ImportOptions) (*ImportSummary, error) {
	def, err := s.Definition(entity)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	return s.runImport(ctx, def, rows, opts)
}

func (s *Service) runImport(ctx context.Context, def EntityDefinition, rows []RawRow, opts ImportOptions) (*ImportSummary, error) {
	if s.importTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.importTimeout)
		defer cancel()
	}
	return NewImporter(s.store, s.now).Run(ctx, def, rows, opts)
}

// ReadSpreadsheet reads the first sheet of an XLSX workbook into rows.
func ReadSpreadsheet(r io.Reader, maxRows int) ([]RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpreadsheet, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %s: %v", ErrSpreadsheet, sheets[0], err)
	}
	return ParseRecords(records, maxRows)
}

func isSpreadsheet(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}
