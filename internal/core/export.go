package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/siteinventory/internal/metrics"
)

// ExportFormat is a download file format.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// ParseExportFormat accepts "csv" (also the empty default) or "xlsx".
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ExportCSV):
		return ExportCSV, nil
	case string(ExportXLSX):
		return ExportXLSX, nil
	}
	return "", ValidationErrors{{Field: "format", Value: s, Message: "must be one of: csv, xlsx"}}
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ExportFileName returns "<entity>_<YYYY-MM-DD>.<ext>".
func ExportFileName(entity string, f ExportFormat, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", entity, now.Format(DateLayout), f)
}

// ExportRequest selects the records to export. Only the filter matching
// Entity is used.
type ExportRequest struct {
	Entity  string
	Format  ExportFormat
	Sites   SiteFilter
	Devices DeviceFilter
}

// Export writes every matching record with a header of canonical field names.
// The output imports back through the same pipeline. Returns the record count.
func (s *Service) Export(ctx context.Context, req ExportRequest, w io.Writer) (int, error) {
	def, err := s.Definition(req.Entity)
	if err != nil {
		return 0, err
	}

	var rows []map[string]string
	collect := func(record any) error {
		rows = append(rows, def.Fields(record))
		return nil
	}

	switch req.Entity {
	case SiteEntity:
		err = s.eachSite(ctx, req.Sites, func(site *Site) error { return collect(site) })
	case DeviceEntity:
		err = s.eachDevice(ctx, req.Devices, func(d *Device) error { return collect(d) })
	}
	if err != nil {
		return 0, err
	}

	switch req.Format {
	case ExportXLSX:
		err = WriteXLSX(w, def.Info.Label, def.Columns(), rows)
	default:
		err = WriteCSV(w, def.Columns(), rows)
	}
	if err != nil {
		return 0, err
	}

	metrics.IncExport(req.Entity, string(req.Format))
	return len(rows), nil
}

// WriteTemplate writes the import template for entity: the header row and
// one example row.
func (s *Service) WriteTemplate(entity string, w io.Writer) error {
	def, err := s.Definition(entity)
	if err != nil {
		return err
	}

	cols := def.Columns()
	example := make(map[string]string, len(cols))
	for i, col := range cols {
		if i < len(def.Example) {
			example[col] = def.Example[i]
		}
	}
	return WriteCSV(w, cols, []map[string]string{example})
}

// WriteCSV writes columns as the header and one line per row. A field is
// quoted only when it contains the delimiter, a quote or a line break.
func WriteCSV(w io.Writer, columns []string, rows []map[string]string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			record[j] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook. Cells are text so values survive
// a re-import unchanged.
func WriteXLSX(w io.Writer, sheet string, columns []string, rows []map[string]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	values := make([]any, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			values[j] = row[col]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
