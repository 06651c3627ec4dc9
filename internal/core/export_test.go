package core

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestParseExportFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ExportFormat
		wantErr bool
	}{
		{"", ExportCSV, false},
		{"csv", ExportCSV, false},
		{" XLSX ", ExportXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseExportFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseExportFormat(%q) = %q, %v", tt.in, got, err)
		}
		var ve ValidationErrors
		if tt.wantErr && !errors.As(err, &ve) {
			t.Errorf("expected ValidationErrors, got %T", err)
		}
	}
}

func TestExportFileName(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	if got := ExportFileName(SiteEntity, ExportCSV, now); got != "sites_2024-03-09.csv" {
		t.Errorf("got %q", got)
	}
	if got := ExportFileName(DeviceEntity, ExportXLSX, now); got != "devices_2024-03-09.xlsx" {
		t.Errorf("got %q", got)
	}
}

func TestWriteCSV_Quoting(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]string{
		{"name": "plain", "note": "a,b"},
		{"name": `say "hi"`, "note": "line1\nline2"},
		{"name": "absent"},
	}

	if err := WriteCSV(&buf, []string{"name", "note"}, rows); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := "name,note\n" +
		"plain,\"a,b\"\n" +
		"\"say \"\"hi\"\"\",\"line1\nline2\"\n" +
		"absent,\n"
	if buf.String() != want {
		t.Errorf("got\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteXLSX_ReadsBack(t *testing.T) {
	var buf bytes.Buffer
	columns := []string{"siteId", "latitude", "legacyId"}
	rows := []map[string]string{
		{"siteId": "A", "latitude": "24.5"},
		{"siteId": "B", "latitude": "-1", "legacyId": "L-2"},
	}

	if err := WriteXLSX(&buf, "Sites", columns, rows); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	got, err := ReadSpreadsheet(&buf, 0)
	if err != nil {
		t.Fatalf("ReadSpreadsheet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Fields["siteId"] != "A" || got[0].Fields["latitude"] != "24.5" {
		t.Errorf("row 1 = %v", got[0].Fields)
	}
	if got[1].Fields["legacyId"] != "L-2" {
		t.Errorf("row 2 = %v", got[1].Fields)
	}
}

func TestReadSpreadsheet_NotAWorkbook(t *testing.T) {
	if _, err := ReadSpreadsheet(bytes.NewReader([]byte("siteId\nA\n")), 0); err == nil {
		t.Error("expected an error for non-xlsx input")
	}
	if _, err := ReadSpreadsheet(bytes.NewReader(nil), 0); !errors.Is(err, ErrSpreadsheet) {
		t.Errorf("expected ErrSpreadsheet, got %v", err)
	}
}

func TestIsSpreadsheet(t *testing.T) {
	for name, want := range map[string]bool{
		"sites.xlsx": true,
		"SITES.XLSX": true,
		"sites.csv":  false,
		"":           false,
		"xlsx":       false,
	} {
		if got := isSpreadsheet(name); got != want {
			t.Errorf("isSpreadsheet(%q) = %v, want %v", name, got, want)
		}
	}
}
