package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	if err := c.Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf.String()
}

func TestErrorAlert_Escapes(t *testing.T) {
	got := render(t, ErrorAlert("<b>bad</b>", "retry & check", "FILE002"))

	if strings.Contains(got, "<b>bad</b>") {
		t.Errorf("message not escaped: %s", got)
	}
	for _, want := range []string{"&lt;b&gt;bad&lt;/b&gt;", "retry &amp; check", "FILE002"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %s", want, got)
		}
	}
}

func TestImportSummary(t *testing.T) {
	got := render(t, ImportSummary(&core.ImportSummary{
		ImportID:  "abc",
		DryRun:    true,
		TotalRows: 3,
		Succeeded: 2,
		Failed:    1,
		Errors: []core.RowError{
			{Row: 2, Line: 3, Code: "IMP001", Reason: "technicianEmail: invalid email format"},
		},
	}))

	for _, want := range []string{
		"alert-warning",
		"Dry run",
		"2 of 3 rows imported, 1 failed.",
		"<td>3</td>",
		"technicianEmail: invalid email format",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %s", want, got)
		}
	}
}

func TestDashboard(t *testing.T) {
	got := render(t, Dashboard(DashboardData{
		Stats: core.DashboardStats{
			Sites: core.SiteStats{Total: 2, Active: 1, Inactive: 1, ByRegion: map[string]int64{"Western": 1, "Central": 1}},
		},
		Entities: []core.EntityInfo{{Key: "sites", Label: "Sites"}},
	}))

	for _, want := range []string{
		"<!DOCTYPE html>",
		`hx-post="/api/import/sites"`,
		"1 active, 1 inactive",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(got, "Devices by vendor") {
		t.Error("empty breakdown should be omitted")
	}
	if strings.Index(got, "Central") > strings.Index(got, "Western") {
		t.Error("breakdown rows not sorted")
	}
}
