package sqlutil

import (
	"testing"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

func TestWhereBuilder_Build_Empty(t *testing.T) {
	wb := NewWhereBuilder(Postgres)
	whereClause, args := wb.Build()

	if whereClause != "" {
		t.Errorf("expected empty string for no conditions, got %q", whereClause)
	}
	if args != nil {
		t.Errorf("expected nil args for no conditions, got %v", args)
	}
	if wb.NextArgIndex() != 1 {
		t.Errorf("NextArgIndex = %d, want 1", wb.NextArgIndex())
	}
}

func TestWhereBuilder_Add(t *testing.T) {
	wb := NewWhereBuilder(Postgres)
	wb.Add("site_id", "RYD-001")
	wb.Add("vendor", "  ") // skipped
	wb.AddFold("status", "active")

	whereClause, args := wb.Build()

	want := ` WHERE "site_id" = $1 AND LOWER("status") = LOWER($2)`
	if whereClause != want {
		t.Errorf("clause = %q, want %q", whereClause, want)
	}
	if len(args) != 2 || args[0] != "RYD-001" || args[1] != "active" {
		t.Errorf("args = %v", args)
	}
	if wb.NextArgIndex() != 3 {
		t.Errorf("NextArgIndex = %d, want 3", wb.NextArgIndex())
	}
}

func TestWhereBuilder_AddSearch(t *testing.T) {
	tests := []struct {
		name       string
		dialect    Dialect
		query      string
		columns    []string
		wantClause string
		wantArg    string
	}{
		{
			name:       "empty query skipped",
			dialect:    Postgres,
			query:      "",
			columns:    []string{"city"},
			wantClause: "",
		},
		{
			name:       "postgres shares one placeholder",
			dialect:    Postgres,
			query:      "riy",
			columns:    []string{"site_id", "city"},
			wantClause: ` WHERE ("site_id" ILIKE $1 ESCAPE '\' OR "city" ILIKE $1 ESCAPE '\')`,
			wantArg:    "%riy%",
		},
		{
			name:       "sqlite uses LIKE and numbered question marks",
			dialect:    SQLite,
			query:      "riy",
			columns:    []string{"city"},
			wantClause: ` WHERE ("city" LIKE ?1 ESCAPE '\')`,
			wantArg:    "%riy%",
		},
		{
			name:       "wildcards escaped",
			dialect:    Postgres,
			query:      "50%_off",
			columns:    []string{"city"},
			wantClause: ` WHERE ("city" ILIKE $1 ESCAPE '\')`,
			wantArg:    `%50\%\_off%`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb := NewWhereBuilder(tt.dialect)
			wb.AddSearch(tt.query, tt.columns)

			gotClause, gotArgs := wb.Build()
			if gotClause != tt.wantClause {
				t.Errorf("clause = %q, want %q", gotClause, tt.wantClause)
			}
			if tt.wantArg != "" && (len(gotArgs) != 1 || gotArgs[0] != tt.wantArg) {
				t.Errorf("args = %v, want [%s]", gotArgs, tt.wantArg)
			}
		})
	}
}

func TestSiteWhere(t *testing.T) {
	clause, args := SiteWhere(SQLite, core.SiteFilter{Search: "x", Region5: "Central"})

	want := ` WHERE ("site_id" LIKE ?1 ESCAPE '\' OR "legacy_id" LIKE ?1 ESCAPE '\' OR "city" LIKE ?1 ESCAPE '\' OR "district" LIKE ?1 ESCAPE '\' OR "technician_name" LIKE ?1 ESCAPE '\') AND LOWER("region5") = LOWER(?2)`
	if clause != want {
		t.Errorf("clause =\n%q\nwant\n%q", clause, want)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestDeviceWhere_SiteIDExact(t *testing.T) {
	clause, args := DeviceWhere(Postgres, core.DeviceFilter{SiteID: "RYD-001"})

	if clause != ` WHERE "site_id" = $1` {
		t.Errorf("clause = %q", clause)
	}
	if len(args) != 1 || args[0] != "RYD-001" {
		t.Errorf("args = %v", args)
	}
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		name    string
		sorts   []core.SortSpec
		want    string
		wantErr bool
	}{
		{name: "default id", want: ` ORDER BY "id" ASC`},
		{
			name:  "field then id",
			sorts: []core.SortSpec{{Field: "installationDate", Desc: true}, {Field: "city"}},
			want:  ` ORDER BY "installation_date" DESC, "city" ASC, "id" ASC`,
		},
		{name: "unknown field", sorts: []core.SortSpec{{Field: "password"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OrderBy(core.SiteEntity, tt.sorts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("OrderBy = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroupColumn(t *testing.T) {
	col, err := GroupColumn(core.DeviceEntity, "technology")
	if err != nil || col != `"technology"` {
		t.Errorf("GroupColumn = %q, %v", col, err)
	}
	if _, err := GroupColumn(core.DeviceEntity, "nope"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestLimit(t *testing.T) {
	if got := Limit(core.ListOptions{Page: 3, PageSize: 20}); got != " LIMIT 20 OFFSET 40" {
		t.Errorf("Limit = %q", got)
	}
	if got := Limit(core.ListOptions{}); got != "" {
		t.Errorf("Limit without page size = %q", got)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := QuoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Errorf("QuoteIdentifier = %q", got)
	}
}
