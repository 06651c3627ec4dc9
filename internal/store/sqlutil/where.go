// Package sqlutil builds the WHERE, ORDER BY and GROUP BY fragments shared
// by the Postgres and SQLite stores.
package sqlutil

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/siteinventory/internal/core"
)

// Dialect selects placeholder syntax and case-insensitive matching.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d == SQLite {
		return fmt.Sprintf("?%d", n)
	}
	return fmt.Sprintf("$%d", n)
}

func (d Dialect) like() string {
	if d == SQLite {
		return "LIKE"
	}
	return "ILIKE"
}

// WhereBuilder accumulates AND-ed conditions with numbered placeholders.
type WhereBuilder struct {
	dialect    Dialect
	conditions []string
	args       []any
	argIndex   int
}

// NewWhereBuilder returns an empty builder whose first placeholder is 1.
func NewWhereBuilder(d Dialect) *WhereBuilder {
	return &WhereBuilder{dialect: d, argIndex: 1}
}

// Add matches column = value exactly. Empty values are skipped.
func (wb *WhereBuilder) Add(column, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = %s", QuoteIdentifier(column), wb.next(value)))
}

// AddFold matches column = value ignoring case. Empty values are skipped.
func (wb *WhereBuilder) AddFold(column, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	wb.conditions = append(wb.conditions,
		fmt.Sprintf("LOWER(%s) = LOWER(%s)", QuoteIdentifier(column), wb.next(value)))
}

// AddSearch matches query as a case-insensitive substring of any column.
// All columns share one placeholder.
func (wb *WhereBuilder) AddSearch(query string, columns []string) {
	query = strings.TrimSpace(query)
	if query == "" || len(columns) == 0 {
		return
	}

	ph := wb.next("%" + escapeLike(query) + "%")
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf(`%s %s %s ESCAPE '\'`, QuoteIdentifier(col), wb.dialect.like(), ph)
	}
	wb.conditions = append(wb.conditions, "("+strings.Join(parts, " OR ")+")")
}

// Build returns " WHERE ..." and its arguments, or "" and nil when empty.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex returns the number the next placeholder will use.
func (wb *WhereBuilder) NextArgIndex() int {
	return wb.argIndex
}

func (wb *WhereBuilder) next(value any) string {
	ph := wb.dialect.Placeholder(wb.argIndex)
	wb.args = append(wb.args, value)
	wb.argIndex++
	return ph
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// QuoteIdentifier double-quotes a column name.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SiteWhere builds the WHERE clause for a site filter.
func SiteWhere(d Dialect, f core.SiteFilter) (string, []any) {
	def := mustDef(core.SiteEntity)
	wb := NewWhereBuilder(d)
	wb.AddSearch(f.Search, columns(def, core.SiteSearchFields))
	wb.AddFold("status", f.Status)
	wb.AddFold("region5", f.Region5)
	wb.AddFold("region13", f.Region13)
	wb.AddFold("city", f.City)
	return wb.Build()
}

// DeviceWhere builds the WHERE clause for a device filter.
func DeviceWhere(d Dialect, f core.DeviceFilter) (string, []any) {
	def := mustDef(core.DeviceEntity)
	wb := NewWhereBuilder(d)
	wb.AddSearch(f.Search, columns(def, core.DeviceSearchFields))
	wb.Add("site_id", f.SiteID)
	wb.AddFold("vendor", f.Vendor)
	wb.AddFold("device_type", f.DeviceType)
	wb.AddFold("technology", f.Technology)
	wb.AddFold("status", f.Status)
	return wb.Build()
}

// OrderBy renders " ORDER BY ..." for canonical sort fields, always ending
// with id so pages are stable. Unknown fields are an error.
func OrderBy(entity string, sorts []core.SortSpec) (string, error) {
	def := mustDef(entity)
	parts := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		col, ok := def.DBColumn(s.Field)
		if !ok {
			return "", fmt.Errorf("unknown sort field %q", s.Field)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, QuoteIdentifier(col)+" "+dir)
	}
	parts = append(parts, `"id" ASC`)
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// GroupColumn returns the SQL column for a CountBy field.
func GroupColumn(entity, field string) (string, error) {
	col, ok := mustDef(entity).DBColumn(field)
	if !ok {
		return "", fmt.Errorf("count %s by %q: unknown field", entity, field)
	}
	return QuoteIdentifier(col), nil
}

// Limit renders " LIMIT n OFFSET m" for the page, or "" without a page size.
func Limit(opts core.ListOptions) string {
	if opts.PageSize <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", opts.PageSize, opts.Offset())
}

func columns(def core.EntityDefinition, fields []string) []string {
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if col, ok := def.DBColumn(f); ok {
			cols = append(cols, col)
		}
	}
	return cols
}

func mustDef(entity string) core.EntityDefinition {
	def, ok := core.Get(entity)
	if !ok {
		panic("sqlutil: entity not registered: " + entity)
	}
	return def
}
