package core

import (
	"sort"

	"github.com/jackc/pgx/v5/pgtype"
)

// NormalizedRow is a RawRow with canonical field names and typed values.
// Absent fields are missing from the maps or present with Valid == false.
type NormalizedRow struct {
	Row       int
	Line      int
	Texts     map[string]pgtype.Text
	Numbers   map[string]pgtype.Float8
	Dates     map[string]pgtype.Date
	Coercions []CoercionFailure
	Unknown   []string // headers that matched no field
}

// Text returns a text or enum field.
func (n NormalizedRow) Text(name string) pgtype.Text { return n.Texts[name] }

// Number returns a numeric field.
func (n NormalizedRow) Number(name string) pgtype.Float8 { return n.Numbers[name] }

// Date returns a date field.
func (n NormalizedRow) Date(name string) pgtype.Date { return n.Dates[name] }

// String returns a text field's value or "".
func (n NormalizedRow) String(name string) string { return TextValue(n.Texts[name]) }

// Present reports whether a field holds a valid value of any type.
func (n NormalizedRow) Present(name string) bool {
	return n.Texts[name].Valid || n.Numbers[name].Valid || n.Dates[name].Valid
}

// coercion returns the coercion failure recorded for a field, if any.
func (n NormalizedRow) coercion(name string) (CoercionFailure, bool) {
	for _, cf := range n.Coercions {
		if cf.Field == name {
			return cf, true
		}
	}
	return CoercionFailure{}, false
}

// Normalize maps a raw row onto def's canonical fields. Header names match
// case-, underscore-, space- and hyphen-insensitively, plus each field's
// aliases. When several headers map to one field, the first non-empty value
// in lexical header order wins. Values that cannot be coerced are recorded in
// Coercions and left absent; Normalize never rejects a row.
func Normalize(def EntityDefinition, raw RawRow) NormalizedRow {
	n := NormalizedRow{
		Row:     raw.Row,
		Line:    raw.Line,
		Texts:   make(map[string]pgtype.Text),
		Numbers: make(map[string]pgtype.Float8),
		Dates:   make(map[string]pgtype.Date),
	}

	headers := make([]string, 0, len(raw.Fields))
	for h := range raw.Fields {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	values := make(map[string]string, len(def.FieldSpecs))
	for _, h := range headers {
		spec, ok := def.resolveColumn(h)
		if !ok {
			n.Unknown = append(n.Unknown, h)
			continue
		}
		v := CleanCell(raw.Fields[h])
		if isNullToken(v) {
			v = ""
		}
		if v == "" || values[spec.Name] != "" {
			continue
		}
		values[spec.Name] = v
	}

	for _, spec := range def.FieldSpecs {
		v := values[spec.Name]
		if v == "" {
			v = spec.Default
		}

		switch spec.Type {
		case FieldNumber:
			f := ToPgFloat8(v)
			if v != "" && !f.Valid {
				n.Coercions = append(n.Coercions, CoercionFailure{Field: spec.Name, Value: v, Message: "must be a number"})
			}
			n.Numbers[spec.Name] = f

		case FieldDate:
			d := ToPgDate(v)
			if v != "" && !d.Valid {
				n.Coercions = append(n.Coercions, CoercionFailure{Field: spec.Name, Value: v, Message: "invalid date format (use YYYY-MM-DD)"})
			}
			n.Dates[spec.Name] = d

		default:
			if v != "" && spec.Normalizer != nil {
				v = spec.Normalizer(v)
			}
			n.Texts[spec.Name] = ToPgText(v)
		}
	}

	return n
}
