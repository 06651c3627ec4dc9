package core

// convert.go turns cleaned cell text into pgtype values. Every ToPg* function
// returns Valid=false for empty or unparsable input; that is the single
// "absent" representation used through the pipeline and by the stores.

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DateLayout is the wire format for dates in imports, exports and JSON.
const DateLayout = "2006-01-02"

// ISO-8601 forms accepted for date fields. Timestamps are truncated to their
// calendar date in their own offset.
var isoDateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// isNullToken reports whether a cell spells out a missing value.
func isNullToken(s string) bool {
	return strings.EqualFold(s, "null")
}

// ToPgText converts a string to pgtype.Text. "null" is treated as empty.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" || isNullToken(s) {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgFloat8 parses a decimal or scientific-notation number. NaN and
// infinities are rejected.
func ToPgFloat8(s string) pgtype.Float8 {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Float8{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// ToPgDate parses an ISO-8601 date or timestamp into a UTC calendar date.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{}
	}
	for _, layout := range isoDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
		}
	}
	return pgtype.Date{}
}

// TextValue returns the string of a valid Text, or "".
func TextValue(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// FormatDate renders a valid date as YYYY-MM-DD, or "".
func FormatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// FormatFloat renders a coordinate without trailing zeros.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
