package core

import (
	"strings"
	"unicode"
)

// toDBColumnName converts a canonical field name to a snake_case column name.
// "installationDate" -> "installation_date", "region5" -> "region5",
// "neName" -> "ne_name", "IPAddress" -> "ip_address".
func toDBColumnName(name string) string {
	runes := []rune(strings.TrimSpace(name))
	var b strings.Builder
	for i, r := range runes {
		if r == ' ' || r == '-' {
			b.WriteByte('_')
			continue
		}
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			prevUpper := i > 0 && unicode.IsUpper(runes[i-1])
			if i > 0 && (prevLower || (prevUpper && nextLower)) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// foldHeader reduces a column name to its matching form: lower case with
// underscores, spaces, hyphens and dots removed. "Site_ID", "site id" and
// "siteId" all fold to "siteid".
func foldHeader(s string) string {
	s = CleanCell(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '_', ' ', '-', '.':
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// CleanCell removes common spreadsheet artifacts from a cell value: it trims
// whitespace, unwraps Excel formula text (="...") and replaces invalid UTF-8.
func CleanCell(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return strings.TrimSpace(s)
}

// isBlankRecord reports whether every cell of a record is empty after cleaning.
func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if CleanCell(cell) != "" {
			return false
		}
	}
	return true
}
