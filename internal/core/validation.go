package core

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"
	"time"
)

// emailRegex is the local@domain.tld shape; mailboxes are not verified.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Verdict is the validator's answer for one row. A verdict with no Errors is
// Valid and carries the built record and its key.
type Verdict struct {
	Row    int
	Line   int
	Record any
	Key    Key
	Errors ValidationErrors
}

// Valid reports whether the row passed every rule.
func (v Verdict) Valid() bool { return len(v.Errors) == 0 }

// Validator applies an entity's field rules to normalized rows. It is pure
// apart from the injected clock.
type Validator struct {
	def EntityDefinition
	now func() time.Time
}

// NewValidator returns a validator for def. A nil clock means time.Now.
func NewValidator(def EntityDefinition, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{def: def, now: now}
}

// Validate returns exactly one verdict for the row, listing every failing field.
func (v *Validator) Validate(row NormalizedRow) Verdict {
	verdict := Verdict{Row: row.Row, Line: row.Line}

	today := v.today()
	for _, spec := range v.def.FieldSpecs {
		if cf, failed := row.coercion(spec.Name); failed {
			verdict.Errors = append(verdict.Errors, ValidationError{Field: spec.Name, Value: cf.Value, Message: cf.Message})
			continue
		}

		if !row.Present(spec.Name) {
			if spec.Required {
				verdict.Errors = append(verdict.Errors, ValidationError{Field: spec.Name, Message: "is required"})
			}
			continue
		}

		if err := checkField(spec, row, today); err != nil {
			verdict.Errors = append(verdict.Errors, *err)
		}
	}

	if verdict.Valid() {
		verdict.Record = v.def.Build(row)
		verdict.Key = v.def.KeyOf(verdict.Record)
	}
	return verdict
}

// today is the current UTC calendar date as a UTC midnight, matching ToPgDate.
func (v *Validator) today() time.Time {
	y, m, d := v.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// checkField applies the rules for one present value.
func checkField(spec FieldSpec, row NormalizedRow, today time.Time) *ValidationError {
	switch spec.Type {
	case FieldNumber:
		f := row.Number(spec.Name).Float64
		if spec.Range != nil && (f < spec.Range.Min || f > spec.Range.Max) {
			return &ValidationError{
				Field:   spec.Name,
				Value:   FormatFloat(f),
				Message: fmt.Sprintf("must be between %s and %s", FormatFloat(spec.Range.Min), FormatFloat(spec.Range.Max)),
			}
		}

	case FieldDate:
		d := row.Date(spec.Name)
		if spec.NotFuture && d.Time.After(today) {
			return &ValidationError{Field: spec.Name, Value: FormatDate(d), Message: "must not be in the future"}
		}

	case FieldEnum:
		s := row.String(spec.Name)
		for _, ev := range spec.EnumValues {
			if ev == s {
				return nil
			}
		}
		return &ValidationError{
			Field:   spec.Name,
			Value:   s,
			Message: "must be one of: " + strings.Join(spec.EnumValues, ", "),
		}

	default:
		s := row.String(spec.Name)
		if msg := checkFormat(spec.Format, s); msg != "" {
			return &ValidationError{Field: spec.Name, Value: s, Message: msg}
		}
	}
	return nil
}

func checkFormat(f Format, s string) string {
	switch f {
	case FormatEmail:
		if !emailRegex.MatchString(s) {
			return "invalid email format"
		}
	case FormatIP:
		if _, err := netip.ParseAddr(s); err != nil {
			return "invalid IP address"
		}
	case FormatMAC:
		if _, err := net.ParseMAC(s); err != nil {
			return "invalid MAC address"
		}
	}
	return ""
}
