package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by stores and the service when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate matches any *DuplicateConflict via errors.Is.
	ErrDuplicate = errors.New("duplicate record")

	// ErrSiteHasDevices blocks deleting a site that devices still reference.
	ErrSiteHasDevices = errors.New("site has devices")

	// ErrUnknownEntity is returned for an entity key that is not registered.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrEmptyFile is returned when an upload has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrTooManyRows is returned when an upload exceeds the configured row cap.
	ErrTooManyRows = errors.New("too many rows")

	// ErrSpreadsheet wraps failures opening or reading an XLSX upload.
	ErrSpreadsheet = errors.New("unreadable spreadsheet")
)

// ParseError reports malformed delimited input. It aborts the whole import.
type ParseError struct {
	Line   int   // 1-based line where the problem was detected
	Column int   // 1-based column (rune index), 0 if unknown
	Offset int64 // Byte offset (BOM-stripped) where the failing record starts
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("invalid csv: line %d, column %d (byte %d): %v", e.Line, e.Column, e.Offset, e.Err)
	}
	return fmt.Sprintf("invalid csv: line %d (byte %d): %v", e.Line, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CoercionFailure records a value the normalizer could not convert. The field
// is treated as absent and the failure surfaces during validation.
type CoercionFailure struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationError is a single field-level problem.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors is every problem found in one record.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, ve := range e {
		parts[i] = ve.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// DuplicateConflict reports a unique-key collision. Existing is the key of the
// record already holding it. Update is set when the collision came from
// renaming a record onto another record's key.
type DuplicateConflict struct {
	Entity      string
	Existing    Key
	ExistingRow int // 1-based batch row that claimed the key first, 0 if stored
	Update      bool
}

func (e *DuplicateConflict) Error() string {
	if e.Update {
		return fmt.Sprintf("conflict with another record: %s", e.Existing)
	}
	if e.ExistingRow > 0 {
		return fmt.Sprintf("already exists: %s (row %d)", e.Existing, e.ExistingRow)
	}
	return fmt.Sprintf("already exists: %s", e.Existing)
}

func (e *DuplicateConflict) Is(target error) bool { return target == ErrDuplicate }

// ConstraintKind classifies store-level constraint failures.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
)

// ConstraintViolation is returned by stores when a write breaks a schema
// constraint. It is the final arbiter between concurrent imports.
type ConstraintViolation struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintViolation) Error() string {
	switch e.Kind {
	case ConstraintUnique:
		return fmt.Sprintf("unique constraint %s violated: already exists", e.Constraint)
	case ConstraintForeignKey:
		return fmt.Sprintf("foreign key constraint %s violated: referenced site does not exist", e.Constraint)
	default:
		return fmt.Sprintf("constraint %s violated", e.Constraint)
	}
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a ConstraintViolation of kind k.
func IsConstraint(err error, k ConstraintKind) bool {
	var cv *ConstraintViolation
	return errors.As(err, &cv) && cv.Kind == k
}
