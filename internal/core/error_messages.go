package core

// # Error Codes Reference
//
// User-facing messages carry a code that support staff can look up here.
//
// Records (REC001-REC099):
//
//	REC001 - Record not found
//	REC002 - Duplicate key: a record with this key already exists
//	REC003 - Site still has devices (delete blocked)
//
// Import (IMP001-IMP099):
//
//	IMP001 - Row failed validation (per-row code in import summaries)
//	IMP002 - Row duplicates an existing or earlier row (per-row code)
//	IMP003 - System busy: too many imports running
//	IMP004 - Unknown entity
//	IMP005 - Too many rows in one file
//
// Database (DB001-DB099):
//
//	DB001 - Unique constraint violated at write time
//	DB002 - Foreign key: referenced site does not exist
//	DB003 - Connection refused
//	DB004 - Timeout
//	DB005 - Deadlock
//
// Validation (VAL001-VAL099):
//
//	VAL001 - One or more fields are invalid
//
// Files (FILE001-FILE099):
//
//	FILE001 - File too large
//	FILE002 - Invalid CSV (malformed quoting)
//	FILE003 - Empty file
//	FILE004 - No file provided
//	FILE005 - Unsupported spreadsheet
//
// Requests (REQ001-REQ099):
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//	RATE001 - Rate limited
//
//	ERR000 - Unknown error; check logs for the technical error.
//
// Typed errors are matched first with errors.Is/errors.As. Anything else is
// matched case-insensitively against errorPatterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgNotFound = UserMessage{
		Message: "Record not found",
		Action:  "Refresh the list; the record may have been deleted",
		Code:    "REC001",
	}
	msgDuplicate = UserMessage{
		Message: "A record with this key already exists",
		Action:  "Use a different identifier or edit the existing record",
		Code:    "REC002",
	}
	msgSiteHasDevices = UserMessage{
		Message: "This site still has devices",
		Action:  "Delete or move its devices first, or delete with cascade",
		Code:    "REC003",
	}
	msgBusy = UserMessage{
		Message: "Too many imports in progress",
		Action:  "Please wait a moment and try again",
		Code:    "IMP003",
	}
	msgUnknownEntity = UserMessage{
		Message: "Unknown record type",
		Action:  "Use sites or devices",
		Code:    "IMP004",
	}
	msgTooManyRows = UserMessage{
		Message: "File has too many rows",
		Action:  "Split the file into smaller files",
		Code:    "IMP005",
	}
	msgUniqueViolation = UserMessage{
		Message: "A record with this key was created concurrently",
		Action:  "Reload and review the existing record",
		Code:    "DB001",
	}
	msgForeignKey = UserMessage{
		Message: "Referenced site does not exist",
		Action:  "Create or import the site before its devices",
		Code:    "DB002",
	}
	msgValidation = UserMessage{
		Message: "One or more fields are invalid",
		Action:  "Correct the highlighted fields and try again",
		Code:    "VAL001",
	}
	msgInvalidCSV = UserMessage{
		Message: "File is not valid CSV",
		Action:  "Check for unterminated quotes and save as comma-separated UTF-8",
		Code:    "FILE002",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header row and data rows",
		Code:    "FILE003",
	}
	msgSpreadsheet = UserMessage{
		Message: "Spreadsheet could not be read",
		Action:  "Save the workbook as .xlsx or export it to CSV",
		Code:    "FILE005",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgDeadline = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "REQ002",
	}
)

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (lower case) to user messages.
var errorPatterns = []errorPattern{
	{"duplicate key", msgUniqueViolation},
	{"violates unique", msgUniqueViolation},
	{"unique constraint", msgUniqueViolation},
	{"foreign key", msgForeignKey},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB003",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB004",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"database is locked", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"file too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller files",
		Code:    "FILE001",
	}},
	{"request body too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller files",
		Code:    "FILE001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Select a CSV or XLSX file to upload",
		Code:    "FILE004",
	}},
	{"spreadsheet", msgSpreadsheet},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error into a user-facing message. Typed domain errors
// are recognised through wrapping; other errors fall back to text patterns and
// finally to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		parseErr *ParseError
		dupErr   *DuplicateConflict
		cvErr    *ConstraintViolation
		valErrs  ValidationErrors
	)
	switch {
	case errors.As(err, &dupErr):
		return msgDuplicate
	case errors.As(err, &cvErr):
		if cvErr.Kind == ConstraintForeignKey {
			return msgForeignKey
		}
		return msgUniqueViolation
	case errors.As(err, &valErrs):
		return msgValidation
	case errors.As(err, &parseErr):
		return msgInvalidCSV
	case errors.Is(err, ErrNotFound):
		return msgNotFound
	case errors.Is(err, ErrSiteHasDevices):
		return msgSiteHasDevices
	case errors.Is(err, ErrTooManyImports):
		return msgBusy
	case errors.Is(err, ErrUnknownEntity):
		return msgUnknownEntity
	case errors.Is(err, ErrTooManyRows):
		return msgTooManyRows
	case errors.Is(err, ErrEmptyFile):
		return msgEmptyFile
	case errors.Is(err, ErrSpreadsheet):
		return msgSpreadsheet
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgDeadline
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
