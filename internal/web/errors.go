package web

// errors.go turns service errors into HTTP responses.
//
// Every error is logged with its technical detail and the request ID, then
// mapped through core.MapError to a user-facing message and code. API callers
// get JSON; HTMX requests get an alert fragment they can swap in.

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/logging"
	"github.com/JonMunkholm/siteinventory/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error. Fields lists each
// validation problem; Existing identifies the record a duplicate collided with.
type ErrorResponse struct {
	Error    string                `json:"error"`
	Message  string                `json:"message"`
	Action   string                `json:"action,omitempty"`
	Code     string                `json:"code"`
	Fields   core.ValidationErrors `json:"fields,omitempty"`
	Existing map[string]string     `json:"existing,omitempty"`
}

// errNoFile is returned when a multipart import has no "file" part.
var errNoFile = errors.New("no file provided")

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var (
		br  *badRequest
		dup *core.DuplicateConflict
		ve  core.ValidationErrors
		pe  *core.ParseError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest
	case errors.As(err, &dup),
		errors.Is(err, core.ErrSiteHasDevices),
		core.IsConstraint(err, core.ConstraintUnique):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrUnknownEntity):
		return http.StatusNotFound
	case errors.As(err, &ve),
		core.IsConstraint(err, core.ConstraintForeignKey),
		core.IsConstraint(err, core.ConstraintCheck):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &pe),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrTooManyRows),
		errors.Is(err, core.ErrSpreadsheet),
		errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped response with the status
// derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondErrorStatus(w, r, err, statusFor(err))
}

// respondErrorStatus is respondError with an explicit status.
func (s *Server) respondErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logger := logging.WithFields(r.Context(),
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "error", err)
	} else {
		logger.Warn("request error", "error", err)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if rerr := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); rerr != nil {
			logger.Error("render error alert", "error", rerr)
		}
		return
	}
	if !wantsJSON(r) {
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
		return
	}

	resp := ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var ve core.ValidationErrors
	if errors.As(err, &ve) {
		resp.Fields = ve
	}
	var dup *core.DuplicateConflict
	if errors.As(err, &dup) {
		resp.Existing = dup.Existing.Map()
	}
	if status >= http.StatusInternalServerError {
		// Internal detail stays in the log.
		resp.Error = msg.Message
	}
	writeJSON(w, status, resp)
}

// isHTMX reports whether the request came from an HTMX swap.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client expects a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
