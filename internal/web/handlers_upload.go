package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/logging"
	"github.com/JonMunkholm/siteinventory/internal/web/templates"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory
// before spilling to a temp file.
const multipartMemory = 8 << 20

// handleImport runs a bulk import of the uploaded "file" part (CSV, or XLSX
// by extension). dryRun=true, as a query or form value, resolves every row
// without writing. HTMX callers get the summary fragment; everyone else gets
// the summary as JSON.
//
// A summary is returned with 200 even when rows failed; only file-level
// problems (unreadable, empty, too large, too many rows) are errors.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if _, err := s.service.Definition(entity); err != nil {
		s.respondError(w, r, err)
		return
	}

	limit := s.cfg.Import.MaxFileSize
	if r.ContentLength > limit {
		s.respondError(w, r, &http.MaxBytesError{Limit: limit})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.respondError(w, r, mbe)
			return
		}
		s.respondError(w, r, errNoFile)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	opts := core.ImportOptions{
		FileName: header.Filename,
		DryRun:   parseBool(r, "dryRun"),
	}
	summary, err := s.service.Import(requestContext(r), entity, file, opts)
	if err != nil && summary == nil {
		s.respondError(w, r, err)
		return
	}
	if err != nil {
		// Interrupted mid-run: committed rows stay committed and the summary
		// says where it stopped.
		logging.FromContext(r.Context()).Warn("import interrupted",
			"entity", entity,
			"import_id", summary.ImportID,
			"error", err,
		)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ImportSummary(summary).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render import summary", "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
