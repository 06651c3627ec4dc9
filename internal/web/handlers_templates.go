package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/logging"
)

// handleTemplate downloads the import template for an entity: the header row
// plus one example row.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	var buf bytes.Buffer
	if err := s.service.WriteTemplate(entity, &buf); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", core.ExportCSV.ContentType())
	w.Header().Set("Content-Disposition", attachment(entity+"_template.csv"))
	_, _ = w.Write(buf.Bytes())
}

// handleExport downloads every record matching the list filters as CSV or
// XLSX (format=csv|xlsx). The file re-imports cleanly.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if _, err := s.service.Definition(entity); err != nil {
		s.respondError(w, r, err)
		return
	}
	format, err := core.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		var ve core.ValidationErrors
		if errors.As(err, &ve) {
			err = &badRequest{errs: ve}
		}
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	n, err := s.service.Export(r.Context(), core.ExportRequest{
		Entity:  entity,
		Format:  format,
		Sites:   parseSiteFilter(r),
		Devices: parseDeviceFilter(r),
	}, &buf)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("export",
		"entity", entity,
		"format", format,
		"records", n,
	)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", attachment(core.ExportFileName(entity, format, s.service.Today())))
	_, _ = w.Write(buf.Bytes())
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
