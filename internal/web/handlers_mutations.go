package web

import (
	"net/http"
	"strconv"
)

// handleCreateSite creates one site from a JSON body of field values. The
// body goes through the same normalization and validation as an import row.
func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	site, err := s.service.CreateSite(requestContext(r), fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sites/"+strconv.FormatInt(site.ID, 10))
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	device, err := s.service.CreateDevice(requestContext(r), fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/devices/"+strconv.FormatInt(device.ID, 10))
	writeJSON(w, http.StatusCreated, device)
}

// handleUpdateSite applies a partial update. Omitted fields keep their value;
// null or "" clears an optional field.
func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	patch, err := decodeFields(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	site, err := s.service.UpdateSite(requestContext(r), id, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	patch, err := decodeFields(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	device, err := s.service.UpdateDevice(requestContext(r), id, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// handleDeleteSite deletes a site. A site with devices is refused unless
// cascade=true, which removes its devices too.
func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeleteSite(requestContext(r), id, parseBool(r, "cascade")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DeleteDevice(requestContext(r), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
