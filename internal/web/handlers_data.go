package web

import (
	"net/http"
)

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListSites(r.Context(), parseSiteFilter(r), parseListOptions(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListDevices(r.Context(), parseDeviceFilter(r), parseListOptions(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	site, err := s.service.GetSite(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	device, err := s.service.GetDevice(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (s *Server) handleSiteStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.SiteStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.DeviceStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.DashboardStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleSiteMap serves the filtered sites as a GeoJSON FeatureCollection.
func (s *Server) handleSiteMap(w http.ResponseWriter, r *http.Request) {
	fc, err := s.service.SiteMap(r.Context(), parseSiteFilter(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONAs(w, http.StatusOK, "application/geo+json", fc)
}

func (s *Server) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Vocabulary())
}

// entityResponse describes one importable entity for API clients.
type entityResponse struct {
	Key       string   `json:"key"`
	Label     string   `json:"label"`
	UniqueKey []string `json:"uniqueKey"`
	Columns   []string `json:"columns"`
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	infos := s.service.Entities()
	out := make([]entityResponse, 0, len(infos))
	for _, info := range infos {
		def, err := s.service.Definition(info.Key)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		out = append(out, entityResponse{
			Key:       info.Key,
			Label:     info.Label,
			UniqueKey: info.UniqueKey,
			Columns:   def.Columns(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
