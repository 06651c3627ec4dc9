package web

import (
	"context"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/logging"
	"github.com/JonMunkholm/siteinventory/internal/web/templates"
)

// healthTimeout bounds the store ping behind /healthz.
const healthTimeout = 2 * time.Second

// handleDashboard renders the landing page. A stats failure still renders the
// page, with zero counts, so imports stay reachable.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := templates.DashboardData{Entities: s.service.Entities()}

	stats, err := s.service.DashboardStats(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("dashboard stats", "error", err)
	} else {
		data.Stats = *stats
	}

	templ.Handler(templates.Dashboard(data)).ServeHTTP(w, r)
}

// healthResponse is the /healthz body.
type healthResponse struct {
	Status  string                   `json:"status"`
	Store   string                   `json:"store"`
	Imports core.ImportLimiterStatus `json:"imports"`
}

// handleHealth reports store reachability and import slot usage. It returns
// 503 when the store cannot be pinged.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Store: "ok", Imports: s.service.ImportStatus()}
	status := http.StatusOK
	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Error("health check: store ping failed", "error", err)
		resp.Status, resp.Store = "unavailable", err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
