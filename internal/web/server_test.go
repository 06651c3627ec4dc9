package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/siteinventory/internal/config"
	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/store/memstore"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const siteCSV = "siteId,region5,region13,city,district,latitude,longitude,installationDate,status,technicianName,technicianEmail\n" +
	"RYD-001,Central,Riyadh,Riyadh,Olaya,24.7136,46.6753,2024-01-15,Active,John Doe,john@example.com\n" +
	"JED-001,Western,Makkah,Jeddah,Al Hamra,21.5433,39.1728,2023-11-02,Inactive,Sara Ali,not-an-email\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 1 << 20, MaxRows: 100, MaxConcurrent: 2, MaxWaitTime: time.Second, Timeout: time.Minute},
		Security: config.SecurityConfig{
			EnableCSP: true,
		},
		Inventory: config.InventoryConfig{DefaultPageSize: 10, MaxPageSize: 100},
	}
}

type testServer struct {
	*Server
	svc *core.Service
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	svc := core.NewService(memstore.New(), core.WithClock(func() time.Time { return testNow }))
	s := NewServer(svc, cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &testServer{Server: s, svc: svc}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) upload(t *testing.T, path, fileName, content string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "x"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func siteBody(siteID string) map[string]any {
	return map[string]any{
		"siteId":           siteID,
		"region5":          "Central",
		"region13":         "Riyadh",
		"city":             "Riyadh",
		"district":         "Olaya",
		"latitude":         24.7136,
		"longitude":        46.6753,
		"installationDate": "2024-01-15",
		"technicianName":   "John Doe",
		"technicianEmail":  "john@example.com",
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, core.DefaultMaxConcurrentImports, resp.Imports.MaxConcurrent)
}

func TestSecurityHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.Security.EnableHSTS = true
	ts := newTestServer(t, cfg)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestSiteCRUD(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/sites", siteBody("RYD-001"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[core.Site](t, rec)
	assert.Equal(t, "RYD-001", created.SiteID)
	assert.Equal(t, core.StatusActive, created.Status)
	assert.Equal(t, "/api/sites/1", rec.Header().Get("Location"))

	rec = ts.do(t, http.MethodGet, "/api/sites/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "RYD-001", decode[core.Site](t, rec).SiteID)

	rec = ts.do(t, http.MethodPut, "/api/sites/1", map[string]any{"city": "Diriyah", "legacyId": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Diriyah", decode[core.Site](t, rec).City)

	rec = ts.do(t, http.MethodDelete, "/api/sites/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/sites/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "REC001", decode[ErrorResponse](t, rec).Code)
}

func TestCreateSite_Errors(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sites", siteBody("RYD-001")).Code)

	t.Run("duplicate reports existing key", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/sites", siteBody("RYD-001"))
		require.Equal(t, http.StatusConflict, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "REC002", resp.Code)
		assert.Equal(t, map[string]string{"siteId": "RYD-001"}, resp.Existing)
	})

	t.Run("validation lists every field", func(t *testing.T) {
		body := siteBody("RYD-002")
		body["latitude"] = 123
		body["technicianEmail"] = "nope"
		rec := ts.do(t, http.MethodPost, "/api/sites", body)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "VAL001", resp.Code)
		assert.Len(t, resp.Fields, 2)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sites", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		ts.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("nested value", func(t *testing.T) {
		body := siteBody("RYD-003")
		body["city"] = []string{"a"}
		rec := ts.do(t, http.MethodPost, "/api/sites", body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "city", decode[ErrorResponse](t, rec).Fields[0].Field)
	})

	t.Run("bad id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/sites/abc", nil).Code)
	})
}

func TestDeleteSite_WithDevices(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sites", siteBody("RYD-001")).Code)
	rec := ts.do(t, http.MethodPost, "/api/devices", map[string]any{"neName": "NE-1", "siteId": "RYD-001", "vendor": "nokia"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Nokia", decode[core.Device](t, rec).Vendor.String)

	rec = ts.do(t, http.MethodDelete, "/api/sites/1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "REC003", decode[ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodDelete, "/api/sites/1?cascade=true", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/devices/1", nil).Code)
}

func TestCreateDevice_UnknownSite(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/devices", map[string]any{"neName": "NE-1", "siteId": "NOPE"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "DB002", decode[ErrorResponse](t, rec).Code)
}

func TestImport(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "/api/import/sites", "sites.csv", siteCSV, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[core.ImportSummary](t, rec)
	assert.Equal(t, 2, summary.TotalRows)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 3, summary.Errors[0].Line)

	rec = ts.do(t, http.MethodGet, "/api/sites?sort=siteId", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[core.Page[core.Site]](t, rec)
	assert.Equal(t, int64(1), page.Pagination.Total)
}

func TestImport_DryRun(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "/api/import/sites?dryRun=true", "sites.csv", siteCSV, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[core.ImportSummary](t, rec).DryRun)
	page := decode[core.Page[core.Site]](t, ts.do(t, http.MethodGet, "/api/sites", nil))
	assert.Zero(t, page.Pagination.Total)
}

func TestImport_HTMXFragment(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "/api/import/sites", "sites.csv", siteCSV, http.Header{"Hx-Request": {"true"}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "1 of 2 rows imported, 1 failed.")
}

func TestImport_FileErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		fileName string
		content  string
		wantCode int
		wantErr  string
	}{
		{name: "unknown entity", path: "/api/import/antennas", fileName: "a.csv", content: "x\n1\n", wantCode: http.StatusNotFound, wantErr: "IMP004"},
		{name: "missing file part", path: "/api/import/sites", wantCode: http.StatusBadRequest, wantErr: "FILE004"},
		{name: "malformed csv", path: "/api/import/sites", fileName: "s.csv", content: "siteId,city\nA,Riyadh\nB,Rbad\"quote\n", wantCode: http.StatusBadRequest, wantErr: "FILE002"},
		{name: "empty file", path: "/api/import/sites", fileName: "s.csv", content: "", wantCode: http.StatusBadRequest, wantErr: "FILE003"},
		{name: "not a workbook", path: "/api/import/sites", fileName: "s.xlsx", content: "siteId\n", wantCode: http.StatusBadRequest, wantErr: "FILE005"},
	}

	ts := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.upload(t, tt.path, tt.fileName, tt.content, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestImport_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Import.MaxFileSize = 64
	ts := newTestServer(t, cfg)

	rec := ts.upload(t, "/api/import/sites", "sites.csv", siteCSV, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decode[ErrorResponse](t, rec).Code)
}

func TestExport(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.upload(t, "/api/import/sites", "sites.csv", siteCSV, nil).Code)

	rec := ts.do(t, http.MethodGet, "/api/export/sites?format=csv&region5=central", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="sites_2024-06-01.csv"`, rec.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "siteId,"))
	assert.True(t, strings.HasPrefix(lines[1], "RYD-001,"))

	rec = ts.do(t, http.MethodGet, "/api/export/sites?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTemplateDownload(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/template/devices", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="devices_template.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "neName,siteId,"))
}

func TestSiteMap(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sites", siteBody("RYD-001")).Code)

	rec := ts.do(t, http.MethodGet, "/api/sites/map", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	fc := decode[core.FeatureCollection](t, rec)
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, [2]float64{46.6753, 24.7136}, fc.Features[0].Geometry.Coordinates)
}

func TestStatsAndMetadata(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sites", siteBody("RYD-001")).Code)

	rec := ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[core.DashboardStats](t, rec)
	assert.Equal(t, int64(1), stats.Sites.Total)
	assert.Equal(t, int64(1), stats.Sites.ByRegion["Central"])

	rec = ts.do(t, http.MethodGet, "/api/vocabulary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[core.Vocabulary](t, rec).Vendors)

	rec = ts.do(t, http.MethodGet, "/api/entities", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entities := decode[[]entityResponse](t, rec)
	require.Len(t, entities, 2)
	assert.Equal(t, "devices", entities[0].Key)
}

func TestListSites_InvalidSort(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/sites?sort=password", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hx-post="/api/import/sites"`)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	ts := newTestServer(t, cfg)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/sites", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/sites", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	ts.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, ImportLimit: 1}
	ts := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
	}
	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	now := testNow
	rl.now = func() time.Time { return now }

	ok, _ := rl.allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = rl.allow("10.0.0.1")
	assert.False(t, ok)
	ok, _ = rl.allow("10.0.0.2")
	assert.True(t, ok, "limits are per client")

	now = now.Add(time.Minute)
	ok, _ = rl.allow("10.0.0.1")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.visitors)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrNotFound, http.StatusNotFound},
		{&core.DuplicateConflict{Entity: "sites"}, http.StatusConflict},
		{core.ErrSiteHasDevices, http.StatusConflict},
		{core.ValidationErrors{{Field: "city", Message: "is required"}}, http.StatusUnprocessableEntity},
		{newBadRequest("id", "x", "bad"), http.StatusBadRequest},
		{&core.ConstraintViolation{Kind: core.ConstraintForeignKey}, http.StatusUnprocessableEntity},
		{&core.ParseError{Line: 2}, http.StatusBadRequest},
		{core.ErrTooManyImports, http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
