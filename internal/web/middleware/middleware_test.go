package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/siteinventory/internal/config"
	"github.com/JonMunkholm/siteinventory/internal/core"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		realIP     string
		xff        string
		want       string
	}{
		{
			name:       "untrusted peer keeps its own address",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.9:5100",
			realIP:     "1.2.3.4",
			want:       "203.0.113.9",
		},
		{
			name:       "trusted proxy X-Real-IP",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5100",
			realIP:     "198.51.100.7",
			want:       "198.51.100.7",
		},
		{
			name:       "trusted proxy first forwarded hop",
			trusted:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:5100",
			xff:        "198.51.100.7, 10.0.0.1",
			want:       "198.51.100.7",
		},
		{
			name:       "invalid header ignored",
			trusted:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:5100",
			realIP:     "not-an-ip",
			want:       "127.0.0.1",
		},
		{
			name:       "bad proxy entries skipped",
			trusted:    []string{"", "nonsense"},
			remoteAddr: "[::1]:5100",
			realIP:     "198.51.100.7",
			want:       "::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"alpha", "bravo"}}

	tests := []struct {
		name      string
		key       string
		wantCode  int
		wantActor string
	}{
		{name: "missing", wantCode: http.StatusUnauthorized},
		{name: "wrong", key: "charlie", wantCode: http.StatusForbidden},
		{name: "second key", key: "bravo", wantCode: http.StatusOK, wantActor: "key#2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var actor string
			h := APIKeyAuth(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				actor = core.ActorFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/sites", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if actor != tt.wantActor {
				t.Errorf("actor = %q, want %q", actor, tt.wantActor)
			}
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	called := false
	h := APIKeyAuth(&config.SecurityConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sites", nil))

	if !called {
		t.Error("handler not called with auth disabled")
	}
}

func TestAPIKeyAuth_NoKeysConfigured(t *testing.T) {
	h := APIKeyAuth(&config.SecurityConfig{RequireAPIKey: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/sites", nil)
	req.Header.Set(APIKeyHeader, "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestLogger_CapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
