package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw)
	router.GET("/v1/admin/tenants/ent_1", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": "ent_1"})
	})
	return router
}

func TestHeadersMiddleware(t *testing.T) {
	router := newRouter(HeadersMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/tenants/ent_1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	}
	for header, expected := range headers {
		if got := w.Header().Get(header); got != expected {
			t.Errorf("%s = %q, want %q", header, got, expected)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		expectHeader   bool
	}{
		{
			name:           "allowed origin",
			allowedOrigins: []string{"https://ops.example.com"},
			requestOrigin:  "https://ops.example.com",
			expectHeader:   true,
		},
		{
			name:           "wildcard allows all",
			allowedOrigins: []string{"*"},
			requestOrigin:  "https://anything.example",
			expectHeader:   true,
		},
		{
			name:           "disallowed origin",
			allowedOrigins: []string{"https://ops.example.com"},
			requestOrigin:  "https://evil.example",
			expectHeader:   false,
		},
		{
			name:           "no origins configured",
			allowedOrigins: nil,
			requestOrigin:  "https://ops.example.com",
			expectHeader:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(CORSMiddleware(tc.allowedOrigins))

			req := httptest.NewRequest(http.MethodGet, "/v1/admin/tenants/ent_1", nil)
			req.Header.Set("Origin", tc.requestOrigin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
			hasHeader := w.Header().Get("Access-Control-Allow-Origin") != ""
			if hasHeader != tc.expectHeader {
				t.Errorf("CORS header present = %v, want %v", hasHeader, tc.expectHeader)
			}
		})
	}
}

func TestCORSCredentialsOnlyForExplicitOrigins(t *testing.T) {
	for origins, want := range map[string]string{"*": "", "https://ops.example.com": "true"} {
		router := newRouter(CORSMiddleware([]string{origins}))
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/tenants/ent_1", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Credentials"); got != want {
			t.Errorf("origins %q: Allow-Credentials = %q, want %q", origins, got, want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newRouter(CORSMiddleware([]string{"https://ops.example.com"}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/admin/tenants/ent_1", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if methods := w.Header().Get("Access-Control-Allow-Methods"); methods == "" {
		t.Error("Access-Control-Allow-Methods not set")
	}

	req = httptest.NewRequest(http.MethodOptions, "/v1/admin/tenants/ent_1", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign preflight status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
