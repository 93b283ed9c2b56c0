package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securityRouter(opt SecurityOptions, pre gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/health", ok)
	r.GET("/api/v1/orders", ok)
	r.POST("/webhooks/stripe", ok)
	return r
}

func serve(r http.Handler, req *http.Request) http.Header {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_BaselineAndExposeRequestID(t *testing.T) {
	r := securityRouter(SecurityOptions{}, func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-123")
		c.Next()
	})

	h := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Pragma", "Strict-Transport-Security"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
	if h.Get("Access-Control-Expose-Headers") != "X-Request-ID" {
		t.Fatalf("expose = %q", h.Get("Access-Control-Expose-Headers"))
	}

	// Existing exposed headers are appended to, not clobbered, and not duplicated.
	r = securityRouter(SecurityOptions{}, func(c *gin.Context) {
		c.Header("X-Request-ID", "rid")
		c.Header("Access-Control-Expose-Headers", "ETag")
		c.Next()
	})
	if got := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Get("Access-Control-Expose-Headers"); got != "ETag, X-Request-ID" {
		t.Fatalf("expose append = %q", got)
	}
}

func TestSecurityHeaders_CachePolicyByRoute(t *testing.T) {
	opt := SecurityOptions{
		PrivatePrefixes: []string{"/api/v1/orders", ""},
		NoStorePrefixes: []string{"/webhooks/"},
	}
	r := securityRouter(opt, nil)

	cases := []struct {
		method, path string
		want         string
	}{
		{http.MethodGet, "/api/v1/orders", CachePrivateRevalidate},
		{http.MethodPost, "/webhooks/stripe", CacheNoStore},
		{http.MethodGet, "/health", ""},
	}
	for _, tc := range cases {
		h := serve(r, httptest.NewRequest(tc.method, tc.path, nil))
		if got := h.Get("Cache-Control"); got != tc.want {
			t.Fatalf("%s %s: Cache-Control = %q; want %q", tc.method, tc.path, got, tc.want)
		}
		if tc.want == CacheNoStore && (h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0") {
			t.Fatalf("no-store legacy headers missing: %#v", h)
		}
	}

	// Global NoStore overrides private prefixes.
	opt.NoStore = true
	if got := serve(securityRouter(opt, nil), httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)).Get("Cache-Control"); got != CacheNoStore {
		t.Fatalf("NoStore override: %q", got)
	}
}

func TestSecurityHeaders_PolicyAndHSTS(t *testing.T) {
	r := securityRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: 2 * time.Second, EnablePolicy: true}, nil)

	plain := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if plain.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}
	if plain.Get("Permissions-Policy") == "" || plain.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", plain)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.TLS = &tls.ConnectionState{}
	if got := serve(r, req).Get("Strict-Transport-Security"); got != "max-age=2; includeSubDomains; preload" {
		t.Fatalf("HSTS over TLS = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	if got := serve(r, req).Get("Strict-Transport-Security"); got == "" {
		t.Fatalf("HSTS via X-Forwarded-Proto missing")
	}

	// Default max-age is 180 days.
	r = securityRouter(SecurityOptions{EnableHSTS: true}, nil)
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.TLS = &tls.ConnectionState{}
	if got := serve(r, req).Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default HSTS = %q", got)
	}
}
