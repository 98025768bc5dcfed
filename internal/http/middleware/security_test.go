package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securityEngine(opt SecurityOptions, pre gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.NoRoute(func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func get(r *gin.Engine, path string, mut func(*http.Request)) http.Header {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mut != nil {
		mut(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_BaselineOnly(t *testing.T) {
	h := get(securityEngine(SecurityOptions{}, nil), "/api/v1/destinations", nil)

	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, name := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security",
		"Content-Disposition", "Access-Control-Expose-Headers"} {
		if h.Get(name) != "" {
			t.Fatalf("unexpected %s: %q", name, h.Get(name))
		}
	}
}

func TestSecurityHeaders_PathClasses(t *testing.T) {
	r := securityEngine(SecurityOptions{
		EnablePolicy:     true,
		NoStorePrefixes:  []string{"/api/v1/payments/", ""},
		DownloadPrefixes: []string{"/downloads/", ""},
	}, nil)

	h := get(r, "/downloads/guide-abc.pdf", nil)
	if h.Get("Content-Disposition") != "attachment" || h.Get("X-Robots-Tag") != "noindex, nofollow" ||
		h.Get("Cache-Control") != "private, max-age=3600" {
		t.Fatalf("download headers missing: %#v", h)
	}
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", h)
	}

	h = get(r, "/api/v1/payments/direct", nil)
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("no-store headers missing: %#v", h)
	}
	if h.Get("Content-Disposition") != "" {
		t.Fatalf("payments must not be attachments")
	}

	h = get(r, "/api/v1/destinations", nil)
	if h.Get("Cache-Control") != "" || h.Get("Content-Disposition") != "" {
		t.Fatalf("catalog must stay cacheable: %#v", h)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	r := securityEngine(SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour}, nil)

	if got := get(r, "/", nil).Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS on plain http: %q", got)
	}
	want := "max-age=86400; includeSubDomains; preload"
	if got := get(r, "/", func(req *http.Request) { req.TLS = &tls.ConnectionState{} }).Get("Strict-Transport-Security"); got != want {
		t.Fatalf("TLS: got %q, want %q", got, want)
	}
	if got := get(r, "/", func(req *http.Request) { req.Header.Set("X-Forwarded-Proto", "HTTPS") }).Get("Strict-Transport-Security"); got != want {
		t.Fatalf("proxy: got %q, want %q", got, want)
	}

	def := securityEngine(SecurityOptions{EnableHSTS: true}, nil)
	if got := get(def, "/", func(req *http.Request) { req.TLS = &tls.ConnectionState{} }).Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default max-age: %q", got)
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	cases := []struct {
		existing string
		want     string
	}{
		{"", "X-Request-ID"},
		{"ETag", "ETag, X-Request-ID"},
		{"x-request-id, ETag", "x-request-id, ETag"},
	}
	for _, tc := range cases {
		r := securityEngine(SecurityOptions{}, func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-1")
			if tc.existing != "" {
				c.Header("Access-Control-Expose-Headers", tc.existing)
			}
			c.Next()
		})
		if got := get(r, "/", nil).Get("Access-Control-Expose-Headers"); got != tc.want {
			t.Fatalf("existing %q: got %q, want %q", tc.existing, got, tc.want)
		}
	}
}
