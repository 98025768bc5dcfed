package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests only.
	// Enable it only when traffic is HTTPS end-to-end.
	EnableHSTS bool
	HSTSMaxAge time.Duration // default 180 days

	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool

	// NoStorePrefixes marks paths whose responses must never be cached
	// (purchase state, payment results).
	NoStorePrefixes []string

	// DownloadPrefixes marks paths serving purchased files. Responses under
	// them are attachments, not indexed and only privately cacheable.
	DownloadPrefixes []string
}

type headerPair struct{ name, value string }

// SecurityHeaders adds hardening headers to every response:
//
//	X-Content-Type-Options: nosniff
//	X-Frame-Options: DENY
//	Referrer-Policy: no-referrer
//
// plus the optional sets selected by opt. X-Request-ID is appended to
// Access-Control-Expose-Headers when present.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	base := []headerPair{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opt.EnablePolicy {
		base = append(base,
			headerPair{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			headerPair{"X-Permitted-Cross-Domain-Policies", "none"},
		)
	}
	noStore := []headerPair{
		{"Cache-Control", "no-store"},
		{"Pragma", "no-cache"},
		{"Expires", "0"},
	}
	download := []headerPair{
		{"Content-Disposition", "attachment"},
		{"X-Robots-Tag", "noindex, nofollow"},
		{"Cache-Control", "private, max-age=3600"},
	}

	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 180 * 24 * time.Hour
	}
	hsts := fmt.Sprintf("max-age=%d; includeSubDomains; preload", int64(maxAge.Seconds()))

	return func(c *gin.Context) {
		h := c.Writer.Header()
		path := c.Request.URL.Path

		set(h, base)
		switch {
		case hasAnyPrefix(path, opt.DownloadPrefixes):
			set(h, download)
		case hasAnyPrefix(path, opt.NoStorePrefixes):
			set(h, noStore)
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			appendToken(h, "Access-Control-Expose-Headers", requestIDHeader)
		}

		c.Next()
	}
}

func set(h http.Header, pairs []headerPair) {
	for _, p := range pairs {
		h.Set(p.name, p.value)
	}
}

// appendToken adds tok to a comma-separated header unless already listed.
func appendToken(h http.Header, name, tok string) {
	cur := h.Get(name)
	if cur == "" {
		h.Set(name, tok)
		return
	}
	for _, t := range strings.Split(cur, ",") {
		if strings.EqualFold(strings.TrimSpace(t), tok) {
			return
		}
	}
	h.Set(name, cur+", "+tok)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isHTTPS reports TLS on the connection or X-Forwarded-Proto: https from a
// reverse proxy.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
