package middleware

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RedactOptions adds headers to mask in full, matched case-insensitively,
// on top of the built-in credential headers.
type RedactOptions struct {
	MaskHeaders []string
}

var defaultMaskedHeaders = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"stripe-signature",
	"idempotency-key",
}

type scrubRule struct {
	re    *regexp.Regexp
	label string
}

// scrubRules run in order. Ids go first so their hex runs are not read as
// phone numbers; the loose phone pattern goes last.
var scrubRules = []scrubRule{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	// Stripe keys and object ids: sk_live_..., whsec_..., pm_..., cs_test_...
	{regexp.MustCompile(`\b(?:sk|rk|pk|whsec|pm|pi|cs|tok)_[A-Za-z0-9_]{6,}\b`), "[REDACTED:token]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

// redact scrubs buyer contact details, ids and payment credentials from s.
func redact(s string) string {
	for _, r := range scrubRules {
		if s == "" {
			break
		}
		s = r.re.ReplaceAllString(s, r.label)
	}
	return s
}

// RedactingLogger writes one access-log line per request through the
// request-scoped logger: info for 2xx/3xx, warn for 4xx, error for 5xx.
// Matched requests log the route pattern so purchase sessions in URLs are
// never written; bodies are never logged.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]bool, len(defaultMaskedHeaders)+len(opts.MaskHeaders))
	for _, h := range append(append([]string{}, defaultMaskedHeaders...), opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = true
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		headers := scrubHeaders(c, masked)
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = redact(c.Request.URL.Path)
		}
		status := c.Writer.Status()

		lg := LoggerFrom(c)
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = lg.Error()
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		if RequestIDFrom(c) == "" {
			rid := c.Writer.Header().Get(requestIDHeader)
			if rid == "" {
				rid = c.GetHeader(requestIDHeader)
			}
			ev = ev.Str("request_id", rid)
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Str("query", redact(c.Request.URL.RawQuery)).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Str("client_ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Dict("headers", headers).
			Msg("http_request")
	}
}

func scrubHeaders(c *gin.Context, masked map[string]bool) *zerolog.Event {
	names := make([]string, 0, len(c.Request.Header))
	for k := range c.Request.Header {
		names = append(names, k)
	}
	sort.Strings(names)

	d := zerolog.Dict()
	for _, k := range names {
		if masked[strings.ToLower(k)] {
			d.Str(k, "[REDACTED]")
			continue
		}
		d.Str(k, redact(strings.Join(c.Request.Header.Values(k), ", ")))
	}
	return d
}
