package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// envelopeEngine mimics RequestID: a request id header plus a scoped logger.
func envelopeEngine(rid string, buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	logger := zerolog.New(buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Set("logger", &logger)
		c.Next()
	})
	return r
}

func TestFail_ServerErrorsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeEngine("rid-500", &buf)
	r.GET("/boom", func(c *gin.Context) { fail(c, http.StatusInternalServerError, ErrCodeInternal, "kaboom") })
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "nope") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	got := decode[ErrorResponse](t, w)
	if w.Code != http.StatusInternalServerError || got.RequestID != "rid-500" || got.Message != "kaboom" {
		t.Fatalf("500 envelope: %d %+v", w.Code, got)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) || !strings.Contains(buf.String(), `"path":"/boom"`) {
		t.Fatalf("expected error log with path, got: %s", buf.String())
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if got := decode[ErrorResponse](t, w); w.Code != http.StatusNotFound || got.Code != ErrCodeNotFound {
		t.Fatalf("404 envelope: %d %+v", w.Code, got)
	}
	if buf.Len() != 0 {
		t.Fatalf("4xx must not log, got: %s", buf.String())
	}
}

func TestFailWith_RulesAndFallback(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	rules := []errorRule{
		{errA, http.StatusConflict, "a_code", "fixed message"},
		{errB, http.StatusBadRequest, "b_code", ""},
	}
	fallback := errorRule{status: http.StatusBadGateway, code: "other"}

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{errA, http.StatusConflict, "a_code", "fixed message"},
		{fmt.Errorf("wrapped: %w", errB), http.StatusBadRequest, "b_code", "wrapped: b"},
		{errors.New("upstream"), http.StatusBadGateway, "other", "upstream"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		r := envelopeEngine("rid", &buf)
		r.GET("/x", func(c *gin.Context) { failWith(c, tc.err, rules, fallback) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

		got := decode[ErrorResponse](t, w)
		if w.Code != tc.wantStatus || got.Code != tc.wantCode || got.Message != tc.wantMsg {
			t.Fatalf("%v: got %d %+v", tc.err, w.Code, got)
		}
	}
}

func TestOK_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeEngine("rid", &buf)
	r.GET("/ok", func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"ok": true, "n": 1}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	body := decode[map[string]any](t, w)
	if w.Code != http.StatusCreated || body["ok"] != true || body["n"].(float64) != 1 {
		t.Fatalf("unexpected ok response: %d %#v", w.Code, body)
	}
}
