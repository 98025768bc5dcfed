// Package handlers implements the guide shop's HTTP endpoints.
//
// Every failure leaves through fail(), which writes the ErrorResponse
// envelope and logs 5xx with the request-scoped logger. Service errors are
// translated with small rule tables (see failWith) so that each endpoint
// lists the sentinels it understands in one place.
//
//	HTTP/1.1 402 Payment Required
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "payment_declined",
//	  "message": "payment declined"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Safe to show to buyers
	Message string `json:"message" example:"resource not found"`
}

func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("path", c.FullPath()).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail writes the error envelope; used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// errorRule maps a service sentinel onto a response. An empty msg sends
// err.Error().
type errorRule struct {
	target error
	status int
	code   string
	msg    string
}

// failWith writes the first rule whose target matches err, else fallback.
func failWith(c *gin.Context, err error, rules []errorRule, fallback errorRule) {
	r := fallback
	for _, cand := range rules {
		if errors.Is(err, cand.target) {
			r = cand
			break
		}
	}
	msg := r.msg
	if msg == "" {
		msg = err.Error()
	}
	fail(c, r.status, r.code, msg)
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
