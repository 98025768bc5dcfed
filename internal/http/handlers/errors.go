// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase and snake_case.
//   - Generic codes (e.g., bad_request, not_found, conflict) mirror common HTTP
//     status semantics.
//   - Domain codes (e.g., invalid_order, payment_declined) name failures of the
//     purchase pipeline that a status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "payment_declined",
//	  "message": "payment declined"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidOrder          = "invalid_order"
	ErrCodeInvalidDay            = "invalid_day"
	ErrCodeInvalidScope          = "invalid_scope"
	ErrCodePaymentDeclined       = "payment_declined"
	ErrCodeInvalidWebhook        = "invalid_webhook"
	ErrCodeGenerationUnavailable = "generation_unavailable"
	ErrCodeGenerationFailed      = "generation_failed"
	ErrCodeQueueUnavailable      = "queue_unavailable"
	ErrCodeListFailed            = "list_failed"
	ErrCodeIdempotencyInFlight   = "idempotency_in_flight"
)
