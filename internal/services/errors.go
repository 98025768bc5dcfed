// Package services defines the business logic for the catalog, checkout,
// purchase tracking, guide fulfillment and day-content previews.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

// Lookup errors.
var (
	// ErrPurchaseNotFound indicates that no purchase matches the given
	// purchase id or payment session id.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrDestinationNotFound indicates that the destination is not in the catalog.
	ErrDestinationNotFound = errors.New("destination not found")

	// ErrJobNotFound indicates that the job is neither live nor recorded.
	ErrJobNotFound = errors.New("job not found")
)

// Validation errors.
var (
	// ErrInvalidOrder wraps product and customer validation failures.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidDay is returned when a day number is outside 1..max.
	ErrInvalidDay = errors.New("day out of range")

	// ErrInvalidScope is returned for an unknown cache clear scope.
	ErrInvalidScope = errors.New("invalid cache scope")

	// ErrIdempotencyInFlight is returned while another request holding the
	// same Idempotency-Key has not produced its purchase yet.
	ErrIdempotencyInFlight = errors.New("request with this idempotency key is in progress")
)

// Upstream and pipeline errors.
var (
	// ErrGenerationUnavailable is returned when no content generator is configured.
	ErrGenerationUnavailable = errors.New("content generation is not configured")

	// ErrPaymentDeclined is returned when the provider refuses a direct charge.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrInvalidWebhook is returned for webhooks that fail verification or decoding.
	ErrInvalidWebhook = errors.New("invalid webhook")

	// ErrQueueUnavailable is returned when the job queue rejects work.
	ErrQueueUnavailable = errors.New("fulfillment queue unavailable")
)
