// Package payment abstracts the payment provider: hosted checkout sessions,
// direct charges, and verification of provider webhooks.
package payment

import (
	"context"
	"errors"
)

// EventCheckoutCompleted is the only webhook event that drives fulfillment.
const EventCheckoutCompleted = "checkout.session.completed"

var (
	ErrInvalidSignature = errors.New("payment: invalid webhook signature")
	ErrMalformedEvent   = errors.New("payment: malformed webhook event")
	ErrDeclined         = errors.New("payment: charge declined")
)

// CheckoutRequest starts a hosted checkout for one purchase.
type CheckoutRequest struct {
	PurchaseID    string
	Title         string
	CustomerEmail string
	AmountCents   int64
	Currency      string
}

// Checkout is a created checkout session. URL is where the buyer pays.
type Checkout struct {
	SessionID string
	URL       string
}

// ChargeRequest is a direct, immediately confirmed payment. A non-empty
// IdempotencyKey is passed on to the provider so a retried request cannot
// charge twice.
type ChargeRequest struct {
	PurchaseID     string
	Title          string
	CustomerEmail  string
	AmountCents    int64
	Currency       string
	PaymentMethod  string
	IdempotencyKey string
}

// Charge is the outcome of a direct payment. ID keys the purchase the same
// way a checkout session id does.
type Charge struct {
	ID   string
	Paid bool
}

// Event is a verified webhook notification.
type Event struct {
	ID            string
	Type          string
	SessionID     string
	PurchaseID    string
	CustomerEmail string
	CustomerName  string
	Paid          bool
}

// Provider is a payment backend.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error)
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
	ParseWebhook(payload []byte, signature string) (Event, error)
}
