package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig configures the Stripe provider.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string

	// Backends overrides the API endpoints (tests).
	Backends *stripe.Backends
}

// Stripe implements Provider on the Stripe API.
type Stripe struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripe returns a Stripe provider.
func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("payment: stripe secret key required")
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, cfg.Backends)
	return &Stripe{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}, nil
}

func (s *Stripe) Name() string { return "stripe" }

// CreateCheckout opens a one-item payment-mode Checkout Session.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (Checkout, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(req.PurchaseID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Title),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("purchase_id", req.PurchaseID)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Checkout{}, fmt.Errorf("payment: create checkout: %w", err)
	}
	return Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

// Charge creates and confirms a PaymentIntent with the given payment method.
func (s *Stripe) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(req.Currency),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(req.Title),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("purchase_id", req.PurchaseID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey("direct:" + req.IdempotencyKey)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
			return Charge{}, fmt.Errorf("%w: %s", ErrDeclined, se.Msg)
		}
		return Charge{}, fmt.Errorf("payment: charge: %w", err)
	}
	return Charge{ID: pi.ID, Paid: pi.Status == stripe.PaymentIntentStatusSucceeded}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Events other than checkout.session.completed are returned with only ID
// and Type set.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if ev.Data == nil || json.Unmarshal(ev.Data.Raw, &sess) != nil || sess.ID == "" {
		return Event{}, ErrMalformedEvent
	}
	out.SessionID = sess.ID
	out.PurchaseID = sess.ClientReferenceID
	out.CustomerEmail = sess.CustomerEmail
	if sess.CustomerDetails != nil {
		if sess.CustomerDetails.Email != "" {
			out.CustomerEmail = sess.CustomerDetails.Email
		}
		out.CustomerName = sess.CustomerDetails.Name
	}
	out.Paid = sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
	return out, nil
}
