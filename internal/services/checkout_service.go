// Package services – CheckoutService
//
// CheckoutService owns the money side of a purchase: hosted checkout
// sessions, direct charges with Idempotency-Key replay, and verified payment
// webhooks. Every successful payment is handed to FulfillmentService through
// ConfirmPayment, whichever way it arrived.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/payment"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
)

// IdempotencyScopeDirect scopes Idempotency-Key values sent to direct payments.
const IdempotencyScopeDirect = "payments/direct"

// PaymentConfirmer is implemented by FulfillmentService.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, purchaseID string, c Customer) (*domain.Purchase, error)
}

// OrderInput is a product selection plus the buyer's contact.
type OrderInput struct {
	Order domain.ProductOrder `validate:"-"`
	Email string `validate:"required,email,max=255"`
	Name  string `validate:"max=255"`
}

// CheckoutResult is a pending purchase and where to send the buyer to pay.
type CheckoutResult struct {
	Purchase *domain.Purchase
	URL      string
}

// CheckoutService creates purchases and accepts payments for them.
type CheckoutService struct {
	DB             *gorm.DB
	Payments       payment.Provider
	Fulfillment    PaymentConfirmer
	Currency       string
	IdempotencyTTL time.Duration
	Log            zerolog.Logger
}

var inputValidate = validator.New()

// prepare validates in and resolves its product against the catalog.
func (s *CheckoutService) prepare(ctx context.Context, in *OrderInput) (domain.Product, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := inputValidate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	product, err := domain.ParseProduct(in.Order)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if id := product.DestinationID(); id != "" {
		if _, err := repo.GetDestination(ctx, s.DB, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrDestinationNotFound
			}
			return nil, err
		}
	}
	return product, nil
}

func (s *CheckoutService) newPurchase(id string, in OrderInput, product domain.Product, sessionID string) *domain.Purchase {
	p := &domain.Purchase{
		ID:               id,
		CustomerEmail:    in.Email,
		CustomerName:     in.Name,
		ProductType:      product.Type(),
		AmountCents:      product.PriceCents(),
		Currency:         s.currency(),
		Status:           domain.StatusPending,
		PaymentSessionID: sessionID,
	}
	if dest := product.DestinationID(); dest != "" {
		p.DestinationID = &dest
	}
	if g, ok := product.(domain.ItineraryGuide); ok {
		p.Days = g.Days
	}
	return p
}

func (s *CheckoutService) currency() string {
	if s.Currency == "" {
		return "usd"
	}
	return s.Currency
}

// CreateCheckout records a pending purchase behind a new hosted checkout session.
func (s *CheckoutService) CreateCheckout(ctx context.Context, in OrderInput) (*CheckoutResult, error) {
	tr := otel.Tracer("services/CheckoutService")
	ctx, span := tr.Start(ctx, "CreateCheckout",
		trace.WithAttributes(attribute.String("product.type", in.Order.Type)),
	)
	defer span.End()

	product, err := s.prepare(ctx, &in)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	co, err := s.Payments.CreateCheckout(ctx, payment.CheckoutRequest{
		PurchaseID:    id,
		Title:         product.Title(),
		CustomerEmail: in.Email,
		AmountCents:   product.PriceCents(),
		Currency:      s.currency(),
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	p := s.newPurchase(id, in, product, co.SessionID)
	if err := repo.CreatePurchase(ctx, s.DB, p); err != nil {
		return nil, err
	}
	s.Log.Info().Str("purchase_id", p.ID).Str("provider", s.Payments.Name()).Msg("checkout created")
	return &CheckoutResult{Purchase: p, URL: co.URL}, nil
}

// DirectPayment charges paymentMethod and confirms the purchase in one call.
// With a non-empty key a repeated request returns the original purchase and
// replayed=true instead of charging again. The key is reserved before the
// charge; a concurrent request with the same key gets ErrIdempotencyInFlight.
// A declined or failed charge releases the key.
func (s *CheckoutService) DirectPayment(ctx context.Context, in OrderInput, paymentMethod, key string) (p *domain.Purchase, replayed bool, err error) {
	tr := otel.Tracer("services/CheckoutService")
	ctx, span := tr.Start(ctx, "DirectPayment",
		trace.WithAttributes(
			attribute.String("product.type", in.Order.Type),
			attribute.Bool("idempotency.key_present", key != ""),
		),
	)
	defer span.End()

	key = strings.TrimSpace(key)
	if prev, ok := s.replay(ctx, key); ok {
		span.SetAttributes(attribute.Bool("idempotency.replayed", true))
		return prev, true, nil
	}

	product, err := s.prepare(ctx, &in)
	if err != nil {
		return nil, false, err
	}
	if strings.TrimSpace(paymentMethod) == "" {
		return nil, false, fmt.Errorf("%w: payment method required", ErrInvalidOrder)
	}

	id := uuid.NewString()
	if key != "" {
		// reserve the key first: only the request that inserts it charges
		if _, err := repo.CreateIdempotency(ctx, s.DB, IdempotencyScopeDirect, key, id, 201, s.ttl()); err != nil {
			if !errors.Is(err, repo.ErrDuplicate) {
				return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
			}
			if prev, ok := s.replay(ctx, key); ok {
				span.SetAttributes(attribute.Bool("idempotency.replayed", true))
				return prev, true, nil
			}
			return nil, false, ErrIdempotencyInFlight
		}
	}

	charge, err := s.Payments.Charge(ctx, payment.ChargeRequest{
		PurchaseID:     id,
		Title:          product.Title(),
		CustomerEmail:  in.Email,
		AmountCents:    product.PriceCents(),
		Currency:       s.currency(),
		PaymentMethod:  paymentMethod,
		IdempotencyKey: key,
	})
	switch {
	case errors.Is(err, payment.ErrDeclined), err == nil && !charge.Paid:
		s.release(ctx, key, id)
		return nil, false, ErrPaymentDeclined
	case err != nil:
		s.release(ctx, key, id)
		return nil, false, fmt.Errorf("charge: %w", err)
	}

	p = s.newPurchase(id, in, product, charge.ID)
	if err := repo.CreatePurchase(ctx, s.DB, p); err != nil {
		s.release(ctx, key, id)
		return nil, false, err
	}

	confirmed, err := s.Fulfillment.ConfirmPayment(ctx, p.ID, Customer{Email: in.Email, Name: in.Name})
	if confirmed != nil {
		p = confirmed
	}
	return p, false, err
}

func (s *CheckoutService) replay(ctx context.Context, key string) (*domain.Purchase, bool) {
	if key == "" {
		return nil, false
	}
	rec, err := repo.GetIdempotency(ctx, s.DB, IdempotencyScopeDirect, key, time.Now().UTC())
	if err != nil {
		return nil, false
	}
	p, err := repo.GetPurchase(ctx, s.DB, rec.PurchaseID)
	if err != nil {
		return nil, false
	}
	return p, true
}

// release frees a key reserved for purchaseID so the client can retry.
func (s *CheckoutService) release(ctx context.Context, key, purchaseID string) {
	if key == "" {
		return
	}
	if err := repo.DeleteIdempotency(context.WithoutCancel(ctx), s.DB, IdempotencyScopeDirect, key, purchaseID); err != nil {
		s.Log.Warn().Err(err).Str("purchase_id", purchaseID).Msg("idempotency key not released")
	}
}

func (s *CheckoutService) ttl() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return s.IdempotencyTTL
}

// WebhookOutcome describes what HandleWebhook did with an event.
type WebhookOutcome string

const (
	WebhookConfirmed WebhookOutcome = "confirmed"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
)

// HandleWebhook verifies a provider webhook and confirms the purchase it
// refers to. Each provider event id is processed at most once. When the
// confirmation fails and the purchase is not terminal the event is
// forgotten and an error returned, so the provider delivers it again.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	tr := otel.Tracer("services/CheckoutService")
	ctx, span := tr.Start(ctx, "HandleWebhook",
		trace.WithAttributes(attribute.String("payment.provider", s.Payments.Name())),
	)
	defer span.End()

	ev, err := s.Payments.ParseWebhook(payload, signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	span.SetAttributes(attribute.String("event.type", ev.Type), attribute.String("event.id", ev.ID))
	lg := s.Log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()

	if err := repo.RecordWebhookEvent(ctx, s.DB, s.Payments.Name(), ev.ID, ev.Type, string(payload)); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			lg.Info().Msg("webhook already processed")
			return WebhookDuplicate, nil
		}
		return "", err
	}
	if ev.Type != payment.EventCheckoutCompleted {
		return WebhookIgnored, nil
	}
	if !ev.Paid {
		lg.Info().Str("session_id", ev.SessionID).Msg("checkout completed without payment")
		return WebhookIgnored, nil
	}

	p, err := repo.GetPurchaseBySession(ctx, s.DB, ev.SessionID)
	if errors.Is(err, repo.ErrNotFound) && ev.PurchaseID != "" {
		p, err = repo.GetPurchase(ctx, s.DB, ev.PurchaseID)
	}
	if errors.Is(err, repo.ErrNotFound) {
		lg.Warn().Str("session_id", ev.SessionID).Msg("webhook for unknown purchase")
		return WebhookIgnored, nil
	}
	if err != nil {
		return "", err
	}

	if _, err := s.Fulfillment.ConfirmPayment(ctx, p.ID, Customer{Email: ev.CustomerEmail, Name: ev.CustomerName}); err != nil {
		if cur, gerr := repo.GetPurchase(ctx, s.DB, p.ID); gerr == nil && cur.Status.Terminal() {
			// failed for good; a redelivery would change nothing
			lg.Warn().Err(err).Str("purchase_id", p.ID).Msg("fulfillment could not start")
			return WebhookConfirmed, nil
		}
		if derr := repo.DeleteWebhookEvent(context.WithoutCancel(ctx), s.DB, s.Payments.Name(), ev.ID); derr != nil {
			lg.Error().Err(derr).Msg("webhook event not released")
		}
		lg.Warn().Err(err).Str("purchase_id", p.ID).Msg("payment not confirmed; awaiting redelivery")
		return "", fmt.Errorf("confirm payment: %w", err)
	}
	return WebhookConfirmed, nil
}
