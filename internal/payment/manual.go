package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DeclinedMethod is the payment method the manual provider always declines.
const DeclinedMethod = "pm_card_declined"

// Manual is a provider for development and tests: checkouts complete when
// a webhook says so and every direct charge succeeds unless DeclinedMethod
// is used. Webhooks are JSON-encoded Events; when Secret is set the
// signature must be the hex HMAC-SHA256 of the payload.
type Manual struct {
	Secret     string
	SuccessURL string
}

func (m *Manual) Name() string { return "manual" }

func (m *Manual) CreateCheckout(_ context.Context, req CheckoutRequest) (Checkout, error) {
	id := "cs_manual_" + uuid.NewString()
	u := strings.ReplaceAll(m.SuccessURL, "{CHECKOUT_SESSION_ID}", id)
	return Checkout{SessionID: id, URL: u}, nil
}

func (m *Manual) Charge(_ context.Context, req ChargeRequest) (Charge, error) {
	if req.PaymentMethod == DeclinedMethod {
		return Charge{}, fmt.Errorf("%w: test card declined", ErrDeclined)
	}
	return Charge{ID: "pi_manual_" + uuid.NewString(), Paid: true}, nil
}

type manualEvent struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	PurchaseID    string `json:"purchase_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	Paid          *bool  `json:"paid"`
}

func (m *Manual) ParseWebhook(payload []byte, signature string) (Event, error) {
	if m.Secret != "" && !hmac.Equal([]byte(Sign(m.Secret, payload)), []byte(signature)) {
		return Event{}, ErrInvalidSignature
	}
	var me manualEvent
	if err := json.Unmarshal(payload, &me); err != nil || me.ID == "" || me.Type == "" {
		return Event{}, ErrMalformedEvent
	}
	if me.Type == EventCheckoutCompleted && me.SessionID == "" {
		return Event{}, ErrMalformedEvent
	}
	paid := me.Paid == nil || *me.Paid
	return Event{
		ID:            me.ID,
		Type:          me.Type,
		SessionID:     me.SessionID,
		PurchaseID:    me.PurchaseID,
		CustomerEmail: me.CustomerEmail,
		CustomerName:  me.CustomerName,
		Paid:          paid,
	}, nil
}

// Sign returns the manual provider's signature for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
