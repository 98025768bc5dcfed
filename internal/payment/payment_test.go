package payment

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

func TestManual_CheckoutAndCharge(t *testing.T) {
	m := &Manual{SuccessURL: "http://shop.test/ok?session_id={CHECKOUT_SESSION_ID}"}
	co, err := m.CreateCheckout(context.Background(), CheckoutRequest{PurchaseID: "p1", AmountCents: 2999, Currency: "usd"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(co.SessionID, "cs_manual_") || co.URL != "http://shop.test/ok?session_id="+co.SessionID {
		t.Fatalf("checkout = %+v", co)
	}

	ch, err := m.Charge(context.Background(), ChargeRequest{PaymentMethod: "pm_card_visa"})
	if err != nil || !ch.Paid || !strings.HasPrefix(ch.ID, "pi_manual_") {
		t.Fatalf("charge = %+v, %v", ch, err)
	}
	if _, err := m.Charge(context.Background(), ChargeRequest{PaymentMethod: DeclinedMethod}); !errors.Is(err, ErrDeclined) {
		t.Fatalf("want ErrDeclined, got %v", err)
	}
}

func TestManual_ParseWebhook(t *testing.T) {
	m := &Manual{Secret: "s3cret"}
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed","session_id":"cs_1","customer_email":"a@example.com"}`)

	ev, err := m.ParseWebhook(body, Sign("s3cret", body))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.ID != "evt_1" || ev.SessionID != "cs_1" || !ev.Paid || ev.CustomerEmail != "a@example.com" {
		t.Fatalf("event = %+v", ev)
	}

	if _, err := m.ParseWebhook(body, "bad"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("want ErrInvalidSignature, got %v", err)
	}

	open := &Manual{}
	if _, err := open.ParseWebhook([]byte(`{"id":"evt_2","type":"checkout.session.completed"}`), ""); !errors.Is(err, ErrMalformedEvent) {
		t.Fatalf("missing session should be malformed, got %v", err)
	}
	unpaid, err := open.ParseWebhook([]byte(`{"id":"e","type":"checkout.session.completed","session_id":"cs","paid":false}`), "")
	if err != nil || unpaid.Paid {
		t.Fatalf("explicit unpaid: %+v %v", unpaid, err)
	}
}

func TestStripe_ParseWebhook(t *testing.T) {
	s, err := NewStripe(StripeConfig{SecretKey: "sk_test_x", WebhookSecret: "whsec_test"})
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte(`{
	  "id": "evt_123",
	  "object": "event",
	  "api_version": "2020-08-27",
	  "type": "checkout.session.completed",
	  "data": {"object": {
	    "id": "cs_test_1",
	    "object": "checkout.session",
	    "client_reference_id": "purchase-1",
	    "payment_status": "paid",
	    "customer_details": {"email": "ana@example.com", "name": "Ana"}
	  }}
	}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	ev, err := s.ParseWebhook(signed.Payload, signed.Header)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.ID != "evt_123" || ev.Type != EventCheckoutCompleted || ev.SessionID != "cs_test_1" ||
		ev.PurchaseID != "purchase-1" || ev.CustomerEmail != "ana@example.com" || ev.CustomerName != "Ana" || !ev.Paid {
		t.Fatalf("event = %+v", ev)
	}

	if _, err := s.ParseWebhook(payload, "t=1,v1=deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("want ErrInvalidSignature, got %v", err)
	}

	other := []byte(`{"id":"evt_9","object":"event","type":"charge.refunded","data":{"object":{}}}`)
	signedOther := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: other, Secret: "whsec_test", Timestamp: time.Now()})
	ev, err = s.ParseWebhook(signedOther.Payload, signedOther.Header)
	if err != nil || ev.Type != "charge.refunded" || ev.SessionID != "" {
		t.Fatalf("other event = %+v, %v", ev, err)
	}
}

func TestNewStripe_RequiresKey(t *testing.T) {
	if _, err := NewStripe(StripeConfig{}); err == nil {
		t.Fatalf("expected error without key")
	}
}
