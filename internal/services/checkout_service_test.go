package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/payment"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
)

func TestCreateCheckout_PendingPurchase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.checkout.CreateCheckout(ctx, order("premium_itinerary", " Lisbon "))
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	p := res.Purchase
	if p.Status != domain.StatusPending || p.AmountCents != 2999 || p.Currency != "usd" ||
		p.DestinationID == nil || *p.DestinationID != "lisbon" || p.Days != 2 {
		t.Fatalf("purchase = %+v", p)
	}
	if !strings.HasPrefix(p.PaymentSessionID, "cs_manual_") || !strings.Contains(res.URL, p.PaymentSessionID) {
		t.Fatalf("session %q / url %q", p.PaymentSessionID, res.URL)
	}
}

func TestCreateCheckout_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bad := order("premium_itinerary", "")
	if _, err := h.checkout.CreateCheckout(ctx, bad); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("missing destination: %v", err)
	}
	bad = order("gift_card", "lisbon")
	if _, err := h.checkout.CreateCheckout(ctx, bad); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("unknown product: %v", err)
	}
	bad = order("pet_guide", "lisbon")
	bad.Email = "not-an-email"
	if _, err := h.checkout.CreateCheckout(ctx, bad); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("bad email: %v", err)
	}
	if _, err := h.checkout.CreateCheckout(ctx, order("pet_guide", "atlantis")); !errors.Is(err, ErrDestinationNotFound) {
		t.Fatalf("unknown destination: %v", err)
	}
	if n, _ := repo.CountPurchases(ctx, h.db, ""); n != 0 {
		t.Fatalf("rejected orders must not create purchases, got %d", n)
	}
}

func TestDirectPayment_DeclinedAndMissingMethod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, _, err := h.checkout.DirectPayment(ctx, order("snowbird_toolkit", ""), payment.DeclinedMethod, ""); !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("want ErrPaymentDeclined, got %v", err)
	}
	if _, _, err := h.checkout.DirectPayment(ctx, order("snowbird_toolkit", ""), "  ", ""); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("want ErrInvalidOrder, got %v", err)
	}
	if n, _ := repo.CountPurchases(ctx, h.db, ""); n != 0 {
		t.Fatalf("declined payments must not create purchases, got %d", n)
	}
}

func TestDirectPayment_IdempotencyKeyReplays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, replayed, err := h.checkout.DirectPayment(ctx, order("snowbird_toolkit", ""), "pm_card_visa", "key-1")
	if err != nil || replayed {
		t.Fatalf("first: %v %v", err, replayed)
	}
	second, replayed, err := h.checkout.DirectPayment(ctx, order("snowbird_toolkit", ""), "pm_card_visa", "key-1")
	if err != nil || !replayed || second.ID != first.ID {
		t.Fatalf("replay: %+v %v %v", second, replayed, err)
	}
	third, replayed, err := h.checkout.DirectPayment(ctx, order("snowbird_toolkit", ""), "pm_card_visa", "key-2")
	if err != nil || replayed || third.ID == first.ID {
		t.Fatalf("new key: %+v %v %v", third, replayed, err)
	}
	if n, _ := repo.CountPurchases(ctx, h.db, ""); n != 2 {
		t.Fatalf("want 2 purchases, got %d", n)
	}
	h.waitIdle(t)
}

func webhookBody(id, session string, paid bool) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"type":"checkout.session.completed","session_id":%q,"customer_email":"ana@example.com","paid":%t}`, id, session, paid))
}

func TestHandleWebhook_ConfirmsOnceAndDeduplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.checkout.CreateCheckout(ctx, order("premium_itinerary", "lisbon"))
	if err != nil {
		t.Fatal(err)
	}
	body := webhookBody("evt_1", res.Purchase.PaymentSessionID, true)

	out, err := h.checkout.HandleWebhook(ctx, body, "")
	if err != nil || out != WebhookConfirmed {
		t.Fatalf("first delivery: %q %v", out, err)
	}
	out, err = h.checkout.HandleWebhook(ctx, body, "")
	if err != nil || out != WebhookDuplicate {
		t.Fatalf("redelivery: %q %v", out, err)
	}
	h.waitIdle(t)

	st, err := h.purchases.Status(ctx, res.Purchase.PaymentSessionID)
	if err != nil || st.Status != domain.StatusCompleted || st.DownloadURL == nil {
		t.Fatalf("status after webhook: %+v %v", st, err)
	}
	if got := h.llm.calls.Load(); got != 2 {
		t.Fatalf("redelivered webhook generated again: %d calls", got)
	}
}

func TestHandleWebhook_IgnoredEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.checkout.CreateCheckout(ctx, order("snowbird_toolkit", ""))
	if err != nil {
		t.Fatal(err)
	}
	if out, err := h.checkout.HandleWebhook(ctx, webhookBody("evt_unpaid", res.Purchase.PaymentSessionID, false), ""); err != nil || out != WebhookIgnored {
		t.Fatalf("unpaid: %q %v", out, err)
	}
	if out, err := h.checkout.HandleWebhook(ctx, webhookBody("evt_unknown", "cs_unknown", true), ""); err != nil || out != WebhookIgnored {
		t.Fatalf("unknown session: %q %v", out, err)
	}
	if out, err := h.checkout.HandleWebhook(ctx, []byte(`{"id":"evt_r","type":"charge.refunded"}`), ""); err != nil || out != WebhookIgnored {
		t.Fatalf("other type: %q %v", out, err)
	}
	got, _ := repo.GetPurchase(ctx, h.db, res.Purchase.ID)
	if got.Status != domain.StatusPending {
		t.Fatalf("ignored events must not confirm, status %s", got.Status)
	}
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	h.checkout.Payments = &payment.Manual{Secret: "whsec"}
	body := webhookBody("evt_sig", "cs_1", true)

	if _, err := h.checkout.HandleWebhook(context.Background(), body, "forged"); !errors.Is(err, ErrInvalidWebhook) {
		t.Fatalf("want ErrInvalidWebhook, got %v", err)
	}
	if _, err := h.checkout.HandleWebhook(context.Background(), body, payment.Sign("whsec", body)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestDirectPayment_ConcurrentSameKeyChargesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	prov := &countingProvider{Manual: &payment.Manual{}}
	h.checkout.Payments = prov

	type result struct {
		p        *domain.Purchase
		replayed bool
		err      error
	}
	results := make([]result, 2)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			p, replayed, err := h.checkout.DirectPayment(ctx, order("snowbird_toolkit", ""), "pm_card_visa", "same-key")
			results[i] = result{p, replayed, err}
		}(i)
	}
	close(start)
	wg.Wait()

	var winner *domain.Purchase
	for _, r := range results {
		if r.err == nil && !r.replayed {
			if winner != nil {
				t.Fatalf("two requests charged under one key: %+v", results)
			}
			winner = r.p
		}
	}
	if winner == nil {
		t.Fatalf("no request charged: %+v", results)
	}
	for _, r := range results {
		switch {
		case r.err == nil && !r.replayed:
		case r.err == nil && r.replayed && r.p.ID == winner.ID:
		case errors.Is(r.err, ErrIdempotencyInFlight):
		default:
			t.Fatalf("unexpected outcome %+v", r)
		}
	}

	charges, keys := prov.seen()
	if charges != 1 || keys[0] != "same-key" {
		t.Fatalf("charges=%d keys=%v", charges, keys)
	}
	if n, _ := repo.CountPurchases(ctx, h.db, ""); n != 1 {
		t.Fatalf("want 1 purchase, got %d", n)
	}
	h.waitIdle(t)

	again, replayed, err := h.checkout.DirectPayment(ctx, order("snowbird_toolkit", ""), "pm_card_visa", "same-key")
	if err != nil || !replayed || again.ID != winner.ID {
		t.Fatalf("later retry: %+v %v %v", again, replayed, err)
	}
	if charges, _ := prov.seen(); charges != 1 {
		t.Fatalf("retry charged again: %d", charges)
	}
}

func TestDirectPayment_DeclineReleasesKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, _, err := h.checkout.DirectPayment(ctx, order("snowbird_toolkit", ""), payment.DeclinedMethod, "retry-key"); !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("want ErrPaymentDeclined, got %v", err)
	}
	p, replayed, err := h.checkout.DirectPayment(ctx, order("snowbird_toolkit", ""), "pm_card_visa", "retry-key")
	if err != nil || replayed || p.Status != domain.StatusCompleted {
		t.Fatalf("retry after decline: %+v %v %v", p, replayed, err)
	}
	h.waitIdle(t)
}

func TestHandleWebhook_FailedConfirmationIsRedelivered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.checkout.CreateCheckout(ctx, order("premium_itinerary", "lisbon"))
	if err != nil {
		t.Fatal(err)
	}
	flaky := &flakyConfirmer{next: h.fulfill}
	flaky.failures.Store(1)
	h.checkout.Fulfillment = flaky
	body := webhookBody("evt_locked", res.Purchase.PaymentSessionID, true)

	out, err := h.checkout.HandleWebhook(ctx, body, "")
	if err == nil || errors.Is(err, ErrInvalidWebhook) || out != "" {
		t.Fatalf("first delivery must fail for a retry: %q %v", out, err)
	}
	if p, _ := repo.GetPurchase(ctx, h.db, res.Purchase.ID); p.Status != domain.StatusPending {
		t.Fatalf("status after failed confirm = %s", p.Status)
	}

	out, err = h.checkout.HandleWebhook(ctx, body, "")
	if err != nil || out != WebhookConfirmed || flaky.calls.Load() != 2 {
		t.Fatalf("redelivery: %q %v calls=%d", out, err, flaky.calls.Load())
	}
	h.waitIdle(t)

	st, err := h.purchases.Status(ctx, res.Purchase.PaymentSessionID)
	if err != nil || st.Status != domain.StatusCompleted {
		t.Fatalf("status = %+v %v", st, err)
	}
	if out, err := h.checkout.HandleWebhook(ctx, body, ""); err != nil || out != WebhookDuplicate {
		t.Fatalf("third delivery: %q %v", out, err)
	}
}
