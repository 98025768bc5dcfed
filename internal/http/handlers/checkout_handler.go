// Checkout and payment HTTP handlers.
//
// This file exposes the money side of the API:
//   - POST /checkout          (pending purchase + hosted checkout session)
//   - POST /payments/direct   (charge now, Idempotency-Key honoured)
//   - POST /webhooks/stripe   (verified provider events)
//
// Every successful payment ends in the same fulfillment pipeline regardless
// of which endpoint it arrived through.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/http/middleware"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
)

// HeaderStripeSignature carries the webhook signature.
const HeaderStripeSignature = "Stripe-Signature"

// OrderRequest is the JSON payload shared by checkout and direct payment.
type OrderRequest struct {
	ProductType   string `json:"product_type"   binding:"required" example:"premium_itinerary"`
	DestinationID string `json:"destination_id" example:"lisbon"`
	Days          int    `json:"days"           example:"7"`
	Email         string `json:"email"          binding:"required" example:"ana@example.com"`
	Name          string `json:"name"           example:"Ana"`
}

func (r OrderRequest) input() services.OrderInput {
	return services.OrderInput{
		Order: domain.ProductOrder{
			Type:          r.ProductType,
			DestinationID: r.DestinationID,
			Days:          r.Days,
		},
		Email: r.Email,
		Name:  r.Name,
	}
}

// DirectPaymentRequest adds a payment method token to an order.
type DirectPaymentRequest struct {
	OrderRequest
	PaymentMethod string `json:"payment_method" binding:"required" example:"pm_card_visa"`
}

// CheckoutResponse is returned by POST /checkout.
type CheckoutResponse struct {
	PurchaseID  string `json:"purchase_id"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
	StatusURL   string `json:"status_url"`
}

// WebhookResponse acknowledges a provider event.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}

var orderRules = []errorRule{
	{services.ErrInvalidOrder, http.StatusBadRequest, ErrCodeInvalidOrder, ""},
	{services.ErrDestinationNotFound, http.StatusNotFound, ErrCodeNotFound, "destination not found"},
	{services.ErrPaymentDeclined, http.StatusPaymentRequired, ErrCodePaymentDeclined, "payment declined"},
	{services.ErrIdempotencyInFlight, http.StatusConflict, ErrCodeIdempotencyInFlight, "a request with this Idempotency-Key is still in progress"},
	{services.ErrQueueUnavailable, http.StatusServiceUnavailable, ErrCodeQueueUnavailable, "payment received, fulfillment could not be scheduled"},
}

func orderError(c *gin.Context, err error) {
	failWith(c, err, orderRules, errorRule{status: http.StatusInternalServerError, code: ErrCodeInternal})
}

func (h *Handlers) statusURL(sessionID string) string {
	return h.basePath + "/purchases/" + sessionID + "/status"
}

// CreateCheckout godoc
// @ID          createCheckout
// @Summary     Start a checkout
// @Description Records a pending purchase and opens a hosted checkout session for it.
// @Tags        Checkout
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.OrderRequest  true  "Product and buyer"
// @Success     201  {object} handlers.CheckoutResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid order"
// @Failure     404  {object} handlers.ErrorResponse "Destination not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /checkout [post]
func (h *Handlers) CreateCheckout(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product_type and email required")
		return
	}
	res, err := h.checkout.CreateCheckout(c.Request.Context(), req.input())
	if err != nil {
		orderError(c, err)
		return
	}
	ok(c, http.StatusCreated, CheckoutResponse{
		PurchaseID:  res.Purchase.ID,
		SessionID:   res.Purchase.PaymentSessionID,
		CheckoutURL: res.URL,
		StatusURL:   h.statusURL(res.Purchase.PaymentSessionID),
	})
}

// DirectPayment godoc
// @ID          directPayment
// @Summary     Pay directly
// @Description Charges the payment method and starts fulfillment. Repeating a request with the same Idempotency-Key returns the original purchase without charging again.
// @Tags        Checkout
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Client key for safe retries"  example(order-7f3a)
// @Param       body             body    handlers.DirectPaymentRequest  true  "Order and payment method"
// @Success     201  {object} domain.Purchase
// @Success     200  {object} domain.Purchase "Replay of an earlier request"
// @Header      201  {string} Location "Status URL"
// @Failure     400  {object} handlers.ErrorResponse "Invalid order"
// @Failure     402  {object} handlers.ErrorResponse "Payment declined"
// @Failure     404  {object} handlers.ErrorResponse "Destination not found"
// @Failure     503  {object} handlers.ErrorResponse "Queue unavailable"
// @Router      /payments/direct [post]
func (h *Handlers) DirectPayment(c *gin.Context) {
	key, _ := middleware.GetIdempotencyKey(c)
	if key == "" {
		key = c.GetHeader(middleware.HeaderIdempotencyKey)
	}

	var req DirectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product_type, email and payment_method required")
		return
	}

	p, replayed, err := h.checkout.DirectPayment(c.Request.Context(), req.input(), req.PaymentMethod, key)
	if err != nil {
		orderError(c, err)
		return
	}
	c.Header("Location", h.statusURL(p.PaymentSessionID))
	if replayed {
		c.Header("Idempotent-Replay", "true")
		ok(c, http.StatusOK, p)
		return
	}
	ok(c, http.StatusCreated, p)
}

// StripeWebhook godoc
// @ID          stripeWebhook
// @Summary     Payment provider webhook
// @Description Verifies the signature and confirms the purchase for completed checkouts. Replayed events are acknowledged without side effects.
// @Tags        Checkout
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature  header  string  true  "Provider signature"
// @Success     200  {object} handlers.WebhookResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid webhook"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /webhooks/stripe [post]
func (h *Handlers) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}
	outcome, err := h.checkout.HandleWebhook(c.Request.Context(), payload, c.GetHeader(HeaderStripeSignature))
	if err != nil {
		if errors.Is(err, services.ErrInvalidWebhook) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidWebhook, "invalid webhook")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, WebhookResponse{Received: true, Outcome: string(outcome)})
}
