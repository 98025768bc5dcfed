package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
)

// ListPurchasesResponse wraps a page of purchases and pagination information.
type ListPurchasesResponse struct {
	Purchases  []domain.Purchase `json:"purchases"`
	Pagination Pagination        `json:"pagination"`
}

// PurchaseStatus godoc
// @ID          purchaseStatus
// @Summary     Poll purchase status
// @Description Looks a purchase up by checkout session (or purchase id) and reports progress. A finished job that the purchase has not caught up with is reconciled first.
// @Tags        Purchases
// @Produce     json
// @Param       session  path  string  true  "Checkout session id or purchase id"
// @Success     200  {object} services.PurchaseStatusView
// @Failure     404  {object} handlers.ErrorResponse "Purchase not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /purchases/{session}/status [get]
func (h *Handlers) PurchaseStatus(c *gin.Context) {
	st, err := h.purchases.Status(c.Request.Context(), strings.TrimSpace(c.Param("session")))
	if err != nil {
		if errors.Is(err, services.ErrPurchaseNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "purchase not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	c.Header("Cache-Control", "no-store")
	ok(c, http.StatusOK, st)
}

// ListPurchases godoc
// @ID          listPurchases
// @Summary     List purchases (paginated)
// @Description Audit view of purchases, newest first. Supports weak ETag via If-None-Match.
// @Tags        Purchases
// @Produce     json
// @Param       status         query   string  false "Filter by status"  Enums(pending, processing, generating, completed, failed)
// @Param       page           query   int     false "Page number"       minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"    minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Success     200  {object} handlers.ListPurchasesResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad status"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /purchases [get]
func (h *Handlers) ListPurchases(c *gin.Context) {
	ctx := c.Request.Context()
	status := domain.PurchaseStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	if status != "" && !status.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown status")
		return
	}
	page, pageSize := clampPagination(c)

	if count, maxTS, err := h.purchases.Stats(ctx, status); err == nil {
		name := "purchases"
		if status != "" {
			name += ":" + string(status)
		}
		if weakETag(c, name, count, maxTS) {
			return
		}
	}

	items, total, err := h.purchases.ListPage(ctx, status, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListPurchasesResponse{
		Purchases:  items,
		Pagination: newPagination(page, pageSize, total),
	})
}
