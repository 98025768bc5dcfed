package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/utils"
)

//
// Service contracts (context-aware)
//

// CatalogService reads the destination catalog.
type CatalogService interface {
	List(ctx context.Context) ([]domain.Destination, error)
	Get(ctx context.Context, id string) (*domain.Destination, error)
	// Stats returns the row count and latest update time, used for ETags.
	Stats(ctx context.Context) (int64, *time.Time, error)
	Search(ctx context.Context, q string, k int) ([]domain.Destination, error)
}

// ContentService serves and pre-generates day content.
type ContentService interface {
	GetDayContent(ctx context.Context, destinationID string, day int, forceRefresh bool) (*services.DayContent, error)
	ClearCache(ctx context.Context, scope, destinationID string) (int, error)
	EnqueueGeneration(ctx context.Context, destinationID string, day int) (string, error)
}

// CheckoutService takes orders and payments.
type CheckoutService interface {
	CreateCheckout(ctx context.Context, in services.OrderInput) (*services.CheckoutResult, error)
	DirectPayment(ctx context.Context, in services.OrderInput, paymentMethod, key string) (*domain.Purchase, bool, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (services.WebhookOutcome, error)
}

// PurchaseService reports purchase progress.
type PurchaseService interface {
	Status(ctx context.Context, sessionID string) (*services.PurchaseStatusView, error)
	ListPage(ctx context.Context, status domain.PurchaseStatus, page, pageSize int) ([]domain.Purchase, int64, error)
	Stats(ctx context.Context, status domain.PurchaseStatus) (int64, *time.Time, error)
}

// JobService looks up background jobs.
type JobService interface {
	Get(ctx context.Context, id string) (*services.JobView, error)
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers.
type Services struct {
	Catalog   CatalogService
	Content   ContentService
	Checkout  CheckoutService
	Purchases PurchaseService
	Jobs      JobService

	// BasePath prefixes links returned to clients, e.g. "/api/v1".
	BasePath string
}

// Handlers groups the HTTP endpoints of the guide shop.
type Handlers struct {
	catalog   CatalogService
	content   ContentService
	checkout  CheckoutService
	purchases PurchaseService
	jobs      JobService
	basePath  string
}

// New constructs and returns a Handlers instance bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		catalog:   s.Catalog,
		content:   s.Content,
		checkout:  s.Checkout,
		purchases: s.Purchases,
		jobs:      s.Jobs,
		basePath:  strings.TrimRight(s.BasePath, "/"),
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.QueryInt(c.Query("page"), defaultPage, 1, math.MaxInt32)
	pageSize = utils.QueryInt(c.Query("page_size"), defaultPageSize, 1, maxPageSize)
	return
}

// weakETag sets a weak ETag built from the resource name, row count and
// newest update time. It reports true when the request's If-None-Match
// matches, in which case a 304 has been written.
func weakETag(c *gin.Context, name string, count int64, maxTS *time.Time) bool {
	var ts int64
	if maxTS != nil {
		ts = maxTS.Unix()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, name, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
