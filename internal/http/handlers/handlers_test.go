package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
)

// ---- stub services ----

type stubCatalog struct {
	items    []domain.Destination
	count    int64
	maxTS    *time.Time
	gotQ     string
	gotLimit int
	listHits int
}

func (s *stubCatalog) List(context.Context) ([]domain.Destination, error) {
	s.listHits++
	return s.items, nil
}
func (s *stubCatalog) Get(_ context.Context, id string) (*domain.Destination, error) {
	for i := range s.items {
		if s.items[i].ID == id {
			return &s.items[i], nil
		}
	}
	return nil, services.ErrDestinationNotFound
}
func (s *stubCatalog) Stats(context.Context) (int64, *time.Time, error) { return s.count, s.maxTS, nil }
func (s *stubCatalog) Search(_ context.Context, q string, k int) ([]domain.Destination, error) {
	s.gotQ, s.gotLimit = q, k
	return s.items[:1], nil
}

type stubContent struct {
	dayErr    error
	gotForce  bool
	gotScope  string
	clearErr  error
	enqErr    error
	gotEnqDay int
}

func (s *stubContent) GetDayContent(_ context.Context, dest string, day int, force bool) (*services.DayContent, error) {
	s.gotForce = force
	if s.dayErr != nil {
		return nil, s.dayErr
	}
	return &services.DayContent{DestinationID: dest, Day: day, Content: "Morning: tram 28", Cached: !force}, nil
}
func (s *stubContent) ClearCache(_ context.Context, scope, _ string) (int, error) {
	s.gotScope = scope
	if s.clearErr != nil {
		return 0, s.clearErr
	}
	return 3, nil
}
func (s *stubContent) EnqueueGeneration(_ context.Context, _ string, day int) (string, error) {
	s.gotEnqDay = day
	if s.enqErr != nil {
		return "", s.enqErr
	}
	return "job-42", nil
}

type stubCheckout struct {
	err      error
	replayed bool
	gotKey   string
	gotPM    string
	gotSig   string
	outcome  services.WebhookOutcome
}

func (s *stubCheckout) CreateCheckout(_ context.Context, in services.OrderInput) (*services.CheckoutResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.CheckoutResult{
		Purchase: &domain.Purchase{ID: "p-1", PaymentSessionID: "cs_test_1", ProductType: domain.ProductType(in.Order.Type)},
		URL:      "https://checkout.example/cs_test_1",
	}, nil
}
func (s *stubCheckout) DirectPayment(_ context.Context, _ services.OrderInput, pm, key string) (*domain.Purchase, bool, error) {
	s.gotPM, s.gotKey = pm, key
	if s.err != nil {
		return nil, false, s.err
	}
	return &domain.Purchase{ID: "p-2", PaymentSessionID: "pi_2", Status: domain.StatusProcessing}, s.replayed, nil
}
func (s *stubCheckout) HandleWebhook(_ context.Context, _ []byte, sig string) (services.WebhookOutcome, error) {
	s.gotSig = sig
	if s.err != nil {
		return "", s.err
	}
	return s.outcome, nil
}

type stubPurchases struct {
	statusErr error
	gotPage   int
	gotSize   int
	gotStatus domain.PurchaseStatus
}

func (s *stubPurchases) Status(_ context.Context, session string) (*services.PurchaseStatusView, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	url := "/downloads/guides/p-1.pdf"
	return &services.PurchaseStatusView{PurchaseID: "p-1", Status: domain.StatusCompleted, Progress: 100, DownloadURL: &url}, nil
}
func (s *stubPurchases) ListPage(_ context.Context, st domain.PurchaseStatus, page, size int) ([]domain.Purchase, int64, error) {
	s.gotStatus, s.gotPage, s.gotSize = st, page, size
	return []domain.Purchase{{ID: "p-1"}}, 45, nil
}
func (s *stubPurchases) Stats(context.Context, domain.PurchaseStatus) (int64, *time.Time, error) {
	return 45, nil, nil
}

type stubJobs struct{}

func (stubJobs) Get(_ context.Context, id string) (*services.JobView, error) {
	if id != "job-42" {
		return nil, services.ErrJobNotFound
	}
	return &services.JobView{ID: id, Kind: "generation", State: "active", Progress: 40, Live: true}, nil
}

type fixture struct {
	r         *gin.Engine
	catalog   *stubCatalog
	content   *stubContent
	checkout  *stubCheckout
	purchases *stubPurchases
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		catalog: &stubCatalog{
			items: []domain.Destination{{ID: "lisbon", Name: "Lisbon"}, {ID: "kyoto", Name: "Kyoto"}},
			count: 2,
		},
		content:   &stubContent{},
		checkout:  &stubCheckout{outcome: services.WebhookConfirmed},
		purchases: &stubPurchases{},
	}
	h := New(Services{
		Catalog:   f.catalog,
		Content:   f.content,
		Checkout:  f.checkout,
		Purchases: f.purchases,
		Jobs:      stubJobs{},
		BasePath:  "/api/v1/",
	})

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/destinations", h.ListDestinations)
	api.GET("/destinations/:id", h.GetDestination)
	api.GET("/destinations/:id/days/:day", h.GetDayContent)
	api.POST("/checkout", h.CreateCheckout)
	api.POST("/payments/direct", h.DirectPayment)
	api.POST("/webhooks/stripe", h.StripeWebhook)
	api.GET("/purchases", h.ListPurchases)
	api.GET("/purchases/:session/status", h.PurchaseStatus)
	api.POST("/generation", h.EnqueueGeneration)
	api.GET("/jobs/:id", h.GetJob)
	api.DELETE("/cache", h.ClearCache)
	f.r = r
	return f
}

func (f *fixture) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid json %q: %v", w.Body.String(), err)
	}
	return v
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, w).Code
}

// ---- catalog ----

func TestListDestinations_ETagRoundTrip(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/destinations", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag != `W/"destinations:2:0"` {
		t.Fatalf("etag=%q", etag)
	}
	if got := decode[ListDestinationsResponse](t, w); len(got.Destinations) != 2 {
		t.Fatalf("destinations=%v", got.Destinations)
	}

	w = f.do(http.MethodGet, "/api/v1/destinations", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("expected empty 304, got %d %q", w.Code, w.Body.String())
	}
	if f.catalog.listHits != 1 {
		t.Fatalf("List must not run on a 304, hits=%d", f.catalog.listHits)
	}
}

func TestListDestinations_SearchClampsLimit(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/destinations?q=%20tiles%20&limit=500", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if w.Header().Get("ETag") != "" {
		t.Fatalf("search results carry no ETag")
	}
	if f.catalog.gotQ != "tiles" || f.catalog.gotLimit != maxSearchLimit {
		t.Fatalf("search called with %q/%d", f.catalog.gotQ, f.catalog.gotLimit)
	}
	if got := decode[ListDestinationsResponse](t, w); got.Query != "tiles" {
		t.Fatalf("query echo=%q", got.Query)
	}

	f.do(http.MethodGet, "/api/v1/destinations?q=tiles", "", nil)
	if f.catalog.gotLimit != defaultSearchLimit {
		t.Fatalf("default limit=%d", f.catalog.gotLimit)
	}
}

func TestGetDestination_NotFound(t *testing.T) {
	f := newFixture(t)
	if w := f.do(http.MethodGet, "/api/v1/destinations/kyoto", "", nil); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	w := f.do(http.MethodGet, "/api/v1/destinations/atlantis", "", nil)
	if w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeNotFound {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

// ---- content ----

func TestGetDayContent_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"bad day", services.ErrInvalidDay, http.StatusBadRequest, ErrCodeInvalidDay},
		{"unknown destination", services.ErrDestinationNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"no generator", services.ErrGenerationUnavailable, http.StatusServiceUnavailable, ErrCodeGenerationUnavailable},
		{"upstream", errors.New("model timeout"), http.StatusBadGateway, ErrCodeGenerationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.content.dayErr = tc.err
			w := f.do(http.MethodGet, "/api/v1/destinations/lisbon/days/3", "", nil)
			if w.Code != tc.wantCode || errCode(t, w) != tc.wantErr {
				t.Fatalf("got %d %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetDayContent_ParsesDayAndForceRefresh(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/destinations/lisbon/days/two", "", nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidDay {
		t.Fatalf("non-numeric day: %d %s", w.Code, w.Body.String())
	}

	w = f.do(http.MethodGet, "/api/v1/destinations/LISBON/days/2?force_refresh=yes", "", nil)
	if w.Code != http.StatusOK || !f.content.gotForce {
		t.Fatalf("force_refresh not honoured: %d force=%v", w.Code, f.content.gotForce)
	}
	got := decode[services.DayContent](t, w)
	if got.DestinationID != "lisbon" || got.Day != 2 {
		t.Fatalf("body=%+v", got)
	}
}

func TestEnqueueGeneration_AcceptedWithJobURL(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/generation", `{"destination_id":"lisbon","day":4}`, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	got := decode[JobHandle](t, w)
	if got.JobID != "job-42" || got.URL != "/api/v1/jobs/job-42" || f.content.gotEnqDay != 4 {
		t.Fatalf("handle=%+v day=%d", got, f.content.gotEnqDay)
	}

	if w := f.do(http.MethodPost, "/api/v1/generation", `{"day":-1}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing destination: %d", w.Code)
	}

	f.content.enqErr = services.ErrQueueUnavailable
	w = f.do(http.MethodPost, "/api/v1/generation", `{"destination_id":"lisbon"}`, nil)
	if w.Code != http.StatusServiceUnavailable || errCode(t, w) != ErrCodeQueueUnavailable {
		t.Fatalf("queue full: %d %s", w.Code, w.Body.String())
	}
}

func TestClearCache_ScopeHandling(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodDelete, "/api/v1/cache", "", nil)
	if w.Code != http.StatusOK || f.content.gotScope != services.ScopeAll {
		t.Fatalf("default scope: %d %q", w.Code, f.content.gotScope)
	}
	if got := decode[ClearCacheResponse](t, w); got.Removed != 3 {
		t.Fatalf("removed=%d", got.Removed)
	}

	f.content.clearErr = services.ErrInvalidScope
	w = f.do(http.MethodDelete, "/api/v1/cache?scope=planet", "", nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidScope {
		t.Fatalf("bad scope: %d %s", w.Code, w.Body.String())
	}

	f.content.clearErr = errors.New("disk full")
	if w := f.do(http.MethodDelete, "/api/v1/cache", "", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("storage error: %d", w.Code)
	}
}

// ---- checkout ----

func TestCreateCheckout(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/checkout", `{"product_type":"premium_itinerary","destination_id":"lisbon","email":"ana@example.com"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	got := decode[CheckoutResponse](t, w)
	if got.SessionID != "cs_test_1" || got.StatusURL != "/api/v1/purchases/cs_test_1/status" || got.CheckoutURL == "" {
		t.Fatalf("response=%+v", got)
	}

	if w := f.do(http.MethodPost, "/api/v1/checkout", `{"product_type":"premium_itinerary"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing email: %d", w.Code)
	}

	f.checkout.err = services.ErrInvalidOrder
	w = f.do(http.MethodPost, "/api/v1/checkout", `{"product_type":"yacht","email":"ana@example.com"}`, nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidOrder {
		t.Fatalf("invalid order: %d %s", w.Code, w.Body.String())
	}
}

func TestDirectPayment_CreatedReplayAndDeclined(t *testing.T) {
	f := newFixture(t)
	body := `{"product_type":"snowbird_toolkit","email":"ana@example.com","payment_method":"pm_card_visa"}`
	hdr := map[string]string{"Idempotency-Key": "order-7f3a"}

	w := f.do(http.MethodPost, "/api/v1/payments/direct", body, hdr)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Location") != "/api/v1/purchases/pi_2/status" || w.Header().Get("Idempotent-Replay") != "" {
		t.Fatalf("headers=%v", w.Header())
	}
	if f.checkout.gotKey != "order-7f3a" || f.checkout.gotPM != "pm_card_visa" {
		t.Fatalf("key=%q pm=%q", f.checkout.gotKey, f.checkout.gotPM)
	}

	f.checkout.replayed = true
	w = f.do(http.MethodPost, "/api/v1/payments/direct", body, hdr)
	if w.Code != http.StatusOK || w.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("replay: %d %v", w.Code, w.Header())
	}

	f.checkout.err = services.ErrPaymentDeclined
	w = f.do(http.MethodPost, "/api/v1/payments/direct", body, nil)
	if w.Code != http.StatusPaymentRequired || errCode(t, w) != ErrCodePaymentDeclined {
		t.Fatalf("declined: %d %s", w.Code, w.Body.String())
	}

	f.checkout.err = services.ErrIdempotencyInFlight
	w = f.do(http.MethodPost, "/api/v1/payments/direct", body, hdr)
	if w.Code != http.StatusConflict || errCode(t, w) != ErrCodeIdempotencyInFlight {
		t.Fatalf("in flight: %d %s", w.Code, w.Body.String())
	}
	f.checkout.err = nil

	if w := f.do(http.MethodPost, "/api/v1/payments/direct", `{"product_type":"snowbird_toolkit","email":"a@b.co"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing payment_method: %d", w.Code)
	}
}

func TestStripeWebhook(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/v1/webhooks/stripe", `{"id":"evt_1"}`, map[string]string{HeaderStripeSignature: "t=1,v1=abc"})
	if w.Code != http.StatusOK || f.checkout.gotSig != "t=1,v1=abc" {
		t.Fatalf("status=%d sig=%q", w.Code, f.checkout.gotSig)
	}
	if got := decode[WebhookResponse](t, w); !got.Received || got.Outcome != "confirmed" {
		t.Fatalf("response=%+v", got)
	}

	f.checkout.err = services.ErrInvalidWebhook
	w = f.do(http.MethodPost, "/api/v1/webhooks/stripe", `{}`, nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidWebhook {
		t.Fatalf("invalid: %d %s", w.Code, w.Body.String())
	}

	f.checkout.err = errors.New("confirm payment: database is locked")
	w = f.do(http.MethodPost, "/api/v1/webhooks/stripe", `{"id":"evt_2"}`, nil)
	if w.Code != http.StatusInternalServerError || errCode(t, w) != ErrCodeInternal {
		t.Fatalf("unconfirmed payment must ask for redelivery: %d %s", w.Code, w.Body.String())
	}
}

// ---- purchases and jobs ----

func TestPurchaseStatus(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/purchases/cs_test_1/status", "", nil)
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("status=%d headers=%v", w.Code, w.Header())
	}
	got := decode[services.PurchaseStatusView](t, w)
	if got.Status != domain.StatusCompleted || got.DownloadURL == nil {
		t.Fatalf("view=%+v", got)
	}

	f.purchases.statusErr = services.ErrPurchaseNotFound
	if w := f.do(http.MethodGet, "/api/v1/purchases/cs_nope/status", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", w.Code)
	}
}

func TestListPurchases_FilterAndPagination(t *testing.T) {
	f := newFixture(t)

	if w := f.do(http.MethodGet, "/api/v1/purchases?status=refunded", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: %d", w.Code)
	}

	w := f.do(http.MethodGet, "/api/v1/purchases?status=Completed&page=2&page_size=20", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if f.purchases.gotStatus != domain.StatusCompleted || f.purchases.gotPage != 2 || f.purchases.gotSize != 20 {
		t.Fatalf("list args: %q %d %d", f.purchases.gotStatus, f.purchases.gotPage, f.purchases.gotSize)
	}
	if etag := w.Header().Get("ETag"); etag != `W/"purchases:completed:45:0"` {
		t.Fatalf("etag=%q", etag)
	}
	got := decode[ListPurchasesResponse](t, w)
	if got.Pagination.TotalPages != 3 || !got.Pagination.HasNext || got.Pagination.Total != 45 {
		t.Fatalf("pagination=%+v", got.Pagination)
	}

	f.do(http.MethodGet, "/api/v1/purchases?page=0&page_size=1000", "", nil)
	if f.purchases.gotPage != 1 || f.purchases.gotSize != 100 {
		t.Fatalf("clamped to %d/%d", f.purchases.gotPage, f.purchases.gotSize)
	}
}

func TestGetJob(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/jobs/job-42", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if got := decode[services.JobView](t, w); got.Progress != 40 || !got.Live {
		t.Fatalf("job=%+v", got)
	}
	w = f.do(http.MethodGet, "/api/v1/jobs/nope", "", nil)
	if w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeNotFound {
		t.Fatalf("missing job: %d %s", w.Code, w.Body.String())
	}
}

func Test_newPagination(t *testing.T) {
	p := newPagination(3, 20, 45)
	if p.TotalPages != 3 || p.HasNext {
		t.Fatalf("last page: %+v", p)
	}
	if p := newPagination(1, 20, 0); p.TotalPages != 0 || p.HasNext {
		t.Fatalf("empty: %+v", p)
	}
}
