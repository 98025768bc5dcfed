package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/cache"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/generator"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/mailer"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/payment"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/pdf"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/queue"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/storage"
)

// ----- Fakes -----

type fakeCompleter struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return "", errors.New("upstream 503")
	}
	return "### Morning\n- Ride tram 28 up to the castle\n- Coffee in Graça\n\n" +
		"### Evening\nDinner in Bairro Alto, then fado in Alfama.", nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

// countingProvider records direct charges and holds each one briefly so
// concurrent requests overlap.
type countingProvider struct {
	*payment.Manual
	mu      sync.Mutex
	charges int
	keys    []string
}

func (c *countingProvider) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	c.mu.Lock()
	c.charges++
	c.keys = append(c.keys, req.IdempotencyKey)
	c.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	return c.Manual.Charge(ctx, req)
}

func (c *countingProvider) seen() (int, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.charges, append([]string(nil), c.keys...)
}

// flakyConfirmer fails the first `failures` confirmations without touching
// the purchase, the way a locked database would.
type flakyConfirmer struct {
	next     PaymentConfirmer
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyConfirmer) ConfirmPayment(ctx context.Context, id string, c Customer) (*domain.Purchase, error) {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("database is locked")
	}
	return f.next.ConfirmPayment(ctx, id, c)
}

// blockingCompleter holds every call until its context ends.
type blockingCompleter struct {
	entered chan struct{}
	once    sync.Once
}

func (b *blockingCompleter) Complete(ctx context.Context, _, _ string) (string, error) {
	b.once.Do(func() { close(b.entered) })
	<-ctx.Done()
	return "", ctx.Err()
}

type countingMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
	emails      map[bool]int
}

func (c *countingMetrics) PurchaseTransition(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transitions == nil {
		c.transitions = map[string]int{}
	}
	c.transitions[status]++
}

func (c *countingMetrics) EmailSent(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.emails == nil {
		c.emails = map[bool]int{}
	}
	c.emails[ok]++
}

// ----- Harness -----

type harness struct {
	db        *gorm.DB
	q         *queue.Queue
	store     *storage.Store
	cache     *cache.Cache
	llm       *fakeCompleter
	mail      *fakeMailer
	metrics   *countingMetrics
	fulfill   *FulfillmentService
	checkout  *CheckoutService
	purchases *PurchaseService
	content   *ContentService
	jobs      *JobService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "services.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = repo.UpsertDestinations(context.Background(), db, []domain.Destination{
		{ID: "lisbon", Name: "Lisbon", Country: "Portugal", Region: "Southern Europe",
			Summary: "Hills, trams and the Tagus.", Highlights: "Alfama\nBelém\nSintra day trip"},
		{ID: "chiang-mai", Name: "Chiang Mai", Country: "Thailand", Region: "Northern Thailand",
			Summary: "Temples and night markets.", Highlights: "Old City temples\nNimman cafes"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	db := newTestDB(t)

	store, err := storage.New(filepath.Join(dir, "downloads"), filepath.Join(dir, "guides"), "http://guides.test")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	for _, name := range []string{domain.ToolkitAsset, domain.NomadBonusAsset} {
		if err := os.WriteFile(filepath.Join(store.AssetsDir(), name), []byte("%PDF-1.4 static"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := &harness{
		db:      db,
		store:   store,
		cache:   cache.Open(filepath.Join(dir, "cache.json")),
		llm:     &fakeCompleter{},
		mail:    &fakeMailer{},
		metrics: &countingMetrics{},
	}
	gen, err := generator.New(generator.VariantResilient, h.llm)
	if err != nil {
		t.Fatal(err)
	}
	h.q = queue.New(queue.WithRecorder(&JobRecorder{DB: db}))

	h.fulfill = &FulfillmentService{
		DB:                db,
		Jobs:              h.q,
		Generator:         gen,
		Renderer:          pdf.NewRenderer(pdf.DefaultOptions(), zerolog.Nop()),
		Store:             store,
		Mailer:            h.mail,
		Metrics:           h.metrics,
		Log:               zerolog.Nop(),
		GenerationTimeout: 10 * time.Second,
	}
	h.checkout = &CheckoutService{
		DB:          db,
		Payments:    &payment.Manual{SuccessURL: "http://shop.test/ok?session_id={CHECKOUT_SESSION_ID}"},
		Fulfillment: h.fulfill,
		Log:         zerolog.Nop(),
	}
	h.purchases = &PurchaseService{DB: db, Jobs: h.q, Metrics: h.metrics}
	h.content = &ContentService{
		DB:        db,
		Cache:     h.cache,
		Generator: gen,
		Jobs:      h.q,
		Log:       zerolog.Nop(),
		TTL:       time.Hour,
		GuideDays: 2,
	}
	h.jobs = &JobService{DB: db, Jobs: h.q}

	h.fulfill.Register(h.q)
	h.content.Register(h.q)
	h.q.Start(context.Background())
	t.Cleanup(h.q.Stop)
	return h
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := h.q.WaitIdle(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

func order(productType, dest string) OrderInput {
	return OrderInput{
		Order: domain.ProductOrder{Type: productType, DestinationID: dest, Days: 2},
		Email: "ana@example.com",
		Name:  "Ana",
	}
}
