// Package app assembles the guide shop from configuration: database, cache,
// job queue, generator, renderer, storage, payments, mail and services.
// Both the HTTP server and guidectl build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/cache"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/catalog"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/config"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/generator"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/http/handlers"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/mailer"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/observability"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/payment"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/pdf"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/queue"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/scheduler"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/services"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/storage"
)

const mailTimeout = 30 * time.Second

// App holds the assembled components.
type App struct {
	Config config.Config
	Log    zerolog.Logger

	DB        *gorm.DB
	Cache     *cache.Cache
	Queue     *queue.Queue
	Generator generator.Generator // nil without an LLM key
	Renderer  *pdf.Renderer
	Store     *storage.Store
	Payments  payment.Provider
	Mailer    mailer.Sender
	Scheduler *scheduler.Scheduler

	Catalog     *services.CatalogService
	Content     *services.ContentService
	Checkout    *services.CheckoutService
	Fulfillment *services.FulfillmentService
	Purchases   *services.PurchaseService
	Jobs        *services.JobService

	started bool
}

// New opens the database, seeds the catalog and wires every service. Workers
// are not running until Start is called.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if _, err := catalog.Seed(ctx, db, cfg.CatalogPath, log); err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}

	store, err := storage.New(cfg.DownloadsDir, cfg.StaticAssetsDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	metrics := observability.Pipeline{}
	a := &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Store:    store,
		Renderer: pdf.NewRenderer(pdf.DefaultOptions(), log),
		Cache: cache.Open(cfg.CachePath,
			cache.WithLogger(log),
			cache.WithObserver(metrics),
		),
		Queue: queue.New(
			queue.WithBuffer(cfg.QueueBuffer),
			queue.WithRecorder(&services.JobRecorder{DB: db}),
			queue.WithMetrics(metrics),
			queue.WithLogger(log),
		),
	}

	if a.Generator, err = newGenerator(cfg.Generation, log); err != nil {
		return nil, err
	}
	if a.Payments, err = newPayments(cfg.Payment); err != nil {
		return nil, err
	}
	a.Mailer = newMailer(cfg.Mail, log)

	a.Catalog = &services.CatalogService{DB: db}
	a.Jobs = &services.JobService{DB: db, Jobs: a.Queue}
	a.Purchases = &services.PurchaseService{DB: db, Jobs: a.Queue, Metrics: metrics}
	a.Content = &services.ContentService{
		DB:        db,
		Cache:     a.Cache,
		Generator: a.Generator,
		Jobs:      a.Queue,
		Log:       log,
		TTL:       cfg.CacheTTL,
		Timeout:   cfg.Generation.Timeout,
		GuideDays: cfg.Generation.GuideDays,
		MaxDays:   cfg.Generation.MaxDays,
	}
	a.Fulfillment = &services.FulfillmentService{
		DB:                db,
		Jobs:              a.Queue,
		Generator:         a.Generator,
		Renderer:          a.Renderer,
		Store:             store,
		Mailer:            a.Mailer,
		Metrics:           metrics,
		Log:               log,
		GenerationTimeout: cfg.Generation.Timeout,
		MailTimeout:       mailTimeout,
	}
	a.Checkout = &services.CheckoutService{
		DB:             db,
		Payments:       a.Payments,
		Fulfillment:    a.Fulfillment,
		Currency:       cfg.Payment.Currency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Log:            log,
	}

	a.Fulfillment.Register(a.Queue)
	a.Content.Register(a.Queue)
	a.Scheduler = scheduler.New(&housekeeping{fulfill: a.Fulfillment, db: db, log: log}, log)
	return a, nil
}

// newGenerator returns nil when no LLM key is configured.
func newGenerator(cfg config.GenerationConfig, log zerolog.Logger) (generator.Generator, error) {
	llm, err := generator.NewOpenAI(generator.OpenAIConfig{
		APIKey:      cfg.OpenAIKey,
		BaseURL:     cfg.OpenAIURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	}, log)
	if errors.Is(err, generator.ErrNotConfigured) {
		log.Warn().Msg("OPENAI_API_KEY not set; guide generation disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	gen, err := generator.New(cfg.Variant, llm)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	return gen, nil
}

func newPayments(cfg config.PaymentConfig) (payment.Provider, error) {
	if cfg.StripeKey == "" {
		return &payment.Manual{Secret: cfg.WebhookSecret, SuccessURL: cfg.SuccessURL}, nil
	}
	p, err := payment.NewStripe(payment.StripeConfig{
		SecretKey:     cfg.StripeKey,
		WebhookSecret: cfg.WebhookSecret,
		SuccessURL:    cfg.SuccessURL,
		CancelURL:     cfg.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}
	return p, nil
}

func newMailer(cfg config.MailConfig, log zerolog.Logger) mailer.Sender {
	s, err := mailer.NewSMTP(mailer.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		FromName: cfg.FromName,
	})
	if err != nil {
		log.Warn().Err(err).Msg("smtp not configured; confirmation emails are logged only")
		return mailer.LogSender{Log: log}
	}
	return s
}

// Services exposes the services in the shape the HTTP handlers expect.
func (a *App) Services() handlers.Services {
	return handlers.Services{
		Catalog:   a.Catalog,
		Content:   a.Content,
		Checkout:  a.Checkout,
		Purchases: a.Purchases,
		Jobs:      a.Jobs,
	}
}

// Start runs the queue worker and, when a schedule is configured, the
// periodic resume scan. One scan runs immediately.
func (a *App) Start(ctx context.Context) error {
	a.StartWorkers(ctx)
	if n, err := a.Scheduler.RunNow(); err != nil {
		a.Log.Error().Err(err).Msg("startup resume failed")
	} else if n > 0 {
		a.Log.Info().Int("resumed", n).Msg("resumed unfinished purchases")
	}
	if a.Config.ResumeSchedule == "" {
		return nil
	}
	return a.Scheduler.Start(a.Config.ResumeSchedule)
}

// StartWorkers runs the queue worker only.
func (a *App) StartWorkers(ctx context.Context) {
	a.Queue.Start(ctx)
	a.started = true
}

// Close stops the scheduler and queue and closes the database.
func (a *App) Close() error {
	a.Scheduler.Stop()
	if a.started {
		a.Queue.Stop()
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// housekeeping is the periodic maintenance run: resume stuck purchases and
// drop expired idempotency keys.
type housekeeping struct {
	fulfill *services.FulfillmentService
	db      *gorm.DB
	log     zerolog.Logger
}

func (h *housekeeping) Resume(ctx context.Context) (int, error) {
	n, err := h.fulfill.Resume(ctx)
	if purged, perr := repo.PurgeIdempotency(ctx, h.db, time.Now().UTC()); perr != nil {
		h.log.Warn().Err(perr).Msg("idempotency purge failed")
	} else if purged > 0 {
		h.log.Debug().Int64("purged", purged).Msg("expired idempotency keys removed")
	}
	return n, err
}
