// Package services – FulfillmentService
//
// FulfillmentService turns a confirmed payment into a delivered guide. Static
// products complete immediately with their pre-built asset. Generated
// products are handed to the job queue, whose single worker runs the steps
// in order: generate (30%), render (60%), store (90%), complete (100%), then
// send the confirmation email. Any failure before completion marks the
// purchase failed with no download link; an email failure is only logged.
// A job cut short by shutdown leaves its purchase in progress, and Resume
// dispatches it again on the next start.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/generator"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/mailer"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/queue"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
)

// Job kinds owned by FulfillmentService.
const (
	JobKindFulfillment = "fulfillment"
	JobKindNotify      = "notify"
)

// Renderer turns guide text into a PDF.
type Renderer interface {
	Render(src string) ([]byte, error)
}

// ArtifactStore persists generated guides and resolves static assets.
type ArtifactStore interface {
	PutGuide(data []byte) (string, error)
	AssetURL(name string) (string, error)
}

// Customer is the buyer contact reported with a payment.
type Customer struct {
	Email string
	Name  string
}

type purchasePayload struct {
	PurchaseID string `json:"purchase_id"`
}

// FulfillmentService runs the purchase fulfillment pipeline.
type FulfillmentService struct {
	DB        *gorm.DB
	Jobs      JobQueue
	Generator generator.Generator // nil: generated products fail
	Renderer  Renderer
	Store     ArtifactStore
	Mailer    mailer.Sender // nil: no confirmation emails
	Metrics   PipelineMetrics
	Log       zerolog.Logger

	GenerationTimeout time.Duration
	MailTimeout       time.Duration

	// held from a confirmation's commit until its job is enqueued, and for
	// a whole resume scan
	dispatchMu sync.Mutex
}

// Register installs the job handlers on q.
func (s *FulfillmentService) Register(q *queue.Queue) {
	q.Register(JobKindFulfillment, s.handleFulfillment)
	q.Register(JobKindNotify, s.handleNotify)
}

// ConfirmPayment is the single entry point for a successful payment, from
// a webhook or a direct charge. A purchase that is no longer pending is
// returned unchanged, so redelivered confirmations are harmless.
func (s *FulfillmentService) ConfirmPayment(ctx context.Context, purchaseID string, c Customer) (*domain.Purchase, error) {
	tr := otel.Tracer("services/FulfillmentService")
	ctx, span := tr.Start(ctx, "ConfirmPayment",
		trace.WithAttributes(attribute.String("purchase.id", purchaseID)),
	)
	defer span.End()

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	var (
		current   *domain.Purchase
		confirmed bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetPurchaseForUpdate(ctx, tx, purchaseID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		current = p
		if p.Status != domain.StatusPending {
			return nil
		}
		if c.Email != "" && p.CustomerEmail == "" {
			p.CustomerEmail = c.Email
		}
		if c.Name != "" && p.CustomerName == "" {
			p.CustomerName = c.Name
		}
		p.Status = domain.StatusProcessing
		confirmed = true
		return repo.SavePurchase(ctx, tx, p)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !confirmed {
		s.Log.Debug().Str("purchase_id", purchaseID).Str("status", string(current.Status)).
			Msg("payment already confirmed")
		return current, nil
	}
	s.transitioned(domain.StatusProcessing)
	s.Log.Info().Str("purchase_id", purchaseID).Str("product", string(current.ProductType)).
		Msg("payment confirmed")

	return s.dispatch(ctx, current)
}

// dispatch resolves the product of a processing purchase and either
// completes it with a static asset or enqueues the fulfillment job.
func (s *FulfillmentService) dispatch(ctx context.Context, p *domain.Purchase) (*domain.Purchase, error) {
	product, err := domain.ProductOf(p)
	if err != nil {
		return s.fail(ctx, p.ID, err)
	}
	if id := product.DestinationID(); id != "" {
		if _, err := repo.GetDestination(ctx, s.DB, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				err = fmt.Errorf("%w: %s", ErrDestinationNotFound, id)
			}
			return s.fail(ctx, p.ID, err)
		}
	}

	if asset := product.StaticAsset(); asset != "" {
		url, err := s.Store.AssetURL(asset)
		if err != nil {
			return s.fail(ctx, p.ID, err)
		}
		done, err := s.complete(ctx, p.ID, url)
		if err != nil {
			return nil, err
		}
		if _, err := s.Jobs.Add(JobKindNotify, purchasePayload{PurchaseID: done.ID}); err != nil {
			s.Log.Warn().Err(err).Str("purchase_id", done.ID).Msg("confirmation email not queued")
		}
		return done, nil
	}

	jobID := uuid.NewString()
	if err := s.DB.WithContext(ctx).Model(&domain.Purchase{}).
		Where("id = ?", p.ID).Update("job_id", jobID).Error; err != nil {
		return nil, err
	}
	p.JobID = &jobID
	if err := s.Jobs.AddWithID(jobID, JobKindFulfillment, purchasePayload{PurchaseID: p.ID}); err != nil {
		return s.fail(ctx, p.ID, fmt.Errorf("%w: %v", ErrQueueUnavailable, err))
	}
	s.Log.Info().Str("purchase_id", p.ID).Str("job_id", jobID).Msg("fulfillment job enqueued")
	return p, nil
}

func (s *FulfillmentService) handleFulfillment(ctx context.Context, job queue.Job, progress queue.ProgressFunc) error {
	var pl purchasePayload
	if err := job.Decode(&pl); err != nil {
		return err
	}
	tr := otel.Tracer("services/FulfillmentService")
	ctx, span := tr.Start(ctx, "Fulfill",
		trace.WithAttributes(
			attribute.String("purchase.id", pl.PurchaseID),
			attribute.String("job.id", job.ID),
		),
	)
	defer span.End()

	err := s.fulfill(ctx, pl.PurchaseID, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			// shutdown: the purchase stays in progress for the resume scan
			s.Log.Warn().Err(err).Str("purchase_id", pl.PurchaseID).Str("job_id", job.ID).
				Msg("fulfillment interrupted")
			return err
		}
		if _, ferr := s.markFailed(context.WithoutCancel(ctx), pl.PurchaseID, err); ferr != nil {
			s.Log.Error().Err(ferr).Str("purchase_id", pl.PurchaseID).Msg("could not mark purchase failed")
		}
	}
	return err
}

func (s *FulfillmentService) fulfill(ctx context.Context, purchaseID string, progress queue.ProgressFunc) error {
	p, err := repo.GetPurchase(ctx, s.DB, purchaseID)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		return nil
	}
	if p.Status != domain.StatusGenerating {
		if p, err = advance(ctx, s.DB, s.Metrics, p.ID, domain.StatusGenerating, nil); err != nil {
			return err
		}
	}

	product, err := domain.ProductOf(p)
	if err != nil {
		return err
	}
	req, err := s.request(ctx, product)
	if err != nil {
		return err
	}
	if s.Generator == nil {
		return ErrGenerationUnavailable
	}

	genCtx, cancel := s.generationContext(ctx)
	text, err := s.Generator.Generate(genCtx, req)
	cancel()
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	progress(30)

	doc, err := s.Renderer.Render(text)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	progress(60)

	url, err := s.Store.PutGuide(doc)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	progress(90)

	done, err := s.complete(ctx, p.ID, url)
	if err != nil {
		return err
	}
	progress(100)

	s.notify(ctx, done)
	return nil
}

func (s *FulfillmentService) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.GenerationTimeout > 0 {
		return context.WithTimeout(ctx, s.GenerationTimeout)
	}
	return context.WithCancel(ctx)
}

// request builds the generator request for a generated product.
func (s *FulfillmentService) request(ctx context.Context, product domain.Product) (generator.Request, error) {
	d, err := repo.GetDestination(ctx, s.DB, product.DestinationID())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return generator.Request{}, fmt.Errorf("%w: %s", ErrDestinationNotFound, product.DestinationID())
		}
		return generator.Request{}, err
	}
	req := generator.Request{Subject: subjectOf(d)}
	switch v := product.(type) {
	case domain.ItineraryGuide:
		req.Kind, req.Days = generator.KindItinerary, v.Days
	case domain.PetGuide:
		req.Kind = generator.KindPet
	case domain.NomadPackage:
		req.Kind = generator.KindNomad
	default:
		return generator.Request{}, fmt.Errorf("%w: %s is not generated", domain.ErrInvalidProduct, product.Type())
	}
	return req, nil
}

func subjectOf(d *domain.Destination) generator.Subject {
	var hl []string
	for _, h := range strings.Split(d.Highlights, "\n") {
		if h = strings.TrimSpace(h); h != "" {
			hl = append(hl, h)
		}
	}
	return generator.Subject{ID: d.ID, Name: d.Name, Country: d.Country, Region: d.Region, Highlights: hl}
}

func (s *FulfillmentService) complete(ctx context.Context, id, url string) (*domain.Purchase, error) {
	p, err := advance(ctx, s.DB, s.Metrics, id, domain.StatusCompleted, func(p *domain.Purchase) {
		now := time.Now().UTC()
		p.DownloadURL = &url
		p.CompletedAt = &now
		p.FailureReason = ""
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info().Str("purchase_id", id).Str("download_url", url).Msg("purchase completed")
	return p, nil
}

// fail marks the purchase failed and returns cause alongside it.
func (s *FulfillmentService) fail(ctx context.Context, id string, cause error) (*domain.Purchase, error) {
	p, err := s.markFailed(ctx, id, cause)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	return p, cause
}

// markFailed records cause on the purchase. A purchase that is already
// terminal is returned unchanged.
func (s *FulfillmentService) markFailed(ctx context.Context, id string, cause error) (*domain.Purchase, error) {
	p, err := advance(ctx, s.DB, s.Metrics, id, domain.StatusFailed, func(p *domain.Purchase) {
		p.FailureReason = cause.Error()
		p.DownloadURL = nil
	})
	if errors.Is(err, domain.ErrInvalidTransition) {
		return repo.GetPurchase(ctx, s.DB, id)
	}
	if err != nil {
		return nil, err
	}
	s.Log.Warn().Err(cause).Str("purchase_id", id).Msg("purchase failed")
	return p, nil
}

func (s *FulfillmentService) transitioned(st domain.PurchaseStatus) {
	if s.Metrics != nil {
		s.Metrics.PurchaseTransition(string(st))
	}
}

func (s *FulfillmentService) handleNotify(ctx context.Context, job queue.Job, _ queue.ProgressFunc) error {
	var pl purchasePayload
	if err := job.Decode(&pl); err != nil {
		return err
	}
	p, err := repo.GetPurchase(ctx, s.DB, pl.PurchaseID)
	if err != nil {
		return err
	}
	if p.Status == domain.StatusCompleted && !p.EmailSent {
		s.notify(ctx, p)
	}
	return nil
}

// notify sends the confirmation email. Failures are logged and counted;
// they never change the purchase status.
func (s *FulfillmentService) notify(ctx context.Context, p *domain.Purchase) {
	if s.Mailer == nil || p.CustomerEmail == "" {
		return
	}
	c := mailer.Confirmation{
		To:         p.CustomerEmail,
		Name:       p.CustomerName,
		PurchaseID: p.ID,
	}
	if p.DownloadURL != nil {
		c.DownloadURL = *p.DownloadURL
	}
	if product, err := domain.ProductOf(p); err == nil {
		c.Product = product.Title()
		if id := product.DestinationID(); id != "" {
			if d, err := repo.GetDestination(ctx, s.DB, id); err == nil {
				c.Destination = d.Name
			}
		}
		if nomad, ok := product.(domain.NomadPackage); ok {
			if u, err := s.Store.AssetURL(nomad.BonusAsset()); err == nil {
				c.BonusURL = u
			} else {
				s.Log.Warn().Err(err).Str("purchase_id", p.ID).Msg("bonus asset unavailable")
			}
		}
	}

	lg := s.Log.With().Str("purchase_id", p.ID).Logger()
	msg, err := c.Message()
	if err == nil {
		timeout := s.MailTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		err = s.Mailer.Send(mctx, msg)
		cancel()
	}
	if s.Metrics != nil {
		s.Metrics.EmailSent(err == nil)
	}
	if err != nil {
		lg.Warn().Err(err).Msg("confirmation email failed")
		return
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Purchase{}).
		Where("id = ?", p.ID).Update("email_sent", true).Error; err != nil {
		lg.Warn().Err(err).Msg("email_sent flag not stored")
		return
	}
	p.EmailSent = true
	lg.Info().Msg("confirmation email sent")
}

// Resume re-dispatches paid purchases that have no live job, such as those
// interrupted by a restart. It returns how many purchases were resumed.
func (s *FulfillmentService) Resume(ctx context.Context) (int, error) {
	tr := otel.Tracer("services/FulfillmentService")
	ctx, span := tr.Start(ctx, "Resume")
	defer span.End()

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	stuck, err := repo.ListPurchasesByStatus(ctx, s.DB, domain.StatusProcessing, domain.StatusGenerating)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range stuck {
		p := &stuck[i]
		if p.JobID != nil {
			if _, live := s.Jobs.Get(*p.JobID); live {
				continue
			}
		}
		p.JobID = nil
		if _, err := s.dispatch(ctx, p); err != nil {
			s.Log.Warn().Err(err).Str("purchase_id", p.ID).Msg("resume failed")
			continue
		}
		n++
	}
	span.SetAttributes(attribute.Int("resumed", n))
	return n, nil
}
