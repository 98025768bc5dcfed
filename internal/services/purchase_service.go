package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/queue"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
)

// JobQueue is the part of queue.Queue the services depend on.
type JobQueue interface {
	Add(kind string, payload any) (string, error)
	AddWithID(id, kind string, payload any) error
	Get(id string) (queue.Snapshot, bool)
}

// PipelineMetrics receives purchase and email outcomes. Optional.
type PipelineMetrics interface {
	PurchaseTransition(status string)
	EmailSent(ok bool)
}

// PurchaseStatusView is what a buyer polls after checkout.
type PurchaseStatusView struct {
	PurchaseID  string                `json:"purchase_id"`
	Status      domain.PurchaseStatus `json:"status"`
	Progress    int                   `json:"progress"`
	DownloadURL *string               `json:"download_url,omitempty"`
	JobID       *string               `json:"job_id,omitempty"`
	EmailSent   bool                  `json:"email_sent"`
}

// PurchaseService reads purchases and reconciles them with their jobs.
type PurchaseService struct {
	DB      *gorm.DB
	Jobs    JobQueue
	Metrics PipelineMetrics
}

// Status returns the purchase behind a payment session. When the job that
// fulfils it has finished but the purchase still reads in progress, the
// purchase is corrected before it is returned.
func (s *PurchaseService) Status(ctx context.Context, sessionID string) (*PurchaseStatusView, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(attribute.String("payment.session_id", sessionID)),
	)
	defer span.End()

	p, err := repo.GetPurchaseBySession(ctx, s.DB, sessionID)
	if errors.Is(err, repo.ErrNotFound) {
		p, err = repo.GetPurchase(ctx, s.DB, sessionID)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}

	progress := p.Status.Progress()
	if p.Status.InProgress() && p.JobID != nil {
		state, jobProgress, jobErr, ok := s.jobState(ctx, *p.JobID)
		if ok {
			switch state {
			case queue.StateActive, queue.StateWaiting:
				if jobProgress > progress {
					progress = jobProgress
				}
			case queue.StateCompleted, queue.StateFailed:
				if fixed, ferr := s.reconcile(ctx, p, state, jobErr); ferr == nil {
					p = fixed
					progress = p.Status.Progress()
				}
			}
		}
	}
	span.SetAttributes(attribute.String("purchase.status", string(p.Status)))

	return &PurchaseStatusView{
		PurchaseID:  p.ID,
		Status:      p.Status,
		Progress:    progress,
		DownloadURL: p.DownloadURL,
		JobID:       p.JobID,
		EmailSent:   p.EmailSent,
	}, nil
}

// jobState prefers the live queue and falls back to the recorded row.
func (s *PurchaseService) jobState(ctx context.Context, id string) (queue.State, int, string, bool) {
	if s.Jobs != nil {
		if snap, ok := s.Jobs.Get(id); ok {
			return snap.State, snap.Progress, snap.Error, true
		}
	}
	rec, err := repo.GetJobRecord(ctx, s.DB, id)
	if err != nil {
		return "", 0, "", false
	}
	return queue.State(rec.State), rec.Progress, rec.Error, true
}

func (s *PurchaseService) reconcile(ctx context.Context, p *domain.Purchase, state queue.State, jobErr string) (*domain.Purchase, error) {
	if state == queue.StateCompleted && p.DownloadURL != nil {
		return advance(ctx, s.DB, s.Metrics, p.ID, domain.StatusCompleted, func(p *domain.Purchase) {
			now := time.Now().UTC()
			p.CompletedAt = &now
		})
	}
	reason := jobErr
	if reason == "" {
		reason = "fulfillment job finished without an artifact"
	}
	return advance(ctx, s.DB, s.Metrics, p.ID, domain.StatusFailed, func(p *domain.Purchase) {
		p.FailureReason = reason
		p.DownloadURL = nil
	})
}

// Get returns a purchase by id.
func (s *PurchaseService) Get(ctx context.Context, id string) (*domain.Purchase, error) {
	p, err := repo.GetPurchase(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPurchaseNotFound
	}
	return p, err
}

// ListPage returns purchases newest first, optionally filtered by status.
func (s *PurchaseService) ListPage(ctx context.Context, status domain.PurchaseStatus, page, pageSize int) ([]domain.Purchase, int64, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("purchase.status", string(status)),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if status != "" && !status.Valid() {
		return nil, 0, ErrInvalidOrder
	}

	total, err := repo.CountPurchases(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Purchase{}, 0, nil
	}
	items, err := repo.ListPurchasesPage(ctx, s.DB, status, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Stats returns the row count and latest update for ETag computation.
func (s *PurchaseService) Stats(ctx context.Context, status domain.PurchaseStatus) (int64, *time.Time, error) {
	return repo.PurchasesStats(ctx, s.DB, status)
}

// advance moves purchase id to next inside a transaction, applying mutate to
// the locked row first. Regressions return domain.ErrInvalidTransition.
func advance(ctx context.Context, db *gorm.DB, m PipelineMetrics, id string, next domain.PurchaseStatus, mutate func(*domain.Purchase)) (*domain.Purchase, error) {
	var out *domain.Purchase
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetPurchaseForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrPurchaseNotFound
			}
			return err
		}
		if err := p.Status.CheckTransition(next); err != nil {
			return err
		}
		if mutate != nil {
			mutate(p)
		}
		p.Status = next
		if err := repo.SavePurchase(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.PurchaseTransition(string(next))
	}
	return out, nil
}
