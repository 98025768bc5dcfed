package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/cache"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/generator"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/queue"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
)

// JobKindGeneration pre-generates day content into the cache.
const JobKindGeneration = "generation"

// Cache scopes accepted by ClearCache.
const (
	ScopeAll         = "all"
	ScopeDestination = "destination"
)

// ContentCache is the part of cache.Cache the content service uses.
type ContentCache interface {
	Get(p cache.Params) (string, bool)
	Set(p cache.Params, content string, ttl time.Duration) error
	Clear() error
	ClearWhere(key, value string) (int, error)
	Len() int
}

// DayContent is one generated itinerary day.
type DayContent struct {
	DestinationID string `json:"destination_id"`
	Day           int    `json:"day"`
	Content       string `json:"content"`
	Cached        bool   `json:"cached"`
}

// GenerationRequest is the payload of a generation job. Day 0 means every
// day of a default-length itinerary.
type GenerationRequest struct {
	DestinationID string `json:"destination_id"`
	Day           int    `json:"day,omitempty"`
}

// ContentService serves day-by-day previews backed by the content cache.
type ContentService struct {
	DB        *gorm.DB
	Cache     ContentCache
	Generator generator.Generator // nil: only cached content is served
	Jobs      JobQueue
	Log       zerolog.Logger

	TTL       time.Duration
	Timeout   time.Duration
	GuideDays int
	MaxDays   int
}

// Register installs the generation job handler on q.
func (s *ContentService) Register(q *queue.Queue) {
	q.Register(JobKindGeneration, s.handleGeneration)
}

func dayParams(destinationID string, day int) cache.Params {
	return cache.Params{"kind": "day", "destination": destinationID, "day": day}
}

func (s *ContentService) maxDays() int {
	if s.MaxDays > 0 {
		return s.MaxDays
	}
	return domain.MaxItineraryDays
}

// GetDayContent returns the content for one day of a destination's
// itinerary. Unless forceRefresh is set, a cached copy within its TTL is
// returned with Cached=true and the generator is not called.
func (s *ContentService) GetDayContent(ctx context.Context, destinationID string, day int, forceRefresh bool) (*DayContent, error) {
	tr := otel.Tracer("services/ContentService")
	ctx, span := tr.Start(ctx, "GetDayContent",
		trace.WithAttributes(
			attribute.String("destination.id", destinationID),
			attribute.Int("day", day),
			attribute.Bool("force_refresh", forceRefresh),
		),
	)
	defer span.End()

	if day < 1 || day > s.maxDays() {
		return nil, ErrInvalidDay
	}
	d, err := repo.GetDestination(ctx, s.DB, destinationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDestinationNotFound
		}
		return nil, err
	}

	params := dayParams(d.ID, day)
	if !forceRefresh {
		if content, ok := s.Cache.Get(params); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &DayContent{DestinationID: d.ID, Day: day, Content: content, Cached: true}, nil
		}
	}
	if s.Generator == nil {
		return nil, ErrGenerationUnavailable
	}

	gctx, cancel := ctx, context.CancelFunc(func() {})
	if s.Timeout > 0 {
		gctx, cancel = context.WithTimeout(ctx, s.Timeout)
	}
	content, err := s.Generator.Generate(gctx, generator.Request{
		Kind:    generator.KindDay,
		Subject: subjectOf(d),
		Day:     day,
	})
	cancel()
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(params, content, s.TTL); err != nil {
		s.Log.Warn().Err(err).Str("destination_id", d.ID).Int("day", day).Msg("day content not cached")
	}
	return &DayContent{DestinationID: d.ID, Day: day, Content: content}, nil
}

// ClearCache drops cached content. Scope "all" clears everything; scope
// "destination" clears one destination. It returns the number of entries removed.
func (s *ContentService) ClearCache(ctx context.Context, scope, destinationID string) (int, error) {
	_, span := otel.Tracer("services/ContentService").Start(ctx, "ClearCache",
		trace.WithAttributes(attribute.String("cache.scope", scope)),
	)
	defer span.End()

	switch scope {
	case ScopeAll, "":
		n := s.Cache.Len()
		if err := s.Cache.Clear(); err != nil {
			return 0, err
		}
		s.Log.Info().Int("removed", n).Msg("content cache cleared")
		return n, nil
	case ScopeDestination:
		if destinationID == "" {
			return 0, ErrInvalidScope
		}
		n, err := s.Cache.ClearWhere("destination", destinationID)
		if err != nil {
			return 0, err
		}
		s.Log.Info().Int("removed", n).Str("destination_id", destinationID).Msg("content cache cleared")
		return n, nil
	}
	return 0, ErrInvalidScope
}

// EnqueueGeneration schedules regeneration of one day, or of every day of a
// default-length itinerary when day is 0, and returns the job id.
func (s *ContentService) EnqueueGeneration(ctx context.Context, destinationID string, day int) (string, error) {
	if day < 0 || day > s.maxDays() {
		return "", ErrInvalidDay
	}
	if _, err := repo.GetDestination(ctx, s.DB, destinationID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrDestinationNotFound
		}
		return "", err
	}
	if s.Generator == nil {
		return "", ErrGenerationUnavailable
	}
	id, err := s.Jobs.Add(JobKindGeneration, GenerationRequest{DestinationID: destinationID, Day: day})
	if err != nil {
		return "", errors.Join(ErrQueueUnavailable, err)
	}
	return id, nil
}

func (s *ContentService) handleGeneration(ctx context.Context, job queue.Job, progress queue.ProgressFunc) error {
	var req GenerationRequest
	if err := job.Decode(&req); err != nil {
		return err
	}
	days := []int{req.Day}
	if req.Day == 0 {
		n := s.GuideDays
		if n <= 0 {
			n = domain.DefaultItineraryDays
		}
		days = days[:0]
		for d := 1; d <= n; d++ {
			days = append(days, d)
		}
	}
	for i, d := range days {
		if _, err := s.GetDayContent(ctx, req.DestinationID, d, true); err != nil {
			return err
		}
		progress((i + 1) * 100 / len(days))
	}
	return nil
}
