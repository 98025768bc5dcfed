package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/search"
)

// CatalogService lists and searches destinations. The keyword index is
// rebuilt whenever the destinations table changes.
type CatalogService struct {
	DB *gorm.DB

	mu      sync.Mutex
	index   search.Index
	version string
}

var stopwords = []string{"a", "an", "and", "for", "in", "of", "on", "the", "to", "with"}

// List returns every destination ordered by name.
func (s *CatalogService) List(ctx context.Context) ([]domain.Destination, error) {
	return repo.ListDestinations(ctx, s.DB)
}

// Get returns one destination.
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Destination, error) {
	d, err := repo.GetDestination(ctx, s.DB, strings.ToLower(strings.TrimSpace(id)))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDestinationNotFound
	}
	return d, err
}

// Stats returns the row count and latest update for ETag computation.
func (s *CatalogService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.DestinationsStats(ctx, s.DB)
}

// Search ranks destinations against a keyword query, best match first.
func (s *CatalogService) Search(ctx context.Context, q string, k int) ([]domain.Destination, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(attribute.String("query", q), attribute.Int("k", k)),
	)
	defer span.End()

	all, err := repo.ListDestinations(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	idx, err := s.indexFor(ctx, all)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Destination, len(all))
	for _, d := range all {
		byID[d.ID] = d
	}
	results := idx.TopK(q, k)
	out := make([]domain.Destination, 0, len(results))
	for _, r := range results {
		if d, ok := byID[r.ID]; ok {
			out = append(out, d)
		}
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

func (s *CatalogService) indexFor(ctx context.Context, all []domain.Destination) (search.Index, error) {
	n, latest, err := repo.DestinationsStats(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	version := ""
	if latest != nil {
		version = latest.UTC().Format(time.RFC3339Nano)
	}
	version += "/" + strconv.FormatInt(n, 10)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil && s.version == version {
		return s.index, nil
	}
	docs := make([]search.Doc, 0, len(all))
	for _, d := range all {
		docs = append(docs, search.Doc{
			ID:    d.ID,
			Title: d.Name,
			Text:  strings.Join([]string{d.Country, d.Region, d.Summary, d.Highlights}, " "),
		})
	}
	s.index, s.version = search.New(docs, search.WithStopwords(stopwords)), version
	return s.index, nil
}
