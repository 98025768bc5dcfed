// Package catalog loads the destination catalog from a YAML seed file and
// keeps the destinations table in step with it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/repo"
)

// ErrInvalidCatalog wraps decoding and validation failures.
var ErrInvalidCatalog = errors.New("catalog: invalid seed file")

// Entry is one destination in the seed file.
type Entry struct {
	ID         string   `yaml:"id"         validate:"required,slug,max=64"`
	Name       string   `yaml:"name"       validate:"required,max=255"`
	Country    string   `yaml:"country"    validate:"required,max=128"`
	Region     string   `yaml:"region"     validate:"max=128"`
	Summary    string   `yaml:"summary"`
	Highlights []string `yaml:"highlights" validate:"dive,required"`
}

type file struct {
	Destinations []Entry `yaml:"destinations" validate:"dive"`
}

var validate = validator.New()

func init() {
	_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return domain.IsSlug(strings.ToLower(strings.TrimSpace(fl.Field().String())))
	})
}

// Parse decodes and validates a seed document. Ids are lower-cased and
// must be unique.
func Parse(r io.Reader) ([]domain.Destination, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	seen := make(map[string]bool, len(f.Destinations))
	out := make([]domain.Destination, 0, len(f.Destinations))
	for _, e := range f.Destinations {
		id := strings.ToLower(strings.TrimSpace(e.ID))
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, id)
		}
		seen[id] = true
		out = append(out, domain.Destination{
			ID:         id,
			Name:       strings.TrimSpace(e.Name),
			Country:    strings.TrimSpace(e.Country),
			Region:     strings.TrimSpace(e.Region),
			Summary:    strings.TrimSpace(e.Summary),
			Highlights: strings.Join(e.Highlights, "\n"),
		})
	}
	return out, nil
}

// Load reads and parses the seed file at path.
func Load(path string) ([]domain.Destination, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Seed upserts the destinations from path. A missing file is not an error:
// the existing table is left as is.
func Seed(ctx context.Context, db *gorm.DB, path string, log zerolog.Logger) (int, error) {
	ds, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("catalog seed file not found")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := repo.UpsertDestinations(ctx, db, ds); err != nil {
		return 0, fmt.Errorf("catalog: upsert: %w", err)
	}
	log.Info().Int("destinations", len(ds)).Str("path", path).Msg("catalog seeded")
	return len(ds), nil
}
