package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
)

// UpsertDestinations inserts or refreshes catalog rows keyed by ID.
func UpsertDestinations(ctx context.Context, db *gorm.DB, ds []domain.Destination) error {
	if len(ds) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "country", "region", "summary", "highlights", "updated_at"}),
		}).
		Create(&ds).Error
}

// GetDestination fetches a destination by ID.
func GetDestination(ctx context.Context, db *gorm.DB, id string) (*domain.Destination, error) {
	var d domain.Destination
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDestinations returns the whole catalog ordered by name.
func ListDestinations(ctx context.Context, db *gorm.DB) ([]domain.Destination, error) {
	var out []domain.Destination
	err := db.WithContext(ctx).Order("name asc, id asc").Find(&out).Error
	return out, err
}
