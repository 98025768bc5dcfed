package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
)

// UpsertJobRecord stores the latest known state of a queue job.
// Kind, purchase and payload are written on insert only.
func UpsertJobRecord(ctx context.Context, db *gorm.DB, rec *domain.JobRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "progress", "error", "updated_at"}),
		}).
		Create(rec).Error
}

// GetJobRecord fetches a job record by ID.
func GetJobRecord(ctx context.Context, db *gorm.DB, id string) (*domain.JobRecord, error) {
	var rec domain.JobRecord
	if err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
