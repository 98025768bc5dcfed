package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
)

// GetIdempotency returns the live record for (scope, key) at now, or
// ErrNotFound. Blank keys never match.
func GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("scope = ? AND key = ? AND expires_at > ?", scope, key, now).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records that key produced purchaseID with the given HTTP
// status, valid for ttl. A live record for the same key yields ErrDuplicate;
// an expired one that has not been purged yet is replaced.
func CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key, purchaseID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		Scope:      scope,
		Key:        key,
		PurchaseID: purchaseID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scope = ? AND key = ? AND expires_at <= ?", scope, key, now).
			Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteIdempotency releases the key reserved for purchaseID. Records that
// point at another purchase are left alone.
func DeleteIdempotency(ctx context.Context, db *gorm.DB, scope, key, purchaseID string) error {
	return db.WithContext(ctx).
		Where("scope = ? AND key = ? AND purchase_id = ?", scope, key, purchaseID).
		Delete(&domain.Idempotency{}).Error
}

// PurgeIdempotency deletes records that expired at or before now.
func PurgeIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
