// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Purchase
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
// Status rules live in domain.PurchaseStatus and services.PurchaseService.
//
// Error semantics:
//   - When a purchase is not found, functions return ErrNotFound.
//   - A second purchase for the same payment session returns ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
)

// CreatePurchase inserts p, assigning an ID and UTC CreatedAt when empty.
func CreatePurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetPurchase fetches a purchase by ID.
func GetPurchase(ctx context.Context, db *gorm.DB, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPurchaseForUpdate is GetPurchase with a row lock where the dialect
// supports one. On SQLite the single connection already serializes writers.
func GetPurchaseForUpdate(ctx context.Context, tx *gorm.DB, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	if err := q.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPurchaseBySession fetches a purchase by its payment session reference.
func GetPurchaseBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Purchase, error) {
	var p domain.Purchase
	if err := db.WithContext(ctx).Where("payment_session_id = ?", sessionID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePurchase writes every column of p.
func SavePurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	return db.WithContext(ctx).Save(p).Error
}

// CountPurchases returns the number of purchases, optionally filtered by status.
func CountPurchases(ctx context.Context, db *gorm.DB, status domain.PurchaseStatus) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Purchase{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListPurchasesPage returns purchases newest first, optionally filtered by status.
// The caller computes offset and limit.
func ListPurchasesPage(ctx context.Context, db *gorm.DB, status domain.PurchaseStatus, offset, limit int) ([]domain.Purchase, error) {
	var out []domain.Purchase
	q := db.WithContext(ctx).Order("created_at desc, id desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Offset(offset).Limit(limit).Find(&out).Error
	return out, err
}

// ListPurchasesByStatus returns all purchases in any of the given states,
// oldest first so a resume scan re-enqueues in arrival order.
func ListPurchasesByStatus(ctx context.Context, db *gorm.DB, statuses ...domain.PurchaseStatus) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}
