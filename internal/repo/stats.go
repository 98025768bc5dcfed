package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
)

// PurchasesStats counts purchases, optionally of one status, and reports the
// newest UpdatedAt among them. Both feed the listing ETag.
func PurchasesStats(ctx context.Context, db *gorm.DB, status domain.PurchaseStatus) (int64, *time.Time, error) {
	q := db.WithContext(ctx).Model(&domain.Purchase{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return countAndLatest(q)
}

// DestinationsStats is PurchasesStats for the catalog.
func DestinationsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return countAndLatest(db.WithContext(ctx).Model(&domain.Destination{}))
}

// countAndLatest returns (0, nil, nil) for an empty result. The newest row
// is read by ordering because MAX(updated_at) comes back as TEXT from SQLite.
func countAndLatest(q *gorm.DB) (int64, *time.Time, error) {
	var n int64
	if err := q.Session(&gorm.Session{}).Count(&n).Error; err != nil || n == 0 {
		return 0, nil, err
	}
	var latest struct{ UpdatedAt time.Time }
	if err := q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&latest).Error; err != nil {
		return 0, nil, err
	}
	return n, &latest.UpdatedAt, nil
}
