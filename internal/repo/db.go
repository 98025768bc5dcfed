// Package repo persists the shop's entities with GORM on SQLite. Functions
// take the *gorm.DB explicitly so callers choose between the pool and a
// transaction.
package repo

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
)

var (
	// ErrNotFound is gorm.ErrRecordNotFound under the repo's name.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate reports a unique-key collision.
	ErrDuplicate = errors.New("duplicate")
)

// sqlitePragmas are applied by the driver on every new connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"busy_timeout(5000)",
}

// OpenSQLite opens or creates the database at path with WAL journaling and
// query tracing. The parent directory must exist.
//
// The pool holds a single connection; the HTTP handlers and the fulfillment
// worker both write and SQLite serializes writers.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode()
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Destination{},
		&domain.Purchase{},
		&domain.JobRecord{},
		&domain.WebhookEvent{},
		&domain.Idempotency{},
	)
}

// isUniqueViolation matches gorm's translated error as well as the driver's
// plain-text message, which not every code path translates.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed: unique")
}
