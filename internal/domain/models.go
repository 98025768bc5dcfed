// Package domain defines the persistence models for purchases, destinations,
// background job records and payment webhook events. These types are mapped
// with GORM and form the core data layer of the guide fulfillment backend.
package domain

import (
	"time"
)

// Purchase represents a single guide transaction. It is created when checkout
// starts and is mutated only by the fulfillment pipeline afterwards. Rows are
// never deleted so the table doubles as an audit trail.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - CustomerEmail / CustomerName: buyer contact used for delivery.
//   - ProductType: one of the ProductType constants.
//   - DestinationID: catalog reference; nil for products without a destination.
//   - AmountCents / Currency: charged amount in minor units.
//   - Status: lifecycle state (see PurchaseStatus).
//   - PaymentSessionID: external checkout session or payment intent id (unique).
//   - DownloadURL: set only once the artifact is persisted.
//   - JobID: id of the background job fulfilling this purchase, if any.
//   - EmailSent: whether the confirmation email was delivered.
//   - FailureReason: short description recorded when Status is failed.
//   - CompletedAt: set when the purchase reaches completed.
type Purchase struct {
	ID               string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	CustomerEmail    string         `json:"customer_email"     gorm:"type:varchar(255);not null;index"`
	CustomerName     string         `json:"customer_name"      gorm:"type:varchar(255)"`
	ProductType      ProductType    `json:"product_type"       gorm:"type:varchar(32);not null"`
	DestinationID    *string        `json:"destination_id,omitempty" gorm:"type:varchar(64);index"`
	Days             int            `json:"days,omitempty"`
	AmountCents      int64          `json:"amount_cents"       gorm:"not null"`
	Currency         string         `json:"currency"           gorm:"type:char(3);not null;default:'usd'"`
	Status           PurchaseStatus `json:"status"             gorm:"type:varchar(16);not null;index"`
	PaymentSessionID string         `json:"payment_session_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	DownloadURL      *string        `json:"download_url,omitempty"`
	JobID            *string        `json:"job_id,omitempty"   gorm:"type:char(36)"`
	EmailSent        bool           `json:"email_sent"         gorm:"not null;default:false"`
	FailureReason    string         `json:"failure_reason,omitempty" gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at"         gorm:"index"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// Destination is a catalog entry that guides can be generated for.
// Highlights are stored newline-separated.
type Destination struct {
	ID         string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Name       string    `json:"name"       gorm:"type:varchar(255);not null"`
	Country    string    `json:"country"    gorm:"type:varchar(128);not null;index"`
	Region     string    `json:"region"     gorm:"type:varchar(128)"`
	Summary    string    `json:"summary"    gorm:"type:text"`
	Highlights string    `json:"highlights" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Destination.
func (Destination) TableName() string { return "destinations" }

// JobRecord mirrors the state of an in-memory queue job so that fulfillment
// progress survives a restart and can be reconciled against purchases.
type JobRecord struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Kind       string    `json:"kind"        gorm:"type:varchar(32);not null"`
	PurchaseID *string   `json:"purchase_id,omitempty" gorm:"type:char(36);index"`
	State      string    `json:"state"       gorm:"type:varchar(16);not null;index"`
	Progress   int       `json:"progress"    gorm:"not null;default:0"`
	Error      string    `json:"error,omitempty" gorm:"type:text"`
	Payload    string    `json:"-"           gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for JobRecord.
func (JobRecord) TableName() string { return "job_records" }

// WebhookEvent records a processed payment provider event. The unique
// provider event id makes redelivered webhooks a no-op.
type WebhookEvent struct {
	ID              uint      `gorm:"primaryKey"`
	Provider        string    `gorm:"type:varchar(32);not null;index"`
	ProviderEventID string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	EventType       string    `gorm:"type:varchar(64);not null"`
	Payload         string    `gorm:"type:text"`
	ProcessedAt     time.Time `gorm:"not null"`
	CreatedAt       time.Time
}

// TableName returns the database table name for WebhookEvent.
func (WebhookEvent) TableName() string { return "webhook_events" }
