package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/domain"
)

// RecordWebhookEvent marks a provider event as processed. It returns
// ErrDuplicate when the event was already recorded.
func RecordWebhookEvent(ctx context.Context, db *gorm.DB, provider, eventID, eventType, payload string) error {
	ev := &domain.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       eventType,
		Payload:         payload,
		ProcessedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteWebhookEvent forgets a recorded event so a redelivery is processed
// again.
func DeleteWebhookEvent(ctx context.Context, db *gorm.DB, provider, eventID string) error {
	return db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, eventID).
		Delete(&domain.WebhookEvent{}).Error
}
