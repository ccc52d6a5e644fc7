// Package repo implements the durable record store, backed by GORM. This file
// provides helpers for the InboundEvent model used to drop redelivered
// platform callbacks.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

// RememberEvent records eventID and reports whether it was seen for the first
// time within ttl. An expired row for the same id is refreshed and counts as
// first-seen. Empty ids are never deduplicated.
func RememberEvent(ctx context.Context, db *gorm.DB, eventID string, recipientID int64, kind string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	now := time.Now().UTC()
	rec := &domain.InboundEvent{
		EventID:     eventID,
		RecipientID: recipientID,
		Kind:        kind,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	err := db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return true, nil
	}
	if !isDuplicate(err) {
		return false, err
	}
	// The id exists; it is fresh again only if the old row expired.
	res := db.WithContext(ctx).
		Model(&domain.InboundEvent{}).
		Where("event_id = ? AND expires_at <= ?", eventID, now).
		Updates(map[string]any{"created_at": now, "expires_at": now.Add(ttl), "recipient_id": recipientID, "kind": kind})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ForgetEvent removes eventID so a redelivery is handled again. It is used
// when an event was remembered but could not be queued.
func ForgetEvent(ctx context.Context, db *gorm.DB, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return nil
	}
	return db.WithContext(ctx).Where("event_id = ?", eventID).Delete(&domain.InboundEvent{}).Error
}

// PruneEvents deletes event rows that expired before now.
func PruneEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.InboundEvent{})
	return res.RowsAffected, res.Error
}
