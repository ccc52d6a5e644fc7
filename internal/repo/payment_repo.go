// Package repo implements the durable record store, backed by GORM. This file
// provides repository functions for the PaymentRecord model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They hold
// no business logic: status rules live in the services package.
//
// Error semantics:
//   - Missing rows yield ErrNotFound (gorm.ErrRecordNotFound).
//   - Unique-index violations (import token) yield ErrDuplicate.
//   - Other DB errors are propagated as-is.
//
// Timestamps are normalized to UTC before they are written or compared, so
// range scans over archive_at stay ordered.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-index violation.
var ErrDuplicate = errors.New("duplicate")

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// InsertBatch persists one record per row for batchFile inside a single
// transaction. Each row gets a fresh random ImportToken; nothing batch-level
// is ever reused as a token. ArchiveAt is createdAt + retention.
func InsertBatch(ctx context.Context, db *gorm.DB, batchFile string, rows []domain.NewRecord, createdAt time.Time, retention time.Duration) ([]domain.PaymentRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	createdAt = createdAt.UTC()
	recs := make([]domain.PaymentRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, domain.PaymentRecord{
			RecipientID: r.RecipientID,
			BatchFile:   batchFile,
			ContentRef:  r.ContentRef,
			ImportToken: uuid.NewString(),
			ImportState: domain.ImportPending,
			Kind:        domain.KindCurator,
			Status:      domain.StatusNew,
			CreatedAt:   createdAt,
			ArchiveAt:   createdAt.Add(retention),
			UpdatedAt:   createdAt,
		})
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&recs, 200).Error
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return recs, nil
}

// FindByID fetches a record by its surrogate key.
func FindByID(ctx context.Context, db *gorm.DB, id uint) (*domain.PaymentRecord, error) {
	var rec domain.PaymentRecord
	if err := db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByToken fetches a record by its import token.
func FindByToken(ctx context.Context, db *gorm.DB, token string) (*domain.PaymentRecord, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotFound
	}
	var rec domain.PaymentRecord
	if err := db.WithContext(ctx).First(&rec, "import_token = ?", token).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListActiveForRecipient returns the recipient's records that have not reached
// archive_at, excluding zero-total rows that were never announced. Newest first.
func ListActiveForRecipient(ctx context.Context, db *gorm.DB, recipientID int64, now time.Time) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	err := db.WithContext(ctx).
		Where("recipient_id = ? AND archive_at > ? AND import_state <> ?", recipientID, now.UTC(), domain.ImportSkipZeroTotal).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// ListDueForWarning returns unwarned, not-agreed records whose archive_at lies
// in [start, end).
func ListDueForWarning(ctx context.Context, db *gorm.DB, start, end time.Time) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	err := db.WithContext(ctx).
		Where("archive_at >= ? AND archive_at < ?", start.UTC(), end.UTC()).
		Where("warning_sent = ? AND status <> ? AND import_state <> ?", false, domain.StatusAgreed, domain.ImportSkipZeroTotal).
		Order("batch_file ASC, recipient_id ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListDueBatches returns the distinct batch files that have at least one
// record with archive_at <= now.
func ListDueBatches(ctx context.Context, db *gorm.DB, now time.Time) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("archive_at <= ?", now.UTC()).
		Distinct("batch_file").
		Order("batch_file ASC").
		Pluck("batch_file", &out).Error
	return out, err
}

// ListActiveBatches returns the distinct batch files with records still
// inside their viewing window.
func ListActiveBatches(ctx context.Context, db *gorm.DB, now time.Time) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("archive_at > ?", now.UTC()).
		Distinct("batch_file").
		Order("batch_file ASC").
		Pluck("batch_file", &out).Error
	return out, err
}

// ListPendingAnnouncement returns up to limit records still waiting for their
// initial prompt. Records never tried come first, oldest first; records whose
// last delivery attempt failed follow, least recently tried first, so a set of
// persistently failing recipients cannot starve newer records.
func ListPendingAnnouncement(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.PaymentRecord
	err := db.WithContext(ctx).
		Where("import_state = ? AND archive_at > ?", domain.ImportPending, now.UTC()).
		Order("last_attempt_at IS NOT NULL, last_attempt_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateStatus overwrites status, disagree_reason and confirmed_at of one
// record. Writing the same values twice leaves the row unchanged apart from
// updated_at. Returns ErrNotFound when the row is gone.
func UpdateStatus(ctx context.Context, db *gorm.DB, id uint, status domain.Status, reason *string, confirmedAt *time.Time) error {
	if confirmedAt != nil {
		t := confirmedAt.UTC()
		confirmedAt = &t
	}
	res := db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          status,
			"disagree_reason": reason,
			"confirmed_at":    confirmedAt,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkWarned sets warning_sent for the (id, recipient) pair. A record that is
// already warned keeps its original warning_sent_at.
func MarkWarned(ctx context.Context, db *gorm.DB, id uint, recipientID int64, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("id = ? AND recipient_id = ? AND warning_sent = ?", id, recipientID, false).
		Updates(map[string]any{
			"warning_sent":    true,
			"warning_sent_at": at.UTC(),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&domain.PaymentRecord{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetImportState records announcement progress. A non-empty kind is stored
// alongside, since the kind is only known once the content row is read.
func SetImportState(ctx context.Context, db *gorm.DB, id uint, state domain.ImportState, kind domain.Kind) error {
	upd := map[string]any{"import_state": state, "updated_at": time.Now().UTC()}
	if kind != "" {
		upd["kind"] = kind
	}
	res := db.WithContext(ctx).Model(&domain.PaymentRecord{}).Where("id = ?", id).Updates(upd)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAnnounceAttempt stamps a pending record whose announcement failed
// transiently, moving it behind records not tried yet.
func MarkAnnounceAttempt(ctx context.Context, db *gorm.DB, id uint, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.PaymentRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_attempt_at": at.UTC(), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByBatch purges every record of batchFile and returns the number of
// rows removed. Purging an empty batch is not an error.
func DeleteByBatch(ctx context.Context, db *gorm.DB, batchFile string) (int64, error) {
	res := db.WithContext(ctx).
		Where("batch_file = ?", batchFile).
		Delete(&domain.PaymentRecord{})
	return res.RowsAffected, res.Error
}
