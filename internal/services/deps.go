package services

import (
	"context"
	"time"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/notify"
)

// Records is the part of the record store the services use. *repo.Store
// implements it.
type Records interface {
	InsertBatch(ctx context.Context, batchFile string, rows []domain.NewRecord) ([]domain.PaymentRecord, error)
	FindByToken(ctx context.Context, token string) (*domain.PaymentRecord, error)
	ListActiveForRecipient(ctx context.Context, recipientID int64) ([]domain.PaymentRecord, error)
	ListDueForWarning(ctx context.Context, start, end time.Time) ([]domain.PaymentRecord, error)
	ListDueBatches(ctx context.Context, now time.Time) ([]string, error)
	ListPendingAnnouncement(ctx context.Context, limit int) ([]domain.PaymentRecord, error)
	UpdateStatus(ctx context.Context, id uint, status domain.Status, reason *string, confirmedAt *time.Time) error
	MarkWarned(ctx context.Context, id uint, recipientID int64, at time.Time) error
	SetImportState(ctx context.Context, id uint, state domain.ImportState, kind domain.Kind) error
	MarkAnnounceAttempt(ctx context.Context, id uint) error
	DeleteByBatch(ctx context.Context, batchFile string) (int64, error)
	PruneEvents(ctx context.Context) (int64, error)
}

// Sender delivers texts and record lists to a recipient. *notify.Dispatcher
// implements it.
type Sender interface {
	Send(ctx context.Context, recipientID int64, text string, kb *notify.Keyboard) error
	SendList(ctx context.Context, recipientID int64, items []notify.ListItem, page int) error
}

// Complainer hands complaints to operators without blocking the caller.
type Complainer interface {
	Publish(ctx context.Context, c domain.Complaint)
}

// RowResolver loads a recipient's content row.
type RowResolver interface {
	Row(ref string, recipientID int64) (domain.Row, error)
}

// Mover archives a batch's published content.
type Mover interface {
	MoveBatch(ctx context.Context, batchFile string) error
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
