package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

// Store binds the repository functions to one database handle and the
// retention window. It is the RecordStore used by the cache and services.
type Store struct {
	db        *gorm.DB
	retention time.Duration
	now       func() time.Time
}

// NewStore returns a Store over db. retention is the viewing window applied
// to new records.
func NewStore(db *gorm.DB, retention time.Duration) *Store {
	return &Store{db: db, retention: retention, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the store's notion of "now". Used by tests and the CLI
// sweep command.
func (s *Store) WithClock(now func() time.Time) *Store {
	cp := *s
	cp.now = now
	return &cp
}

func (s *Store) InsertBatch(ctx context.Context, batchFile string, rows []domain.NewRecord) ([]domain.PaymentRecord, error) {
	return InsertBatch(ctx, s.db, batchFile, rows, s.now(), s.retention)
}

func (s *Store) FindByID(ctx context.Context, id uint) (*domain.PaymentRecord, error) {
	return FindByID(ctx, s.db, id)
}

func (s *Store) FindByToken(ctx context.Context, token string) (*domain.PaymentRecord, error) {
	return FindByToken(ctx, s.db, token)
}

func (s *Store) ListActiveForRecipient(ctx context.Context, recipientID int64) ([]domain.PaymentRecord, error) {
	return ListActiveForRecipient(ctx, s.db, recipientID, s.now())
}

func (s *Store) ListDueForWarning(ctx context.Context, start, end time.Time) ([]domain.PaymentRecord, error) {
	return ListDueForWarning(ctx, s.db, start, end)
}

func (s *Store) ListDueBatches(ctx context.Context, now time.Time) ([]string, error) {
	return ListDueBatches(ctx, s.db, now)
}

func (s *Store) ListActiveBatches(ctx context.Context) ([]string, error) {
	return ListActiveBatches(ctx, s.db, s.now())
}

func (s *Store) ListPendingAnnouncement(ctx context.Context, limit int) ([]domain.PaymentRecord, error) {
	return ListPendingAnnouncement(ctx, s.db, s.now(), limit)
}

func (s *Store) UpdateStatus(ctx context.Context, id uint, status domain.Status, reason *string, confirmedAt *time.Time) error {
	return UpdateStatus(ctx, s.db, id, status, reason, confirmedAt)
}

func (s *Store) MarkWarned(ctx context.Context, id uint, recipientID int64, at time.Time) error {
	return MarkWarned(ctx, s.db, id, recipientID, at)
}

func (s *Store) SetImportState(ctx context.Context, id uint, state domain.ImportState, kind domain.Kind) error {
	return SetImportState(ctx, s.db, id, state, kind)
}

func (s *Store) MarkAnnounceAttempt(ctx context.Context, id uint) error {
	return MarkAnnounceAttempt(ctx, s.db, id, s.now())
}

func (s *Store) DeleteByBatch(ctx context.Context, batchFile string) (int64, error) {
	return DeleteByBatch(ctx, s.db, batchFile)
}

func (s *Store) BatchStats(ctx context.Context, batchFile string) (*domain.BatchStats, error) {
	return BatchStats(ctx, s.db, batchFile)
}

func (s *Store) RememberEvent(ctx context.Context, eventID string, recipientID int64, kind string, ttl time.Duration) (bool, error) {
	return RememberEvent(ctx, s.db, eventID, recipientID, kind, ttl)
}

func (s *Store) ForgetEvent(ctx context.Context, eventID string) error {
	return ForgetEvent(ctx, s.db, eventID)
}

func (s *Store) PruneEvents(ctx context.Context) (int64, error) {
	return PruneEvents(ctx, s.db, s.now())
}
