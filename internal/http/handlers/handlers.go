package handlers

import (
	"context"
	"time"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/notify"
	"github.com/tbourn/payroll-approval-bot/internal/services"
)

// EventLog deduplicates platform callbacks. *repo.Store implements it.
type EventLog interface {
	RememberEvent(ctx context.Context, eventID string, recipientID int64, kind string, ttl time.Duration) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

// Acker answers button events with a snackbar. *notify.Dispatcher implements it.
type Acker interface {
	Answer(ctx context.Context, a notify.EventAnswer) error
}

// Queue accepts decoded events for the single event loop. *services.Inbox
// implements it.
type Queue interface {
	Enqueue(ev domain.Inbound) error
}

// RecordReader serves the admin read endpoints. *repo.Store implements it.
type RecordReader interface {
	ListActiveForRecipient(ctx context.Context, recipientID int64) ([]domain.PaymentRecord, error)
	BatchStats(ctx context.Context, batchFile string) (*domain.BatchStats, error)
}

// BatchImporter creates records. *services.Importer implements it.
type BatchImporter interface {
	ImportBatch(ctx context.Context, batchFile string, rows []services.ImportRow) (services.ImportResult, error)
	ImportCSV(ctx context.Context, path, batchFile string) (services.ImportResult, error)
}

// Sweeper runs one scheduler pass. *services.Scheduler implements it.
type Sweeper interface {
	RunOnce(ctx context.Context) (services.SweepReport, error)
}

// Reconciler drops cache entries of archived batches. *services.Announcer
// implements it.
type Reconciler interface {
	Reconcile(ctx context.Context) int
}

// CallbackConfig holds the VK Callback API handshake values.
type CallbackConfig struct {
	GroupID      int64
	Confirmation string
	Secret       string
	DedupTTL     time.Duration
}

// Callback serves POST /vk/callback.
type Callback struct {
	cfg    CallbackConfig
	events EventLog
	acker  Acker
	queue  Queue
}

// NewCallback builds the webhook handler.
func NewCallback(cfg CallbackConfig, events EventLog, acker Acker, queue Queue) *Callback {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 24 * time.Hour
	}
	return &Callback{cfg: cfg, events: events, acker: acker, queue: queue}
}

// Admin serves the admin API.
type Admin struct {
	records    RecordReader
	importer   BatchImporter
	sweeper    Sweeper
	reconciler Reconciler
	csvRoot    string
}

// NewAdmin builds the admin handlers.
func NewAdmin(records RecordReader, importer BatchImporter, sweeper Sweeper, reconciler Reconciler) *Admin {
	return &Admin{records: records, importer: importer, sweeper: sweeper, reconciler: reconciler}
}
