// Package services – Announcer
//
// Announcer drains records that were imported but not yet announced and sends
// each recipient the statement with the initial agree/disagree controls. It
// also runs the periodic cache housekeeping: reconciling cached batches
// against the store and enforcing the cache bounds.

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/payroll-approval-bot/internal/cache"
	"github.com/tbourn/payroll-approval-bot/internal/config"
	"github.com/tbourn/payroll-approval-bot/internal/content"
	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/notify"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const announceBatchLimit = 100

// AnnounceReport summarizes one announcement pass.
type AnnounceReport struct {
	Announced     int `json:"announced"`
	SkippedZero   int `json:"skipped_zero"`
	Undeliverable int `json:"undeliverable"`
	Deferred      int `json:"deferred"`
}

// Sweeper expires stale entries of the content row cache.
type Sweeper interface {
	Sweep(maxAge time.Duration) int
}

// Announcer is the announcement poller.
type Announcer struct {
	store   Records
	rows    RowResolver
	render  *content.Renderer
	send    Sender
	cache   *cache.Cache
	sweeper Sweeper

	limit     int
	poll      time.Duration
	gap       time.Duration
	cleanup   time.Duration
	csvExpiry time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	log   zerolog.Logger
}

// AnnouncerDeps groups the collaborators of the announcer. Cache and Sweeper
// may be nil.
type AnnouncerDeps struct {
	Store    Records
	Rows     RowResolver
	Renderer *content.Renderer
	Sender   Sender
	Cache    *cache.Cache
	Sweeper  Sweeper
}

// NewAnnouncer builds the poller from the scheduler and cache settings.
func NewAnnouncer(d AnnouncerDeps, sc config.SchedulerConfig, cc config.CacheConfig) *Announcer {
	poll := sc.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	cleanup := cc.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	expiry := cc.CSVExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Announcer{
		store:     d.Store,
		rows:      d.Rows,
		render:    d.Renderer,
		send:      d.Sender,
		cache:     d.Cache,
		sweeper:   d.Sweeper,
		limit:     announceBatchLimit,
		poll:      poll,
		gap:       sc.AnnounceGap,
		cleanup:   cleanup,
		csvExpiry: expiry,
		sleep:     sleepCtx,
		log:       log.With().Str("component", "announcer").Logger(),
	}
}

// Run polls until ctx is done.
func (a *Announcer) Run(ctx context.Context) {
	poll := time.NewTicker(a.poll)
	defer poll.Stop()
	clean := time.NewTicker(a.cleanup)
	defer clean.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			if _, err := a.AnnounceOnce(ctx); err != nil && ctx.Err() == nil {
				a.log.Error().Err(err).Msg("announcement pass failed")
			}
			a.Reconcile(ctx)
		case <-clean.C:
			a.Cleanup()
		}
	}
}

// AnnounceOnce announces up to one page of pending records, oldest first.
// Zero-total rows are skipped for good; rows whose content cannot be read or
// whose recipient refuses messages are marked undeliverable. Transient send
// failures stay pending and are retried after the records not tried yet.
func (a *Announcer) AnnounceOnce(ctx context.Context) (AnnounceReport, error) {
	tr := otel.Tracer("services/Announcer")
	ctx, span := tr.Start(ctx, "AnnounceOnce")
	defer span.End()

	var rep AnnounceReport
	recs, err := a.store.ListPendingAnnouncement(ctx, a.limit)
	if err != nil {
		return rep, err
	}
	sent := 0
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		rl := a.log.With().Uint("record_id", rec.ID).Int64("recipient_id", rec.RecipientID).Str("batch_file", rec.BatchFile).Logger()

		row, err := a.rows.Row(rec.ContentRef, rec.RecipientID)
		if err != nil {
			rl.Error().Err(err).Str("content_ref", rec.ContentRef).Msg("content unreadable; record not announced")
			a.setState(ctx, rl, rec.ID, domain.ImportUndeliverable, "")
			rep.Undeliverable++
			continue
		}
		kind := row.Kind()
		if _, nonZero := content.Total(kind, row); !nonZero {
			a.setState(ctx, rl, rec.ID, domain.ImportSkipZeroTotal, kind)
			rep.SkippedZero++
			continue
		}

		if sent > 0 {
			if err := a.sleep(ctx, a.gap); err != nil {
				return rep, err
			}
		}
		sent++
		text := a.render.Announcement(rec.BatchFile, kind, row)
		err = a.send.Send(ctx, rec.RecipientID, text, notify.ConfirmKeyboard(domain.RecordRef{ID: rec.ID}))
		switch {
		case err == nil:
			a.setState(ctx, rl, rec.ID, domain.ImportAnnounced, kind)
			rec.ImportState, rec.Kind = domain.ImportAnnounced, kind
			if a.cache != nil {
				a.cache.Put(rec, row)
			}
			rep.Announced++
			rl.Info().Msg("record announced")
		case notify.IsPermanent(err):
			rl.Warn().Err(err).Msg("recipient unreachable")
			a.setState(ctx, rl, rec.ID, domain.ImportUndeliverable, kind)
			rep.Undeliverable++
		default:
			rl.Warn().Err(err).Msg("announcement deferred")
			if err := a.store.MarkAnnounceAttempt(ctx, rec.ID); err != nil {
				rl.Error().Err(err).Msg("announce attempt not saved")
			}
			rep.Deferred++
		}
	}
	span.SetAttributes(
		attribute.Int("announced", rep.Announced),
		attribute.Int("skipped_zero", rep.SkippedZero),
		attribute.Int("undeliverable", rep.Undeliverable),
	)
	return rep, nil
}

func (a *Announcer) setState(ctx context.Context, l zerolog.Logger, id uint, state domain.ImportState, kind domain.Kind) {
	if err := a.store.SetImportState(ctx, id, state, kind); err != nil {
		l.Error().Err(err).Str("import_state", string(state)).Msg("import state not saved")
	}
}

// Reconcile drops cached records of batches that are no longer active.
func (a *Announcer) Reconcile(ctx context.Context) int {
	if a.cache == nil {
		return 0
	}
	n, err := a.cache.Reconcile(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("cache reconcile failed")
		return 0
	}
	if n > 0 {
		a.log.Info().Int("dropped", n).Msg("cache reconciled")
	}
	return n
}

// Cleanup enforces the cache bounds and expires old content rows.
func (a *Announcer) Cleanup() {
	if a.cache != nil {
		a.cache.Enforce()
	}
	if a.sweeper != nil {
		if n := a.sweeper.Sweep(a.csvExpiry); n > 0 {
			a.log.Debug().Int("expired", n).Msg("content cache swept")
		}
	}
}
