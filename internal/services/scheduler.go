// Package services – Scheduler
//
// Scheduler runs the time-based part of the record lifecycle on a fixed
// interval: one-time expiry warnings, then the archive sweep that moves each
// expired batch's content and purges its records regardless of status.
//
// Both sweeps are retry-safe. A record is marked warned only after delivery
// (or a permanent refusal), and a batch whose content was already moved is
// still purged on the next pass.

package services

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/payroll-approval-bot/internal/archive"
	"github.com/tbourn/payroll-approval-bot/internal/cache"
	"github.com/tbourn/payroll-approval-bot/internal/config"
	"github.com/tbourn/payroll-approval-bot/internal/content"
	"github.com/tbourn/payroll-approval-bot/internal/notify"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	schedulerWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_scheduler_warnings_total",
			Help: "Expiry warnings by result (sent, permanent, failed).",
		},
		[]string{"result"},
	)
	schedulerArchived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payroll_scheduler_archived_records_total",
		Help: "Records purged by the archive sweep.",
	})
	schedulerMoveFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payroll_scheduler_move_failures_total",
		Help: "Batches whose content could not be moved to the archive.",
	})
)

func init() {
	prometheus.MustRegister(schedulerWarnings, schedulerArchived, schedulerMoveFailures)
}

// SweepReport summarizes one scheduler pass.
type SweepReport struct {
	Warned         int      `json:"warned"`
	WarningsFailed int      `json:"warnings_failed"`
	Batches        []string `json:"batches"`
	Purged         int64    `json:"purged"`
	MoveFailures   int      `json:"move_failures"`
	EventsPruned   int64    `json:"events_pruned"`
}

// Scheduler is the ArchivalScheduler.
type Scheduler struct {
	store  Records
	send   Sender
	render *content.Renderer
	mover  Mover
	cache  *cache.Cache
	cfg    config.SchedulerConfig
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	log    zerolog.Logger
}

// SchedulerDeps groups the collaborators of the scheduler. Cache may be nil.
type SchedulerDeps struct {
	Store    Records
	Sender   Sender
	Renderer *content.Renderer
	Mover    Mover
	Cache    *cache.Cache
}

// NewScheduler builds a scheduler. Zero timings fall back to the defaults:
// 8h lead, 30m half-window, 30m interval.
func NewScheduler(d SchedulerDeps, cfg config.SchedulerConfig) *Scheduler {
	if cfg.WarningLead <= 0 {
		cfg.WarningLead = 8 * time.Hour
	}
	if cfg.WarningHalfWindow <= 0 {
		cfg.WarningHalfWindow = 30 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	return &Scheduler{
		store:  d.Store,
		send:   d.Sender,
		render: d.Renderer,
		mover:  d.Mover,
		cache:  d.Cache,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		sleep:  sleepCtx,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// WithClock overrides the scheduler's notion of "now".
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run executes a pass immediately and then every Interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error().Err(err).Msg("scheduler pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RunOnce runs the warning sweep, then the archive sweep, then prunes
// expired inbound-event keys. A failing warning sweep does not stop the
// archive sweep; the first error is returned.
func (s *Scheduler) RunOnce(ctx context.Context) (SweepReport, error) {
	tr := otel.Tracer("services/Scheduler")
	ctx, span := tr.Start(ctx, "RunOnce")
	defer span.End()

	now := s.now()
	var rep SweepReport
	werr := s.warn(ctx, now, &rep)
	if werr != nil {
		s.log.Error().Err(werr).Msg("warning sweep failed")
	}
	aerr := s.archive(ctx, now, &rep)
	if aerr != nil {
		s.log.Error().Err(aerr).Msg("archive sweep failed")
	}
	if n, err := s.store.PruneEvents(ctx); err != nil {
		s.log.Warn().Err(err).Msg("prune inbound events failed")
	} else {
		rep.EventsPruned = n
	}

	span.SetAttributes(
		attribute.Int("warned", rep.Warned),
		attribute.Int("batches", len(rep.Batches)),
		attribute.Int64("purged", rep.Purged),
	)
	s.log.Info().
		Int("warned", rep.Warned).
		Int("warnings_failed", rep.WarningsFailed).
		Strs("batches", rep.Batches).
		Int64("purged", rep.Purged).
		Int("move_failures", rep.MoveFailures).
		Msg("scheduler pass done")

	if werr != nil {
		return rep, werr
	}
	return rep, aerr
}

// warn sends the expiry notice to every unwarned record whose archive time
// falls within the half-window around now+lead.
func (s *Scheduler) warn(ctx context.Context, now time.Time, rep *SweepReport) error {
	ctx, span := otel.Tracer("services/Scheduler").Start(ctx, "warn")
	defer span.End()

	target := now.Add(s.cfg.WarningLead)
	start, end := target.Add(-s.cfg.WarningHalfWindow), target.Add(s.cfg.WarningHalfWindow)
	recs, err := s.store.ListDueForWarning(ctx, start, end)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("due", len(recs)))

	for i, rec := range recs {
		if i > 0 {
			if err := s.sleep(ctx, s.cfg.WarningSendGap); err != nil {
				return err
			}
		}
		text := s.render.Warning(rec.BatchFile, rec.ArchiveAt, now)
		err := s.send.Send(ctx, rec.RecipientID, text, nil)
		result := "sent"
		switch {
		case err == nil:
		case notify.IsPermanent(err):
			result = "permanent"
		default:
			schedulerWarnings.WithLabelValues("failed").Inc()
			rep.WarningsFailed++
			s.log.Warn().Err(err).Uint("record_id", rec.ID).Int64("recipient_id", rec.RecipientID).Msg("warning not delivered; retry next pass")
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		schedulerWarnings.WithLabelValues(result).Inc()
		if result == "sent" {
			rep.Warned++
		} else {
			rep.WarningsFailed++
			s.log.Warn().Err(err).Uint("record_id", rec.ID).Int64("recipient_id", rec.RecipientID).Msg("warning refused permanently")
		}
		if err := s.store.MarkWarned(ctx, rec.ID, rec.RecipientID, s.now()); err != nil {
			s.log.Error().Err(err).Uint("record_id", rec.ID).Msg("mark warned failed")
		}
	}
	return nil
}

// archive moves and purges every batch with at least one expired record.
// A batch whose content cannot be moved keeps its records for the next pass,
// except when the content is missing altogether.
func (s *Scheduler) archive(ctx context.Context, now time.Time, rep *SweepReport) error {
	ctx, span := otel.Tracer("services/Scheduler").Start(ctx, "archive")
	defer span.End()

	batches, err := s.store.ListDueBatches(ctx, now)
	if err != nil {
		return err
	}
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		bl := s.log.With().Str("batch_file", batch).Logger()
		if s.mover != nil {
			err := s.mover.MoveBatch(ctx, batch)
			switch {
			case err == nil:
			case errors.Is(err, archive.ErrBatchNotFound):
				bl.Warn().Msg("batch content missing; purging records")
			default:
				schedulerMoveFailures.Inc()
				rep.MoveFailures++
				bl.Error().Err(err).Msg("batch move failed; retry next pass")
				continue
			}
		}

		n, err := s.store.DeleteByBatch(ctx, batch)
		if err != nil {
			bl.Error().Err(err).Msg("purge failed; retry next pass")
			continue
		}
		if s.cache != nil {
			s.cache.DropBatch(batch)
		}
		schedulerArchived.Add(float64(n))
		rep.Purged += n
		rep.Batches = append(rep.Batches, batch)
		span.AddEvent("batch archived", trace.WithAttributes(
			attribute.String("batch_file", batch),
			attribute.Int64("records", n),
		))
		bl.Info().Int64("records", n).Msg("batch archived")
	}
	return nil
}
