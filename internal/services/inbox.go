package services

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

var inboxDropped = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "payroll_inbox_dropped_total",
	Help: "Inbound events rejected because the inbox was full.",
})

func init() {
	prometheus.MustRegister(inboxDropped)
}

// Handler processes one inbound event. *Approval implements it.
type Handler interface {
	Handle(ctx context.Context, ev domain.Inbound) error
}

// Inbox is the single event loop: a bounded queue drained by one consumer,
// so one recipient's events are handled in delivery order.
type Inbox struct {
	ch      chan domain.Inbound
	h       Handler
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewInbox returns an inbox of the given capacity. Each event runs under
// timeout.
func NewInbox(h Handler, size int, timeout time.Duration) *Inbox {
	if size <= 0 {
		size = 1024
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Inbox{
		ch:      make(chan domain.Inbound, size),
		h:       h,
		timeout: timeout,
		log:     log.With().Str("component", "inbox").Logger(),
	}
}

// Enqueue queues ev without blocking. It returns ErrInboxFull when the queue
// is at capacity or the inbox was closed.
func (in *Inbox) Enqueue(ev domain.Inbound) error {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.closed {
		return ErrInboxFull
	}
	select {
	case in.ch <- ev:
		return nil
	default:
		inboxDropped.Inc()
		in.log.Warn().Int64("recipient_id", ev.RecipientID).Str("event_id", ev.EventID).Msg("inbox full; event rejected")
		return ErrInboxFull
	}
}

// Len is the number of queued events.
func (in *Inbox) Len() int { return len(in.ch) }

// Run consumes events until ctx is done or Close drains the queue.
func (in *Inbox) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in.ch:
			if !ok {
				return
			}
			in.handle(ctx, ev)
		}
	}
}

func (in *Inbox) handle(ctx context.Context, ev domain.Inbound) {
	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			in.log.Error().Interface("panic", r).Int64("recipient_id", ev.RecipientID).Msg("event handler panicked")
		}
	}()
	start := time.Now()
	if err := in.h.Handle(ctx, ev); err != nil {
		in.log.Error().Err(err).Int64("recipient_id", ev.RecipientID).Str("event_id", ev.EventID).Msg("event failed")
		return
	}
	in.log.Debug().Int64("recipient_id", ev.RecipientID).Dur("took", time.Since(start)).Msg("event handled")
}

// Close stops accepting events. Run returns once the queued ones are handled.
func (in *Inbox) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.closed {
		in.closed = true
		close(in.ch)
	}
}
