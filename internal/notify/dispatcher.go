// Package notify delivers bot messages to recipients.
//
// The Dispatcher wraps a platform Transport with the delivery policy shared
// by every caller: an outbound rate limit, bounded retries (exponential on
// the platform's rate-limit signal, fixed otherwise, none on permanent
// refusals), message truncation, and splitting of long record lists into
// several messages. It holds no per-send mutable state and is safe for
// concurrent use.
package notify

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tbourn/payroll-approval-bot/internal/content"
)

var (
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_notify_sends_total",
			Help: "Outbound message sends by final outcome.",
		},
		[]string{"outcome"},
	)
	retriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payroll_notify_retries_total",
			Help: "Outbound send retries by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(sendsTotal, retriesTotal)
}

// Message is one outbound platform message.
type Message struct {
	RecipientID int64
	Text        string
	Keyboard    string
	// RandomID is constant across retries of one send so the platform can
	// drop duplicates.
	RandomID int32
}

// EventAnswer acknowledges a button event with a snackbar.
type EventAnswer struct {
	EventID string
	UserID  int64
	PeerID  int64
	Text    string
}

// Transport performs single platform calls without retrying.
type Transport interface {
	Send(ctx context.Context, m Message) error
	AnswerEvent(ctx context.Context, a EventAnswer) error
}

// Options tunes a Dispatcher. Zero values fall back to defaults.
type Options struct {
	MaxRetries int           // attempts per send (default 3)
	RetryDelay time.Duration // base backoff (default 1s)
	RPS        float64       // outbound sends per second; <= 0 disables the limit
	MaxRunes   int           // message length cap (default 3800)
	PageSize   int           // list buttons per message (default 5)
}

// Dispatcher sends messages through a Transport with retries.
type Dispatcher struct {
	t        Transport
	limiter  *rate.Limiter
	retries  int
	delay    time.Duration
	maxRunes int
	pageSize int
	sleep    func(ctx context.Context, d time.Duration) error
	log      zerolog.Logger
}

// NewDispatcher builds a Dispatcher over t.
func NewDispatcher(t Transport, o Options) *Dispatcher {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.MaxRunes <= 0 {
		o.MaxRunes = 3800
	}
	if o.PageSize <= 0 {
		o.PageSize = 5
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if o.RPS > 0 {
		lim = rate.NewLimiter(rate.Limit(o.RPS), 1)
	}
	return &Dispatcher{
		t:        t,
		limiter:  lim,
		retries:  o.MaxRetries,
		delay:    o.RetryDelay,
		maxRunes: o.MaxRunes,
		pageSize: o.PageSize,
		sleep:    sleepCtx,
		log:      log.With().Str("component", "notify").Logger(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers text with an optional keyboard.
//
// Errors wrap ErrPermanent when the platform refused the recipient, and
// ErrRetriesExhausted when every attempt failed transiently.
func (d *Dispatcher) Send(ctx context.Context, recipientID int64, text string, kb *Keyboard) error {
	m := Message{
		RecipientID: recipientID,
		Text:        truncate(text, d.maxRunes),
		Keyboard:    kb.JSON(),
		RandomID:    int32(uuid.New().ID() & 0x7fffffff),
	}

	var lastErr error
	for attempt := 0; attempt < d.retries; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			sendsTotal.WithLabelValues("canceled").Inc()
			return fmt.Errorf("send to %d: %w", recipientID, err)
		}
		err := d.t.Send(ctx, m)
		if err == nil {
			sendsTotal.WithLabelValues("ok").Inc()
			return nil
		}
		lastErr = err

		var wait time.Duration
		switch classify(err) {
		case classPermanent:
			sendsTotal.WithLabelValues("permanent").Inc()
			d.log.Warn().Err(err).Int64("recipient_id", recipientID).Msg("recipient unreachable")
			return fmt.Errorf("send to %d: %w: %w", recipientID, ErrPermanent, err)
		case classRateLimited:
			retriesTotal.WithLabelValues("rate_limited").Inc()
			wait = d.delay << attempt
		default:
			retriesTotal.WithLabelValues("transient").Inc()
			wait = d.delay
		}
		if attempt == d.retries-1 {
			break
		}
		d.log.Debug().Err(err).Int64("recipient_id", recipientID).Int("attempt", attempt+1).
			Dur("backoff", wait).Msg("send failed, retrying")
		if err := d.sleep(ctx, wait); err != nil {
			sendsTotal.WithLabelValues("canceled").Inc()
			return fmt.Errorf("send to %d: %w", recipientID, err)
		}
	}
	sendsTotal.WithLabelValues("exhausted").Inc()
	d.log.Error().Err(lastErr).Int64("recipient_id", recipientID).Int("attempts", d.retries).Msg("send failed")
	return fmt.Errorf("send to %d: %w: %w", recipientID, ErrRetriesExhausted, lastErr)
}

// SendList renders the recipient's records as list keyboards, starting at
// page (1-based). Page 1 sends every record, split into several messages of
// PageSize buttons; later pages send a single message with an "Ещё" button
// while records remain. An empty list sends the "no payments" text with the
// persistent keyboard.
func (d *Dispatcher) SendList(ctx context.Context, recipientID int64, items []ListItem, page int) error {
	if len(items) == 0 {
		return d.Send(ctx, recipientID, content.TextNoPayments, ChatBottomKeyboard())
	}
	size := d.pageSize
	if page < 1 || (page-1)*size >= len(items) {
		page = 1
	}

	if page == 1 {
		if len(items) <= size {
			return d.Send(ctx, recipientID, content.TextListFirst, listKeyboard(items, 0))
		}
		if err := d.Send(ctx, recipientID, content.TextListFirst, listKeyboard(items[:size], 0)); err != nil {
			return err
		}
		part := 2
		for start := size; start < len(items); start += size {
			end := min(start+size, len(items))
			if err := d.Send(ctx, recipientID, fmt.Sprintf(content.TextListPart, part), listKeyboard(items[start:end], 0)); err != nil {
				return err
			}
			part++
		}
		return nil
	}

	start := (page - 1) * size
	end := min(start+size, len(items))
	next := 0
	if end < len(items) {
		next = page + 1
	}
	return d.Send(ctx, recipientID, fmt.Sprintf(content.TextListPage, page), listKeyboard(items[start:end], next))
}

// Answer acknowledges a button event in a single attempt.
func (d *Dispatcher) Answer(ctx context.Context, a EventAnswer) error {
	if a.EventID == "" {
		return nil
	}
	if err := d.t.AnswerEvent(ctx, a); err != nil {
		return fmt.Errorf("answer event %s: %w", a.EventID, err)
	}
	return nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
