package complaints

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

// LogSink writes complaints to the application log.
type LogSink struct {
	Log zerolog.Logger
}

// Record implements Sink.
func (s LogSink) Record(_ context.Context, c domain.Complaint) error {
	s.Log.Warn().
		Str("component", "complaints").
		Int64("recipient_id", c.RecipientID).
		Str("reason", c.Reason).
		Str("batch_file", c.BatchFile).
		Str("content_ref", c.ContentRef).
		Str("display_name", c.DisplayName).
		Str("kind", string(c.Kind)).
		Time("at", c.At).
		Msg("complaint")
	return nil
}

// watermillLogger adapts zerolog to watermill.LoggerAdapter.
type watermillLogger struct {
	l zerolog.Logger
}

// NewWatermillLogger routes watermill's internal logging through l.
func NewWatermillLogger(l zerolog.Logger) watermill.LoggerAdapter {
	return watermillLogger{l: l}
}

func withFields(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	withFields(w.l.Error().Err(err), fields).Msg(msg)
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	withFields(w.l.Info(), fields).Msg(msg)
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	withFields(w.l.Debug(), fields).Msg(msg)
}

func (w watermillLogger) Trace(msg string, fields watermill.LogFields) {
	withFields(w.l.Trace(), fields).Msg(msg)
}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := w.l.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return watermillLogger{l: ctx.Logger()}
}
