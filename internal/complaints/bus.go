// Package complaints carries operator escalations out of the dialogue.
//
// Complaints are published on an in-process watermill channel and fanned out
// to sinks (the application log, and a Google Sheet when configured) by a
// single consumer. Publishing never waits for a sink, so a slow or failing
// sheet cannot stall a recipient's dialogue.
package complaints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/payroll-approval-bot/internal/domain"
)

const topic = "payroll.complaints"

// Sink stores one complaint.
type Sink interface {
	Record(ctx context.Context, c domain.Complaint) error
}

// Bus publishes complaints to its sinks asynchronously.
type Bus struct {
	pubsub      *gochannel.GoChannel
	sinks       []Sink
	sinkTimeout time.Duration
	log         zerolog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBus returns a bus delivering to sinks. Call Start before publishing.
func NewBus(sinks ...Sink) *Bus {
	logger := log.With().Str("component", "complaints").Logger()
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            256,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		}, NewWatermillLogger(logger)),
		sinks:       sinks,
		sinkTimeout: 15 * time.Second,
		log:         logger,
	}
}

// Start subscribes the fan-out consumer. It is a no-op when already started.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	b.started = true
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.consume(ctx, msgs)
	return nil
}

func (b *Bus) consume(ctx context.Context, msgs <-chan *message.Message) {
	defer close(b.done)
	for msg := range msgs {
		var c domain.Complaint
		if err := json.Unmarshal(msg.Payload, &c); err != nil {
			b.log.Error().Err(err).Str("message_id", msg.UUID).Msg("drop malformed complaint")
			msg.Ack()
			continue
		}
		b.deliver(ctx, c)
		msg.Ack()
	}
}

func (b *Bus) deliver(ctx context.Context, c domain.Complaint) {
	for _, s := range b.sinks {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.sinkTimeout)
		err := s.Record(sctx, c)
		cancel()
		if err != nil {
			b.log.Error().Err(err).
				Int64("recipient_id", c.RecipientID).
				Str("reason", c.Reason).
				Str("sink", fmt.Sprintf("%T", s)).
				Msg("complaint sink failed")
		}
	}
}

// Publish enqueues c. Failures are logged and never returned: a complaint
// must not block the dialogue that raised it.
func (b *Bus) Publish(ctx context.Context, c domain.Complaint) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	payload, err := json.Marshal(c)
	if err != nil {
		b.log.Error().Err(err).Int64("recipient_id", c.RecipientID).Msg("marshal complaint")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("reason", c.Reason)
	msg.Metadata.Set("kind", string(c.Kind))
	if err := b.pubsub.Publish(topic, msg); err != nil {
		b.log.Error().Err(err).Int64("recipient_id", c.RecipientID).Str("reason", c.Reason).Msg("publish complaint")
	}
}

// Close stops accepting complaints and waits for the consumer to drain.
func (b *Bus) Close() error {
	err := b.pubsub.Close()
	b.mu.Lock()
	done, cancel := b.done, b.cancel
	b.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-time.After(b.sinkTimeout):
			err = errors.Join(err, errors.New("complaints: consumer did not drain"))
		}
	}
	if cancel != nil {
		cancel()
	}
	return err
}
