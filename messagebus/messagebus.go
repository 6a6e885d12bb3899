// Package messagebus implements spec §4.G's point-in-time typed message
// delivery between entities, backed by ThreeDotsLabs/watermill's in-memory
// gochannel pub/sub — grounded on
// webitel-im-delivery-service/internal/adapter/pubsub/dispatcher.go's
// publish-with-uuid pattern.
package messagebus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"gridlock/entity"
)

// Envelope is the payload every message carries: a correlation id, the
// recipient's topic (worker id, spec §4.G "delivery always lands on the
// recipient's owning worker thread"), and an opaque body the recipient
// decodes itself.
type Envelope struct {
	CorrelationID uuid.UUID
	Topic         string
	Body          []byte
}

// Bus wraps a watermill gochannel Pub/Sub, scoping one topic per worker id
// so handlers always run on the recipient's owning goroutine.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// New constructs a Bus with watermill's default in-process transport —
// fan-out, no persistence, exactly the single-process guarantee spec §9's
// MPI Open Question resolution documents.
func New() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}),
	}
}

// Subscribe returns the channel of Envelopes destined for topic (normally a
// worker id's string form). Must be called before any PublishEvent targets
// that topic.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan Envelope, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := make(chan Envelope)
	go func() {
		defer close(out)
		for m := range msgs {
			var env Envelope
			if err := json.Unmarshal(m.Payload, &env); err == nil {
				out <- env
			}
			m.Ack()
		}
	}()
	return out, nil
}

// PublishEvent / SendMessageNow hand the envelope to the in-process
// gochannel transport and return; the subscriber receives it on the channel
// Subscribe returned, fed by Subscribe's own goroutine. PublishEvent does not
// wait for the recipient to receive or handle the message.
func (b *Bus) PublishEvent(topic string, body []byte) error {
	env := Envelope{CorrelationID: uuid.New(), Topic: topic, Body: body}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload))
}

// SendMessageNow is an alias kept for readability at call sites that are
// sending to exactly one recipient rather than broadcasting an event.
func (b *Bus) SendMessageNow(topic string, body []byte) error {
	return b.PublishEvent(topic, body)
}

// ScheduledMessage is the Timed wrapper ScheduleMessage pushes onto the
// shared entity.PendingQueue, per the Design Notes' "unify Pending Queue
// for entities and events" suggestion (spec §9).
type ScheduledMessage struct {
	Topic     string
	Body      []byte
	DeliverAt int64
	seq       uint64
}

func (m *ScheduledMessage) When() int64   { return m.DeliverAt }
func (m *ScheduledMessage) SeqID() uint64 { return m.seq }

// ScheduleMessage wraps body for delivery at the start of tick
// (scheduledTick+1), per spec §4.G "PublishLater ... visible next tick".
// baseGranMS is the kernel's tick granularity.
func (b *Bus) ScheduleMessage(pending *entity.PendingQueue, topic string, body []byte, scheduledTick int64, baseGranMS int64) {
	pending.Push(&ScheduledMessage{
		Topic:     topic,
		Body:      body,
		DeliverAt: (scheduledTick + 1) * baseGranMS,
		seq:       entity.NewID(),
	})
}

// DeliverScheduled drains every ScheduledMessage from pending whose
// DeliverAt has arrived and publishes it, called once per tick by
// sim.Kernel.Run after the tick's second external barrier hit. It stops at
// the first item on pending that is not a ScheduledMessage.
func (b *Bus) DeliverScheduled(pending *entity.PendingQueue, nowMS int64) error {
	for {
		top, ok := pending.PeekTop()
		if !ok {
			return nil
		}
		sm, ok := top.(*ScheduledMessage)
		if !ok || sm.When() > nowMS {
			return nil
		}
		pending.Pop()
		if err := b.PublishEvent(sm.Topic, sm.Body); err != nil {
			return err
		}
	}
}

// Close releases the underlying gochannel transport.
func (b *Bus) Close() error { return b.pubsub.Close() }
