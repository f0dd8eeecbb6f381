package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type Type string

const (
	TicketCreated         Type = "ticket.created"
	TicketUpdated         Type = "ticket.updated"
	TicketStatusChanged   Type = "ticket.status_changed"
	TicketAssigned        Type = "ticket.assigned"
	TicketDeleted         Type = "ticket.deleted"
	TicketCompleted       Type = "ticket.completed"
	ActivityRecorded      Type = "activity.recorded"
	VisitRevisitRequested Type = "visit.revisit_requested"
	VisitScheduled        Type = "visit.scheduled"
)

type Event struct {
	Type       Type           `json:"event"`
	TicketID   uuid.UUID      `json:"ticket_id"`
	ActorID    uuid.UUID      `json:"actor_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Publisher delivers lifecycle events. Delivery is best effort: failures are
// logged and never returned to the request that caused them.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
func (Nop) Close() error                   { return nil }

// publishTimeout bounds the synchronous part of a publish, the partition
// metadata lookup. Batches are then flushed in the background.
const publishTimeout = 2 * time.Second

type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
	log     zerolog.Logger
}

// NewPublisher returns a kafka publisher, or Nop when brokers or topic are missing.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) Publisher {
	if len(brokers) == 0 || topic == "" {
		return Nop{}
	}
	p := &KafkaPublisher{
		timeout: publishTimeout,
		log:     log.With().Str("component", "events").Logger(),
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   p.delivered,
	}
	return p
}

func (p *KafkaPublisher) delivered(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, msg := range messages {
		p.log.Warn().Err(err).Str("event", eventName(msg)).Str("ticket_id", string(msg.Key)).Msg("deliver event")
	}
}

func eventName(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "event" {
			return string(h.Value)
		}
	}
	return ""
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("event", string(event.Type)).Msg("marshal event")
		return
	}
	msg := kafka.Message{
		Key:   []byte(event.TicketID.String()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Type)},
		},
	}
	// The request may finish before the event is flushed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn().Err(err).Str("event", string(event.Type)).Str("ticket_id", event.TicketID.String()).Msg("publish event")
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
