package events

import (
	"context"

	"github.com/charmbracelet/log"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/rabbitmq"
)

const routingKeyPrefix = "conversation_events."

// Broadcaster pushes an event to live subscribers of a conversation.
type Broadcaster interface {
	BroadcastConversationEvent(conversationID string, event models.ConversationEvent)
}

// Dispatcher fans membership events out to RabbitMQ and to websocket subscribers.
type Dispatcher struct {
	publisher rabbitmq.Publisher
	hub       Broadcaster
	log       *log.Logger
}

// NewDispatcher builds a Dispatcher. Either sink may be nil.
func NewDispatcher(publisher rabbitmq.Publisher, hub Broadcaster, logger *log.Logger) *Dispatcher {
	return &Dispatcher{publisher: publisher, hub: hub, log: logger}
}

// Notify never fails the caller; publish errors are logged.
func (d *Dispatcher) Notify(ctx context.Context, event models.ConversationEvent) {
	if d.hub != nil {
		d.hub.BroadcastConversationEvent(event.ConversationID, event)
	}
	if d.publisher == nil {
		return
	}

	envelope := observability.NewEventEnvelope(ctx, "conversation_events", event.Type, event)
	if err := d.publisher.Publish(ctx, routingKeyPrefix+event.Type, envelope, envelope.Headers()); err != nil {
		d.log.Warn("conversation event publish failed", "type", event.Type, "conversation_id", event.ConversationID, "err", err)
	}
}
