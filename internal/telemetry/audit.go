package telemetry

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"conversation-service/internal/observability"
	"conversation-service/internal/rabbitmq"
)

type AuditEmitter struct {
	publisher   rabbitmq.Publisher
	routingKey  string
	service     string
	environment string
	log         *log.Logger
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        string       `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level          string `json:"level"`
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func NewAuditEmitter(publisher rabbitmq.Publisher, routingKey, service, environment string, logger *log.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         logger,
	}
}

// Emit publishes an audit record. A nil emitter is a no-op.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID, userID, conversationID string) {
	if e == nil || e.publisher == nil {
		return
	}

	e.log.Debug("audit emit", "level", level, "request_id", requestID, "user_id", userID, "text", text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:          level,
			Text:           text,
			ConversationID: conversationID,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope, observability.BuildHeaders(requestID, observability.TraceIDFromContext(ctx))); err != nil {
		e.log.Warn("audit publish failed", "err", err)
	}
}
