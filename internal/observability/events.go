package observability

import (
	"context"
	"time"
)

const eventSchemaVersion = 1

type EventEnvelope struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventName     string      `json:"event_name"`
	OccurredAt    string      `json:"occurred_at"`
	RequestID     string      `json:"request_id,omitempty"`
	TraceID       string      `json:"trace_id,omitempty"`
	Payload       interface{} `json:"payload"`
}

// NewEventEnvelope wraps payload with the request and trace ids carried by ctx.
func NewEventEnvelope(ctx context.Context, eventType, eventName string, payload interface{}) EventEnvelope {
	return EventEnvelope{
		SchemaVersion: eventSchemaVersion,
		EventType:     eventType,
		EventName:     eventName,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		RequestID:     RequestIDFromContext(ctx),
		TraceID:       TraceIDFromContext(ctx),
		Payload:       payload,
	}
}

// Headers returns the AMQP headers matching the envelope.
func (e EventEnvelope) Headers() map[string]string {
	return BuildHeaders(e.RequestID, e.TraceID)
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
