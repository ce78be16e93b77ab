package telemetry

import (
	"context"
	"log"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// AuditEmitter publishes relay failures that were reported to a client, so a
// message that could not be stored leaves a trail outside the process log.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	Participant   string       `json:"participant,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string `json:"level"`
	Action string `json:"action"`
	Text   string `json:"text"`
	TripID string `json:"trip_id,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit is safe on a nil emitter.
func (e *AuditEmitter) Emit(ctx context.Context, requestID, participant string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	log.Printf("audit emit: level=%s action=%s request_id=%s participant=%s trip_id=%s text=%q",
		payload.Level, payload.Action, requestID, participant, payload.TripID, payload.Text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Participant:   participant,
		Payload:       payload,
	}

	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}
