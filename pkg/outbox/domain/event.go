package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OutboxEvent struct {
	Id            int64           `db:"id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Headers       json.RawMessage `db:"headers"`
	CreatedAt     time.Time       `db:"created_at"`
	PublishedAt   *time.Time      `db:"published_at"`
	Attempts      int64           `db:"attempts"`
	LastError     *string         `db:"last_error"`
	Topic         string          `db:"topic"`
}

// Envelope is the message body consumers receive.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// NewEnvelopeEvent wraps payload into {event, payload} and prepares an outbox row.
func NewEnvelopeEvent(aggregateType, aggregateID, eventType, topic string, payload any) (*OutboxEvent, error) {
	body, err := json.Marshal(Envelope{Event: eventType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", eventType, err)
	}

	return &OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		Topic:         topic,
	}, nil
}
