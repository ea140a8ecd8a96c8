package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/middleware"
)

const envelopeVersion = 1

// EventEnvelope wraps every payload that crosses the broker, in both directions.
type EventEnvelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CausationID   string    `json:"causationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	Sequence      *int64    `json:"sequence,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
	Schema        string    `json:"schema"`
	Payload       T         `json:"payload"`
}

// Validate reports every identity problem of the envelope at once.
func (e EventEnvelope[T]) Validate(expectedName string, expectedVersion int) error {
	var errs []error
	if e.EventName != expectedName {
		errs = append(errs, fmt.Errorf("eventName %q, want %q", e.EventName, expectedName))
	}
	if e.EventVersion != expectedVersion {
		errs = append(errs, fmt.Errorf("eventVersion %d, want %d", e.EventVersion, expectedVersion))
	}
	if e.PartitionKey == "" {
		errs = append(errs, errors.New("missing partitionKey"))
	}
	return errors.Join(errs...)
}

type causationKey struct{}

// withCausation marks ctx as handling the event eventID, so whatever gets
// published while handling it points back at it.
func withCausation(ctx context.Context, eventID string) context.Context {
	if eventID == "" {
		return ctx
	}
	return context.WithValue(ctx, causationKey{}, eventID)
}

func causationFromContext(ctx context.Context) string {
	v, _ := ctx.Value(causationKey{}).(string)
	return v
}

func newEnvelope[T any](ctx context.Context, name, schema, producer, partitionKey string, seq *int64, payload T) EventEnvelope[T] {
	return EventEnvelope[T]{
		EventName:     name,
		EventVersion:  envelopeVersion,
		EventID:       uuid.NewString(),
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		CausationID:   causationFromContext(ctx),
		Producer:      producer,
		PartitionKey:  partitionKey,
		Sequence:      seq,
		OccurredAt:    time.Now().UTC(),
		Schema:        schema,
		Payload:       payload,
	}
}
