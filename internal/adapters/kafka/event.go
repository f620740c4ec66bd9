package kafka

import (
	"time"

	"github.com/google/uuid"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
)

const (
	envelopeVersion = 1
	producerName    = "fulfillment-service"
)

type Envelope[T any] struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"` // "shipment.created"
	Version    int       `json:"version"`
	OccurredAt time.Time `json:"occurred_at"` // UTC
	EntityID   string    `json:"entity_id"`   // user bag id, same as the message key
	Payload    T         `json:"payload"`
	Meta       Meta      `json:"meta"`
}

type Meta struct {
	Producer string `json:"producer"`
	Source   string `json:"source"` // "http-api" | "seeder"
}

func NewEnvelope(e orders.Event, source string) Envelope[orders.Event] {
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return Envelope[orders.Event]{
		EventID:    uuid.NewString(),
		EventType:  e.Type,
		Version:    envelopeVersion,
		OccurredAt: occurred.UTC(),
		EntityID:   e.UserBagID,
		Payload:    e,
		Meta:       Meta{Producer: producerName, Source: source},
	}
}
