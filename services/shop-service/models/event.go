package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EventStatusPending = "pending"
	EventStatusDone    = "done"
)

// ProcessedEvent records a payment provider event. The provider's event id is the
// document id. A pending marker lists the orders its attempt is writing; markers
// written before the status field existed count as done.
type ProcessedEvent struct {
	ID          string               `bson:"_id"`
	Type        string               `bson:"type"`
	Status      string               `bson:"status,omitempty"`
	OrderIDs    []primitive.ObjectID `bson:"orderIds,omitempty"`
	StartedAt   time.Time            `bson:"startedAt"`
	ProcessedAt *time.Time           `bson:"processedAt,omitempty"`
}

func (e ProcessedEvent) Done() bool {
	return e.Status != EventStatusPending
}

// OrderCreatedEvent is published once the orders of a checkout are stored.
type OrderCreatedEvent struct {
	EventID     string    `json:"event_id"`
	CheckoutRef string    `json:"checkout_session_id"`
	UserID      string    `json:"user_id"`
	OrderIDs    []string  `json:"order_ids"`
	TotalAmount float64   `json:"total_amount"`
	CreatedAt   time.Time `json:"created_at"`
}
