// Package events defines the contracts published through the outbox relay.
package events

import "time"

// Event is the envelope written to the outbox and relayed to the broker.
type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
}

const (
	EventOrderConfirmed  = "order.confirmed"
	EventOrderCancelled  = "order.cancelled"
	EventOrderShipped    = "order.shipped"
	EventOrderDelivered  = "order.delivered"
	EventRefundRequested = "refund.requested"
	EventRefundProcessed = "refund.processed"
	EventStockDepleted   = "catalog.stock_depleted"
)

// Topic routes all commerce events; consumers filter on Type.
const Topic = "commerce.events"
