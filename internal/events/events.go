// Package events publishes order domain events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventTypeOrderStatusChanged is emitted after an order status change commits.
const EventTypeOrderStatusChanged = "order.status_changed"

// BaseEvent carries the fields shared by every event.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderStatusChangedEvent describes a committed order status change.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	FromStatus  string    `json:"from_status,omitempty"`
	ToStatus    string    `json:"to_status"`
	Source      string    `json:"source"`
}

// NewOrderStatusChanged builds a status change event stamped with now.
func NewOrderStatusChanged(orderID uuid.UUID, orderNumber, from, to, source string, now time.Time) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		BaseEvent: BaseEvent{
			EventID:   uuid.NewString(),
			EventType: EventTypeOrderStatusChanged,
			Timestamp: now,
		},
		OrderID:     orderID,
		OrderNumber: orderNumber,
		FromStatus:  from,
		ToStatus:    to,
		Source:      source,
	}
}

// Publisher publishes order events.
type Publisher interface {
	PublishOrderStatusChanged(ctx context.Context, event OrderStatusChangedEvent) error
	Close() error
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops every event.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishOrderStatusChanged(context.Context, OrderStatusChangedEvent) error {
	return nil
}

func (nopPublisher) Close() error {
	return nil
}
