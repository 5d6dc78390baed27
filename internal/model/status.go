package model

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusConfirmed       OrderStatus = "confirmed"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusPacked          OrderStatus = "packed"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefunded        OrderStatus = "refunded"
	OrderStatusReturnApproved  OrderStatus = "return_approved"
	OrderStatusReturnRejected  OrderStatus = "return_rejected"
	OrderStatusReturnCompleted OrderStatus = "return_completed"
)

// orderStatusAliases maps the vocabulary callers use onto canonical statuses.
// Keys are lowercase.
var orderStatusAliases = map[string]OrderStatus{
	"pending":          OrderStatusPending,
	"confirmed":        OrderStatusConfirmed,
	"processing":       OrderStatusProcessing,
	"packed":           OrderStatusPacked,
	"shipped":          OrderStatusShipped,
	"delivered":        OrderStatusDelivered,
	"completed":        OrderStatusDelivered,
	"cancelled":        OrderStatusCancelled,
	"canceled":         OrderStatusCancelled,
	"refunded":         OrderStatusRefunded,
	"return_approved":  OrderStatusReturnApproved,
	"return_rejected":  OrderStatusReturnRejected,
	"return_completed": OrderStatusReturnCompleted,
}

// orderTransitions lists, for every status, the statuses an admin may move an
// order to. Self-transitions are always allowed and are not listed.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusConfirmed, OrderStatusProcessing, OrderStatusPacked,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
	},
	OrderStatusConfirmed: {
		OrderStatusProcessing, OrderStatusPacked, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled,
	},
	OrderStatusProcessing:      {OrderStatusPacked, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusPacked:          {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusShipped:         {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:       {OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusReturnApproved:  {OrderStatusRefunded},
	OrderStatusReturnCompleted: {OrderStatusRefunded},
	OrderStatusReturnRejected:  {},
	OrderStatusCancelled:       {},
	OrderStatusRefunded:        {},
}

// NormalizeOrderStatus maps a caller supplied status onto the canonical enum.
// Matching is case-insensitive; unknown values return ErrInvalidStatus.
func NormalizeOrderStatus(raw string) (OrderStatus, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if status, ok := orderStatusAliases[key]; ok {
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Valid reports whether s is one of the canonical order statuses.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsReturnState reports whether s is owned by the return settlement workflow.
func (s OrderStatus) IsReturnState() bool {
	switch s {
	case OrderStatusReturnApproved, OrderStatusReturnRejected, OrderStatusReturnCompleted:
		return true
	}
	return false
}

// InFulfilment reports whether s lies on the forward path from confirmation
// to delivery. Orders in these states keep their points redemption.
func (s OrderStatus) InFulfilment() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusProcessing, OrderStatusPacked,
		OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// CanTransitionTo reports whether an admin may move an order from s to next.
// Return states are never reachable this way.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next.IsReturnState() {
		return false
	}
	if s == next {
		return s.Valid()
	}
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReturnStatus is the state of a return request.
type ReturnStatus string

const (
	ReturnStatusPending   ReturnStatus = "pending"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusRejected  ReturnStatus = "rejected"
	ReturnStatusCompleted ReturnStatus = "completed"
)

var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusPending:   {ReturnStatusApproved, ReturnStatusRejected},
	ReturnStatusApproved:  {ReturnStatusCompleted},
	ReturnStatusRejected:  {},
	ReturnStatusCompleted: {},
}

// ParseReturnStatus parses a case-insensitive return status.
func ParseReturnStatus(raw string) (ReturnStatus, error) {
	status := ReturnStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := returnTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// CanTransitionTo reports whether a return request may move from s to next.
func (s ReturnStatus) CanTransitionTo(next ReturnStatus) bool {
	for _, allowed := range returnTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderStatus returns the order status mirroring a return status.
func (s ReturnStatus) OrderStatus() (OrderStatus, bool) {
	switch s {
	case ReturnStatusApproved:
		return OrderStatusReturnApproved, true
	case ReturnStatusRejected:
		return OrderStatusReturnRejected, true
	case ReturnStatusCompleted:
		return OrderStatusReturnCompleted, true
	}
	return "", false
}
