package model

import "github.com/google/uuid"

// StatusUpdateRequest is the payload for an order status transition.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

// RedeemPointsRequest is the payload for redeeming points against an order.
type RedeemPointsRequest struct {
	UserID uuid.UUID `json:"userId"`
	Points int       `json:"points"`
}

// RedeemPointsResponse reports the discount granted for redeemed points.
type RedeemPointsResponse struct {
	OrderID        uuid.UUID `json:"orderId"`
	PointsUsed     int       `json:"pointsUsed"`
	DiscountAmount string    `json:"discountAmount"`
}

// AwardPointsRequest is the payload for an administrative points award.
type AwardPointsRequest struct {
	Points int     `json:"points"`
	Reason *string `json:"reason,omitempty"`
}

// POSOrderRequest is the payload for recording an in-store sale.
type POSOrderRequest struct {
	Items         []POSItemRequest `json:"items"`
	CustomerID    *uuid.UUID       `json:"customerId,omitempty"`
	CustomerName  *string          `json:"customerName,omitempty"`
	CustomerEmail *string          `json:"customerEmail,omitempty"`
	CustomerPhone *string          `json:"customerPhone,omitempty"`
	DiscountCode  *string          `json:"discountCode,omitempty"`
	PointsUsed    int              `json:"pointsUsed"`
	PaymentMethod string           `json:"paymentMethod"`
	Notes         *string          `json:"notes,omitempty"`
}

// POSItemRequest is one line of a POS sale. VariantID takes precedence;
// otherwise the product's first variant is used.
type POSItemRequest struct {
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	ProductID *uuid.UUID `json:"productId,omitempty"`
	Quantity  int        `json:"quantity"`
}

// CreateReturnRequest is the customer payload for requesting a return.
type CreateReturnRequest struct {
	UserID            uuid.UUID `json:"userId"`
	Reason            string    `json:"reason"`
	Note              *string   `json:"note,omitempty"`
	Images            []string  `json:"images,omitempty"`
	BankName          string    `json:"bankName"`
	BankAccountNumber string    `json:"bankAccountNumber"`
	BankAccountHolder string    `json:"bankAccountHolder"`
}

// UpdateReturnStatusRequest is the admin payload for moving a return request.
type UpdateReturnStatusRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note,omitempty"`
}

// ConfirmConditionsRequest is the admin payload settling a returned order.
type ConfirmConditionsRequest struct {
	Items     []ItemCondition `json:"items"`
	AdminNote *string         `json:"adminNote,omitempty"`
}

// ReturnFilter narrows a return request listing.
type ReturnFilter struct {
	Status *ReturnStatus
	Page   int
	Size   int
}
