package model

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON             = "INVALID_JSON"
	ErrCodeInvalidID               = "INVALID_ID"
	ErrCodeMissingField            = "MISSING_FIELD"
	ErrCodeInvalidQuantity         = "INVALID_QUANTITY"
	ErrCodeInvalidAmount           = "INVALID_AMOUNT"
	ErrCodeInvalidStatus           = "INVALID_STATUS"
	ErrCodeInvalidTransition       = "INVALID_TRANSITION"
	ErrCodeInvalidReturnTransition = "INVALID_RETURN_TRANSITION"
	ErrCodeReturnNotApproved       = "RETURN_NOT_APPROVED"
	ErrCodeReturnAlreadyExists     = "RETURN_ALREADY_EXISTS"
	ErrCodeOrderNotReturnable      = "ORDER_NOT_RETURNABLE"
	ErrCodeOrderNotFound           = "ORDER_NOT_FOUND"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeProductNotFound         = "PRODUCT_NOT_FOUND"
	ErrCodeVariantNotFound         = "VARIANT_NOT_FOUND"
	ErrCodeCouponNotFound          = "COUPON_NOT_FOUND"
	ErrCodeReturnNotFound          = "RETURN_NOT_FOUND"
	ErrCodeInsufficientStock       = "INSUFFICIENT_STOCK"
	ErrCodeInsufficientBalance     = "INSUFFICIENT_BALANCE"
	ErrCodeQuantityExceeded        = "QUANTITY_EXCEEDED"
	ErrCodeVariantNotInOrder       = "VARIANT_NOT_IN_ORDER"
	ErrCodeCouponInvalid           = "COUPON_INVALID"
	ErrCodeCouponMinOrder          = "COUPON_MIN_ORDER"
	ErrCodePointsNotApplicable     = "POINTS_NOT_APPLICABLE"
	ErrCodeUnauthorised            = "UNAUTHORIZED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeInternalError           = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrMissingField            = NewDomainError(ErrCodeMissingField, "A required field is missing")
	ErrInvalidQuantity         = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidAmount           = NewDomainError(ErrCodeInvalidAmount, "Points amount must be greater than zero")
	ErrInvalidStatus           = NewDomainError(ErrCodeInvalidStatus, "Status value is not recognised")
	ErrInvalidTransition       = NewDomainError(ErrCodeInvalidTransition, "Order cannot move to the requested status")
	ErrInvalidReturnTransition = NewDomainError(ErrCodeInvalidReturnTransition, "Return request cannot move to the requested status")
	ErrReturnNotApproved       = NewDomainError(ErrCodeReturnNotApproved, "Return request must be approved before the refund is processed")
	ErrReturnAlreadyExists     = NewDomainError(ErrCodeReturnAlreadyExists, "A return request already exists for this order")
	ErrOrderNotReturnable      = NewDomainError(ErrCodeOrderNotReturnable, "Only delivered orders owned by the requester can be returned")
	ErrOrderNotFound           = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrUserNotFound            = NewDomainError(ErrCodeUserNotFound, "User not found")
	ErrProductNotFound         = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrVariantNotFound         = NewDomainError(ErrCodeVariantNotFound, "Product variant not found")
	ErrCouponNotFound          = NewDomainError(ErrCodeCouponNotFound, "Coupon not found")
	ErrReturnNotFound          = NewDomainError(ErrCodeReturnNotFound, "Return request not found")
	ErrInsufficientStock       = NewDomainError(ErrCodeInsufficientStock, "Insufficient stock")
	ErrInsufficientBalance     = NewDomainError(ErrCodeInsufficientBalance, "Insufficient points balance")
	ErrQuantityExceeded        = NewDomainError(ErrCodeQuantityExceeded, "Returned quantity exceeds purchased quantity")
	ErrVariantNotInOrder       = NewDomainError(ErrCodeVariantNotInOrder, "Variant is not part of the order")
	ErrCouponInvalid           = NewDomainError(ErrCodeCouponInvalid, "Coupon is not valid")
	ErrCouponMinOrder          = NewDomainError(ErrCodeCouponMinOrder, "Order does not reach the coupon minimum")
	ErrPointsNotApplicable     = NewDomainError(ErrCodePointsNotApplicable, "Points can only be applied once to a pending order of the same customer")
)

// InsufficientStockError reports a stock shortage for a single variant.
type InsufficientStockError struct {
	VariantID   uuid.UUID
	ProductName string
	Required    int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %s insufficient. stock: %d, required: %d", e.ProductName, e.Available, e.Required)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// InsufficientBalanceError reports a redemption larger than the user's balance.
type InsufficientBalanceError struct {
	UserID    uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient points balance: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// QuantityExceededError reports a return line whose good+damaged split exceeds the purchase.
type QuantityExceededError struct {
	VariantID uuid.UUID
	Purchased int
	Requested int
}

func (e *QuantityExceededError) Error() string {
	return fmt.Sprintf("variant %s: returned quantity %d exceeds purchased quantity %d", e.VariantID, e.Requested, e.Purchased)
}

func (e *QuantityExceededError) Unwrap() error {
	return ErrQuantityExceeded
}

// VariantNotInOrderError reports a return line for a variant the order never contained.
type VariantNotInOrderError struct {
	VariantID uuid.UUID
}

func (e *VariantNotInOrderError) Error() string {
	return fmt.Sprintf("variant %s is not part of the order", e.VariantID)
}

func (e *VariantNotInOrderError) Unwrap() error {
	return ErrVariantNotInOrder
}
