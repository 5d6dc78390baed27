package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Channel is the sales channel an order was placed through.
type Channel string

const (
	ChannelOnline Channel = "online"
	ChannelPOS    Channel = "pos"
)

// POSOrderPrefix prefixes the order number of every point-of-sale order.
const POSOrderPrefix = "POS-"

// Order represents a customer order and its settlement breakdown.
type Order struct {
	ID                uuid.UUID            `json:"id" db:"id"`
	OrderNumber       string               `json:"orderNumber" db:"order_number"`
	Channel           Channel              `json:"channel" db:"channel"`
	UserID            *uuid.UUID           `json:"userId,omitempty" db:"user_id"`
	Status            OrderStatus          `json:"status" db:"status"`
	Subtotal          decimal.Decimal      `json:"subtotal" db:"subtotal"`
	DiscountAmount    decimal.Decimal      `json:"discountAmount" db:"discount_amount"`
	ShippingFee       decimal.Decimal      `json:"shippingFee" db:"shipping_fee"`
	TaxAmount         decimal.Decimal      `json:"taxAmount" db:"tax_amount"`
	PointsUsed        int                  `json:"pointsUsed" db:"points_used"`
	PointsDiscount    decimal.Decimal      `json:"pointsDiscount" db:"points_discount"`
	PointsEarned      int                  `json:"pointsEarned" db:"points_earned"`
	TotalAmount       decimal.Decimal      `json:"totalAmount" db:"total_amount"`
	CouponID          *uuid.UUID           `json:"couponId,omitempty" db:"coupon_id"`
	ShippingAddressID *uuid.UUID           `json:"shippingAddressId,omitempty" db:"shipping_address_id"`
	Notes             *string              `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time            `json:"updatedAt" db:"updated_at"`
	Details           []OrderDetail        `json:"details"`
	History           []OrderStatusHistory `json:"history"`
	Payment           *Payment             `json:"payment,omitempty"`
}

// IsPOS reports whether the order was recorded at the point of sale.
func (o *Order) IsPOS() bool {
	return o.Channel == ChannelPOS || strings.HasPrefix(o.OrderNumber, POSOrderPrefix)
}

// TaxableAmount is the subtotal less coupon and points discounts, floored at zero.
func (o *Order) TaxableAmount() decimal.Decimal {
	taxable := o.Subtotal.Sub(o.DiscountAmount).Sub(o.PointsDiscount)
	if taxable.IsNegative() {
		return decimal.Zero
	}
	return taxable
}

// ApplyTotals recomputes tax and total from the current breakdown.
func (o *Order) ApplyTotals(vatRate decimal.Decimal) {
	taxable := o.TaxableAmount()
	o.TaxAmount = taxable.Mul(vatRate).Round(2)
	o.TotalAmount = taxable.Add(o.TaxAmount)
}

// AppendHistory records a status entry on the order.
func (o *Order) AppendHistory(status OrderStatus, note *string, at time.Time) OrderStatusHistory {
	entry := OrderStatusHistory{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Status:    status,
		Note:      note,
		ChangedAt: at,
	}
	o.History = append(o.History, entry)
	return entry
}

// DetailForVariant returns the order line for a variant, if any.
func (o *Order) DetailForVariant(variantID uuid.UUID) (*OrderDetail, bool) {
	for i := range o.Details {
		if o.Details[i].VariantID != nil && *o.Details[i].VariantID == variantID {
			return &o.Details[i], true
		}
	}
	return nil, false
}

// OrderDetail is a line item. The product snapshot fields stay authoritative
// when the variant is later deleted and VariantID becomes nil.
type OrderDetail struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderID     uuid.UUID       `json:"-" db:"order_id"`
	VariantID   *uuid.UUID      `json:"variantId,omitempty" db:"variant_id"`
	ProductName string          `json:"productName" db:"product_name"`
	VariantSKU  string          `json:"variantSku" db:"variant_sku"`
	Size        string          `json:"size" db:"size"`
	Color       string          `json:"color" db:"color"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" db:"unit_price"`
	TotalPrice  decimal.Decimal `json:"totalPrice" db:"total_price"`
}

// OrderStatusHistory is an append-only record of a status change.
type OrderStatusHistory struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	OrderID   uuid.UUID   `json:"-" db:"order_id"`
	Status    OrderStatus `json:"status" db:"status"`
	Note      *string     `json:"note,omitempty" db:"note"`
	ChangedAt time.Time   `json:"changedAt" db:"changed_at"`
}

// PaymentStatus is the state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment records how an order was paid.
type Payment struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	OrderID       uuid.UUID       `json:"-" db:"order_id"`
	PaymentMethod PaymentMethod   `json:"paymentMethod" db:"payment_method"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Status        PaymentStatus   `json:"status" db:"status"`
	TransactionID *string         `json:"transactionId,omitempty" db:"transaction_id"`
	PaidAt        *time.Time      `json:"paidAt,omitempty" db:"paid_at"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// PaymentMethod is a canonical payment method.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodVNPay        PaymentMethod = "vnpay"
	PaymentMethodMomo         PaymentMethod = "momo"
	PaymentMethodZaloPay      PaymentMethod = "zalopay"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
)

var paymentMethodAliases = map[string]PaymentMethod{
	"cash":   PaymentMethodCOD,
	"card":   PaymentMethodCreditCard,
	"bank":   PaymentMethodBankTransfer,
	"online": PaymentMethodVNPay,
}

// NormalizePaymentMethod maps POS vocabulary onto canonical methods.
// The second result is false when the input was unknown and COD was assumed.
func NormalizePaymentMethod(raw string) (PaymentMethod, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if method, ok := paymentMethodAliases[key]; ok {
		return method, true
	}
	switch method := PaymentMethod(key); method {
	case PaymentMethodCOD, PaymentMethodVNPay, PaymentMethodMomo,
		PaymentMethodZaloPay, PaymentMethodBankTransfer, PaymentMethodCreditCard:
		return method, true
	}
	return PaymentMethodCOD, false
}
