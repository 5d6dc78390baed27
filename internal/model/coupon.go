package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType is how a coupon's value is applied.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Coupon is a discount code with a usage counter.
type Coupon struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	Code              string              `json:"code" db:"code"`
	DiscountType      DiscountType        `json:"discountType" db:"discount_type"`
	Value             decimal.Decimal     `json:"value" db:"value"`
	MaxDiscountAmount decimal.NullDecimal `json:"maxDiscountAmount" db:"max_discount_amount"`
	MinOrderAmount    decimal.NullDecimal `json:"minOrderAmount" db:"min_order_amount"`
	MaxUses           *int                `json:"maxUses,omitempty" db:"max_uses"`
	UsesCount         int                 `json:"usesCount" db:"uses_count"`
	StartsAt          *time.Time          `json:"startsAt,omitempty" db:"starts_at"`
	ExpiresAt         *time.Time          `json:"expiresAt,omitempty" db:"expires_at"`
	IsActive          bool                `json:"isActive" db:"is_active"`
}

// Usable reports whether the coupon is active, inside its validity window
// and below its usage limit.
func (c *Coupon) Usable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	if c.MaxUses != nil && c.UsesCount >= *c.MaxUses {
		return false
	}
	return true
}

// Discount computes the discount for a subtotal. It fails with
// ErrCouponMinOrder when the subtotal is below the coupon's minimum.
func (c *Coupon) Discount(subtotal decimal.Decimal) (decimal.Decimal, error) {
	if c.MinOrderAmount.Valid && subtotal.LessThan(c.MinOrderAmount.Decimal) {
		return decimal.Zero, ErrCouponMinOrder
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercent:
		discount = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100))
		if c.MaxDiscountAmount.Valid && discount.GreaterThan(c.MaxDiscountAmount.Decimal) {
			discount = c.MaxDiscountAmount.Decimal
		}
	case DiscountFixed:
		discount = c.Value
	default:
		return decimal.Zero, ErrCouponInvalid
	}

	return discount.Round(2), nil
}
