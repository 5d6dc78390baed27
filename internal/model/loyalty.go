package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// CurrencyPerPoint is the redemption value of one loyalty point.
	CurrencyPerPoint = 1000

	// CurrencyPerEarnedPoint is the taxable spend that earns one point.
	CurrencyPerEarnedPoint = 10000

	// PointsValidityYears is how long an earned point stays spendable.
	PointsValidityYears = 1

	// DefaultAwardDescription is used when an admin award carries no reason.
	DefaultAwardDescription = "Bonus points awarded by admin"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionEarn   TransactionType = "earn"
	TransactionRedeem TransactionType = "redeem"
)

// LoyaltyPoint is an immutable ledger entry. Earn entries carry positive
// points and an expiry; redeem entries carry negative points and never expire.
type LoyaltyPoint struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	UserID            uuid.UUID       `json:"userId" db:"user_id"`
	Points            int             `json:"points" db:"points"`
	TransactionType   TransactionType `json:"transactionType" db:"transaction_type"`
	Description       string          `json:"description" db:"description"`
	ExpiresAt         *time.Time      `json:"expiresAt,omitempty" db:"expires_at"`
	EarnedFromOrderID *uuid.UUID      `json:"earnedFromOrderId,omitempty" db:"earned_from_order_id"`
	RedeemedInOrderID *uuid.UUID      `json:"redeemedInOrderId,omitempty" db:"redeemed_in_order_id"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

// NewEarnEntry builds an earn entry expiring one year after now.
func NewEarnEntry(userID uuid.UUID, points int, description string, orderID *uuid.UUID, now time.Time) (*LoyaltyPoint, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}
	expiresAt := now.AddDate(PointsValidityYears, 0, 0)
	return &LoyaltyPoint{
		ID:                uuid.New(),
		UserID:            userID,
		Points:            points,
		TransactionType:   TransactionEarn,
		Description:       description,
		ExpiresAt:         &expiresAt,
		EarnedFromOrderID: orderID,
		CreatedAt:         now,
	}, nil
}

// NewRedeemEntry builds a redeem entry for a positive amount of points.
// The stored value is negated.
func NewRedeemEntry(userID uuid.UUID, points int, description string, orderID *uuid.UUID, now time.Time) (*LoyaltyPoint, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}
	return &LoyaltyPoint{
		ID:                uuid.New(),
		UserID:            userID,
		Points:            -points,
		TransactionType:   TransactionRedeem,
		Description:       description,
		RedeemedInOrderID: orderID,
		CreatedAt:         now,
	}, nil
}

// NewClawBackEntry builds the redeem entry that takes back points an order
// earned. It references the order as the source of the earn, so it is never
// mistaken for a redemption made in that order.
func NewClawBackEntry(userID uuid.UUID, points int, description string, orderID uuid.UUID, now time.Time) (*LoyaltyPoint, error) {
	entry, err := NewRedeemEntry(userID, points, description, nil, now)
	if err != nil {
		return nil, err
	}
	entry.EarnedFromOrderID = &orderID
	return entry, nil
}

// PointsDiscount is the currency value of the given points.
func PointsDiscount(points int) decimal.Decimal {
	return decimal.NewFromInt(int64(points)).Mul(decimal.NewFromInt(CurrencyPerPoint))
}

// PointsForAmount is the number of points a taxable amount earns, rounded half up.
func PointsForAmount(taxable decimal.Decimal) int {
	if !taxable.IsPositive() {
		return 0
	}
	return int(taxable.Div(decimal.NewFromInt(CurrencyPerEarnedPoint)).Round(0).IntPart())
}

// PointsBalance is a user's spendable balance.
type PointsBalance struct {
	UserID  uuid.UUID `json:"userId"`
	Balance int       `json:"balance"`
}
