package repository

import (
	"context"
	"time"

	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxManager starts database transactions. Every write in this package runs
// inside a transaction obtained here.
type TxManager interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// ProductRepository defines data access for products and their variants.
type ProductRepository interface {
	// GetVariantForUpdate locks a variant row for the rest of the transaction.
	GetVariantForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.ProductVariant, error)

	// LockVariants locks several variant rows in ascending id order.
	LockVariants(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]*model.ProductVariant, error)

	// FirstVariantForUpdate locks the oldest variant of a product.
	FirstVariantForUpdate(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (*model.ProductVariant, error)

	// DeductStock subtracts qty from stock. It reports false, without
	// changing anything, when stock is lower than qty.
	DeductStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int) (bool, error)

	// AddStock adds good units to stock and damaged units to the damaged counter.
	AddStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, good, damaged int) error

	// GetVariant reads a variant without locking.
	GetVariant(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error)
}

// OrderRepository defines data access for orders and their owned records.
type OrderRepository interface {
	// Create inserts the order with its details, history and payment.
	Create(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// GetByID reads an order with details, history and payment.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetForUpdate locks the order row and loads its details.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// Update persists the mutable order fields.
	Update(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// SetPointsEarned records the points earned by an order.
	SetPointsEarned(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int) error

	// AppendHistory inserts a status history entry.
	AppendHistory(ctx context.Context, tx pgx.Tx, entry model.OrderStatusHistory) error

	// NextPOSOrderNumber returns the next POS-YYYYMMDD-NNNN number for day.
	NextPOSOrderNumber(ctx context.Context, tx pgx.Tx, day time.Time) (string, error)

	// DetailsByOrderIDs reads the details of several orders at once.
	DetailsByOrderIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]model.OrderDetail, error)
}

// LoyaltyRepository defines data access for the points ledger.
type LoyaltyRepository interface {
	// Insert appends a ledger entry.
	Insert(ctx context.Context, tx pgx.Tx, entry *model.LoyaltyPoint) error

	// SumActive sums the points of entries that have not expired at the given time.
	SumActive(ctx context.Context, tx pgx.Tx, userID uuid.UUID, at time.Time) (int, error)

	// ListByUser returns a user's entries, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.LoyaltyPoint, error)

	// HasRedemption reports whether a redeem entry already references the order.
	HasRedemption(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error)
}

// UserRepository defines data access for customers.
type UserRepository interface {
	// GetByID reads a user inside the transaction.
	GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.User, error)

	// Lock locks the user row, serialising ledger writes for that user.
	Lock(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// CouponRepository defines data access for coupons.
type CouponRepository interface {
	// GetByCodeForUpdate locks a coupon by its case-insensitive code.
	GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*model.Coupon, error)

	// IncrementUses adds one to the usage counter.
	IncrementUses(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// DecrementUses subtracts one from the usage counter, flooring at zero.
	DecrementUses(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// Upsert inserts or updates a coupon definition by code, keeping its usage counter.
	Upsert(ctx context.Context, tx pgx.Tx, coupon *model.Coupon) error
}

// AddressRepository defines data access for addresses.
type AddressRepository interface {
	// FindOrCreateWalkIn returns the counter address for a walk-in recipient, creating it on first use.
	FindOrCreateWalkIn(ctx context.Context, tx pgx.Tx, template model.Address) (*model.Address, error)
}

// ReturnRepository defines data access for return requests.
type ReturnRepository interface {
	// Create inserts a return request.
	Create(ctx context.Context, tx pgx.Tx, req *model.ReturnRequest) error

	// GetByID reads a return request.
	GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error)

	// GetForUpdate locks a return request row.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.ReturnRequest, error)

	// ExistsForOrder reports whether the order already has a return request.
	ExistsForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error)

	// Update persists the mutable return request fields.
	Update(ctx context.Context, tx pgx.Tx, req *model.ReturnRequest) error

	// List returns a page of return requests, newest first, with the order
	// number filled in. Items and images are left for the caller to assemble.
	List(ctx context.Context, filter model.ReturnFilter) ([]model.ReturnView, error)

	// Count returns the number of return requests matching the filter.
	Count(ctx context.Context, filter model.ReturnFilter) (int, error)
}
