package coupon

import (
	"context"
	"time"

	"order-settlement/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Validator resolves a coupon code against the coupons table and prices it.
type Validator interface {
	// Apply locks the coupon, checks that it is usable at now and computes
	// its discount for subtotal. The caller increments usage in the same
	// transaction.
	Apply(ctx context.Context, tx pgx.Tx, code string, subtotal decimal.Decimal, now time.Time) (*model.Coupon, decimal.Decimal, error)
}

// Catalog is an in-memory set of coupon definitions keyed by code.
type Catalog interface {
	// Get returns the coupon for a code, ignoring case.
	Get(code string) (model.Coupon, bool)

	// Coupons returns every coupon in the catalog.
	Coupons() []model.Coupon

	// Size returns the number of coupons in the catalog.
	Size() int
}

// Loader defines the interface for loading coupon catalog files.
type Loader interface {
	// Load reads a gzipped JSON-lines catalog and returns a Catalog.
	Load(ctx context.Context, filePath string) (Catalog, error)
}

// Syncer copies catalog definitions into the coupons table.
type Syncer interface {
	// Sync loads every path, merges them in order and upserts the result.
	// It returns the number of coupons written.
	Sync(ctx context.Context, paths ...string) (int, error)
}
