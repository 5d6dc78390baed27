package service

import (
	"context"

	"order-settlement/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// couponUsageTracker implements CouponUsageTracker.
type couponUsageTracker struct {
	coupons repository.CouponRepository
	logger  zerolog.Logger
}

// NewCouponUsageTracker creates a new coupon usage tracker.
func NewCouponUsageTracker(coupons repository.CouponRepository, logger zerolog.Logger) CouponUsageTracker {
	return &couponUsageTracker{
		coupons: coupons,
		logger:  logger.With().Str("service", "coupon-usage").Logger(),
	}
}

// Increment counts one more use of the coupon.
func (t *couponUsageTracker) Increment(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) error {
	if err := t.coupons.IncrementUses(ctx, tx, couponID); err != nil {
		return err
	}
	t.logger.Debug().Str("coupon_id", couponID.String()).Msg("coupon use counted")
	return nil
}

// Decrement releases one use of the coupon. The counter floors at zero.
func (t *couponUsageTracker) Decrement(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) error {
	if err := t.coupons.DecrementUses(ctx, tx, couponID); err != nil {
		return err
	}
	t.logger.Debug().Str("coupon_id", couponID.String()).Msg("coupon use released")
	return nil
}
