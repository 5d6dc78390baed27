package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-settlement/internal/model"
	"order-settlement/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// validator implements Validator on top of the coupons table.
type validator struct {
	repo   repository.CouponRepository
	logger zerolog.Logger
}

// NewValidator creates a new coupon validator.
func NewValidator(repo repository.CouponRepository, logger zerolog.Logger) Validator {
	return &validator{
		repo:   repo,
		logger: logger.With().Str("component", "coupon-validator").Logger(),
	}
}

// Apply locks the coupon row and prices it for subtotal.
// A coupon that is inactive, outside its window or used up fails with
// ErrCouponInvalid; a subtotal under the minimum fails with ErrCouponMinOrder.
func (v *validator) Apply(ctx context.Context, tx pgx.Tx, code string, subtotal decimal.Decimal, now time.Time) (*model.Coupon, decimal.Decimal, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, decimal.Zero, model.ErrCouponInvalid
	}

	coupon, err := v.repo.GetByCodeForUpdate(ctx, tx, code)
	if err != nil {
		if errors.Is(err, model.ErrCouponNotFound) {
			v.logger.Debug().Str("code", code).Msg("coupon code unknown")
			return nil, decimal.Zero, fmt.Errorf("%w: %s", model.ErrCouponInvalid, code)
		}
		return nil, decimal.Zero, err
	}

	if !coupon.Usable(now) {
		v.logger.Debug().
			Str("code", code).
			Bool("active", coupon.IsActive).
			Int("uses_count", coupon.UsesCount).
			Msg("coupon not usable")
		return nil, decimal.Zero, fmt.Errorf("%w: %s", model.ErrCouponInvalid, code)
	}

	discount, err := coupon.Discount(subtotal)
	if err != nil {
		v.logger.Debug().
			Err(err).
			Str("code", code).
			Str("subtotal", subtotal.String()).
			Msg("coupon rejected for order")
		return nil, decimal.Zero, err
	}

	v.logger.Debug().
		Str("code", code).
		Str("discount", discount.String()).
		Msg("coupon applied")

	return coupon, discount, nil
}
