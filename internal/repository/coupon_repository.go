package repository

import (
	"context"
	"errors"
	"fmt"

	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// couponRepository implements the CouponRepository interface using PostgreSQL.
type couponRepository struct {
	logger zerolog.Logger
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(logger zerolog.Logger) CouponRepository {
	return &couponRepository{
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

// GetByCodeForUpdate retrieves and locks a coupon by code, ignoring case.
func (r *couponRepository) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*model.Coupon, error) {
	query := `
		SELECT id, code, discount_type, value, max_discount_amount, min_order_amount,
			max_uses, uses_count, starts_at, expires_at, is_active
		FROM coupons
		WHERE UPPER(code) = UPPER($1)
		FOR UPDATE
	`

	var c model.Coupon
	err := tx.QueryRow(ctx, query, code).Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.Value,
		&c.MaxDiscountAmount,
		&c.MinOrderAmount,
		&c.MaxUses,
		&c.UsesCount,
		&c.StartsAt,
		&c.ExpiresAt,
		&c.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("code", code).Msg("coupon not found")
			return nil, model.ErrCouponNotFound
		}
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	return &c, nil
}

// IncrementUses adds one to the coupon's usage counter.
func (r *couponRepository) IncrementUses(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return r.adjustUses(ctx, tx, id, `UPDATE coupons SET uses_count = uses_count + 1 WHERE id = $1`)
}

// DecrementUses subtracts one from the coupon's usage counter without going below zero.
func (r *couponRepository) DecrementUses(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return r.adjustUses(ctx, tx, id, `UPDATE coupons SET uses_count = GREATEST(uses_count - 1, 0) WHERE id = $1`)
}

func (r *couponRepository) adjustUses(ctx context.Context, tx pgx.Tx, id uuid.UUID, query string) error {
	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", id.String()).Msg("failed to update coupon usage")
		return fmt.Errorf("failed to update coupon usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrCouponNotFound
	}
	return nil
}

// Upsert inserts a coupon or updates its definition by code. The usage
// counter of an existing coupon is kept.
func (r *couponRepository) Upsert(ctx context.Context, tx pgx.Tx, c *model.Coupon) error {
	query := `
		INSERT INTO coupons (
			id, code, discount_type, value, max_discount_amount, min_order_amount,
			max_uses, uses_count, starts_at, expires_at, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			max_discount_amount = EXCLUDED.max_discount_amount,
			min_order_amount = EXCLUDED.min_order_amount,
			max_uses = EXCLUDED.max_uses,
			starts_at = EXCLUDED.starts_at,
			expires_at = EXCLUDED.expires_at,
			is_active = EXCLUDED.is_active
		RETURNING id, uses_count
	`

	err := tx.QueryRow(ctx, query,
		c.ID,
		c.Code,
		c.DiscountType,
		c.Value,
		c.MaxDiscountAmount,
		c.MinOrderAmount,
		c.MaxUses,
		c.StartsAt,
		c.ExpiresAt,
		c.IsActive,
	).Scan(&c.ID, &c.UsesCount)
	if err != nil {
		r.logger.Error().Err(err).Str("code", c.Code).Msg("failed to upsert coupon")
		return fmt.Errorf("failed to upsert coupon: %w", err)
	}

	return nil
}
