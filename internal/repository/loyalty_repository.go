package repository

import (
	"context"
	"fmt"
	"time"

	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// loyaltyRepository implements the LoyaltyRepository interface using PostgreSQL.
type loyaltyRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewLoyaltyRepository creates a new PostgreSQL-backed points ledger repository.
func NewLoyaltyRepository(pool *pgxpool.Pool, logger zerolog.Logger) LoyaltyRepository {
	return &loyaltyRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "loyalty").Logger(),
	}
}

// Insert appends a ledger entry within the provided transaction.
func (r *loyaltyRepository) Insert(ctx context.Context, tx pgx.Tx, entry *model.LoyaltyPoint) error {
	query := `
		INSERT INTO loyalty_points (
			id, user_id, points, transaction_type, description, expires_at,
			earned_from_order_id, redeemed_in_order_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := tx.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Points,
		entry.TransactionType,
		entry.Description,
		entry.ExpiresAt,
		entry.EarnedFromOrderID,
		entry.RedeemedInOrderID,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("user_id", entry.UserID.String()).
			Int("points", entry.Points).
			Str("transaction_type", string(entry.TransactionType)).
			Msg("failed to insert ledger entry")
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	r.logger.Debug().
		Str("user_id", entry.UserID.String()).
		Int("points", entry.Points).
		Msg("ledger entry inserted")

	return nil
}

// SumActive sums entries that have no expiry or expire after at. The raw sum
// is returned; callers clamp it.
func (r *loyaltyRepository) SumActive(ctx context.Context, tx pgx.Tx, userID uuid.UUID, at time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(points), 0)
		FROM loyalty_points
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)
	`

	var sum int
	if err := tx.QueryRow(ctx, query, userID, at).Scan(&sum); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to sum ledger entries")
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	return sum, nil
}

// ListByUser returns a user's ledger entries, newest first.
func (r *loyaltyRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.LoyaltyPoint, error) {
	query := `
		SELECT id, user_id, points, transaction_type, description, expires_at,
			earned_from_order_id, redeemed_in_order_id, created_at
		FROM loyalty_points
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to query ledger entries")
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []model.LoyaltyPoint{}
	for rows.Next() {
		var e model.LoyaltyPoint
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Points,
			&e.TransactionType,
			&e.Description,
			&e.ExpiresAt,
			&e.EarnedFromOrderID,
			&e.RedeemedInOrderID,
			&e.CreatedAt,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan ledger row")
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating ledger rows")
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// HasRedemption reports whether points were already redeemed against the order.
func (r *loyaltyRepository) HasRedemption(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM loyalty_points
			WHERE redeemed_in_order_id = $1 AND transaction_type = 'redeem'
		)
	`

	var exists bool
	if err := tx.QueryRow(ctx, query, orderID).Scan(&exists); err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to check order redemption")
		return false, fmt.Errorf("failed to check order redemption: %w", err)
	}

	return exists, nil
}
