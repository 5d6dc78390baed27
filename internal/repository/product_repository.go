package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const variantColumns = `
	v.id, v.product_id, p.name, v.sku, v.size, v.color, v.price_base, v.price_sale,
	v.stock_quantity, v.damaged_quantity, v.created_at, v.updated_at
`

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

func scanVariant(row pgx.Row) (*model.ProductVariant, error) {
	var v model.ProductVariant
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.ProductName,
		&v.SKU,
		&v.Size,
		&v.Color,
		&v.PriceBase,
		&v.PriceSale,
		&v.StockQuantity,
		&v.DamagedQuantity,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVariant retrieves a single variant by its ID.
func (r *productRepository) GetVariant(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	query := `SELECT ` + variantColumns + `
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`

	v, err := scanVariant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("variant_id", id.String()).Msg("variant not found")
			return nil, model.ErrVariantNotFound
		}
		r.logger.Error().Err(err).Str("variant_id", id.String()).Msg("failed to query variant")
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}

	return v, nil
}

// GetVariantForUpdate retrieves and locks a variant within the provided transaction.
func (r *productRepository) GetVariantForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.ProductVariant, error) {
	query := `SELECT ` + variantColumns + `
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
		FOR UPDATE OF v
	`

	v, err := scanVariant(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("variant_id", id.String()).Msg("variant not found")
			return nil, model.ErrVariantNotFound
		}
		r.logger.Error().Err(err).Str("variant_id", id.String()).Msg("failed to lock variant")
		return nil, fmt.Errorf("failed to lock variant: %w", err)
	}

	return v, nil
}

// LockVariants locks the given variants in ascending id order so concurrent
// callers touching overlapping sets cannot deadlock. Missing ids are absent
// from the result.
func (r *productRepository) LockVariants(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]*model.ProductVariant, error) {
	variants := make(map[uuid.UUID]*model.ProductVariant, len(ids))
	if len(ids) == 0 {
		return variants, nil
	}

	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})
	sorted = slices.Compact(sorted)

	query := `SELECT ` + variantColumns + `
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)
		ORDER BY v.id
		FOR UPDATE OF v
	`

	rows, err := tx.Query(ctx, query, sorted)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(sorted)).Msg("failed to lock variants")
		return nil, fmt.Errorf("failed to lock variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan variant row")
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants[v.ID] = v
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating variant rows")
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	return variants, nil
}

// FirstVariantForUpdate locks the earliest created variant of a product.
func (r *productRepository) FirstVariantForUpdate(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (*model.ProductVariant, error) {
	query := `SELECT ` + variantColumns + `
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.product_id = $1
		ORDER BY v.created_at, v.id
		LIMIT 1
		FOR UPDATE OF v
	`

	v, err := scanVariant(tx.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", productID.String()).Msg("product has no variants")
			return nil, model.ErrProductNotFound
		}
		r.logger.Error().Err(err).Str("product_id", productID.String()).Msg("failed to lock product variant")
		return nil, fmt.Errorf("failed to lock product variant: %w", err)
	}

	return v, nil
}

// DeductStock subtracts qty from the variant's stock when enough is available.
func (r *productRepository) DeductStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int) (bool, error) {
	query := `
		UPDATE product_variants
		SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity >= $2
	`

	tag, err := tx.Exec(ctx, query, id, qty)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("variant_id", id.String()).
			Int("quantity", qty).
			Msg("failed to deduct stock")
		return false, fmt.Errorf("failed to deduct stock: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// AddStock returns good units to stock and books damaged units separately.
func (r *productRepository) AddStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, good, damaged int) error {
	query := `
		UPDATE product_variants
		SET stock_quantity = stock_quantity + $2,
			damaged_quantity = damaged_quantity + $3,
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query, id, good, damaged)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("variant_id", id.String()).
			Int("good", good).
			Int("damaged", damaged).
			Msg("failed to restock variant")
		return fmt.Errorf("failed to restock variant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrVariantNotFound
	}

	return nil
}
