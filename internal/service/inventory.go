package service

import (
	"context"
	"slices"

	"order-settlement/internal/metrics"
	"order-settlement/internal/model"
	"order-settlement/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// inventoryAdjuster implements InventoryAdjuster.
type inventoryAdjuster struct {
	products repository.ProductRepository
	logger   zerolog.Logger
}

// NewInventoryAdjuster creates a new inventory adjuster.
func NewInventoryAdjuster(products repository.ProductRepository, logger zerolog.Logger) InventoryAdjuster {
	return &inventoryAdjuster{
		products: products,
		logger:   logger.With().Str("service", "inventory").Logger(),
	}
}

// Deduct removes qty units from a variant the caller has locked. The stock
// update is itself guarded, so stock never goes negative even if the
// caller's copy is stale.
func (a *inventoryAdjuster) Deduct(ctx context.Context, tx pgx.Tx, variant *model.ProductVariant, qty int) error {
	if qty <= 0 {
		return model.ErrInvalidQuantity
	}
	if qty > variant.StockQuantity {
		return a.shortage(variant, qty, variant.StockQuantity)
	}

	ok, err := a.products.DeductStock(ctx, tx, variant.ID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return a.shortage(variant, qty, variant.StockQuantity)
	}

	variant.StockQuantity -= qty

	a.logger.Debug().
		Str("variant_id", variant.ID.String()).
		Int("quantity", qty).
		Int("stock", variant.StockQuantity).
		Msg("stock deducted")

	return nil
}

// DeductLines locks the variants of all lines in ascending id order, checks
// every line against stock, and deducts only once all checks passed. Lines
// for the same variant are summed. Lines whose variant was deleted are skipped.
func (a *inventoryAdjuster) DeductLines(ctx context.Context, tx pgx.Tx, details []model.OrderDetail) error {
	required := make(map[uuid.UUID]int, len(details))
	names := make(map[uuid.UUID]string, len(details))
	for _, d := range details {
		if d.VariantID == nil {
			a.logger.Warn().Str("product_name", d.ProductName).Msg("order line has no variant, skipping stock deduction")
			continue
		}
		required[*d.VariantID] += d.Quantity
		names[*d.VariantID] = d.ProductName
	}
	if len(required) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(x, y uuid.UUID) int { return slices.Compare(x[:], y[:]) })

	variants, err := a.products.LockVariants(ctx, tx, ids)
	if err != nil {
		return err
	}

	for _, id := range ids {
		v, ok := variants[id]
		if !ok {
			a.logger.Warn().Str("variant_id", id.String()).Msg("variant vanished, skipping stock deduction")
			continue
		}
		if v.StockQuantity < required[id] {
			if v.ProductName == "" {
				v.ProductName = names[id]
			}
			return a.shortage(v, required[id], v.StockQuantity)
		}
	}

	for _, id := range ids {
		v, ok := variants[id]
		if !ok {
			continue
		}
		if err := a.Deduct(ctx, tx, v, required[id]); err != nil {
			return err
		}
	}

	return nil
}

// Restock adds good units back to stock and damaged units to the damaged counter.
func (a *inventoryAdjuster) Restock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, good, damaged int) error {
	if good < 0 || damaged < 0 {
		return model.ErrInvalidQuantity
	}
	if good == 0 && damaged == 0 {
		return nil
	}

	if err := a.products.AddStock(ctx, tx, variantID, good, damaged); err != nil {
		return err
	}

	a.logger.Debug().
		Str("variant_id", variantID.String()).
		Int("good", good).
		Int("damaged", damaged).
		Msg("variant restocked")

	return nil
}

func (a *inventoryAdjuster) shortage(v *model.ProductVariant, required, available int) error {
	metrics.StockShortagesTotal.Inc()
	a.logger.Warn().
		Str("variant_id", v.ID.String()).
		Str("product_name", v.ProductName).
		Int("required", required).
		Int("available", available).
		Msg("insufficient stock")

	name := v.ProductName
	if v.Size != "" || v.Color != "" {
		name = name + " (" + v.Size + "/" + v.Color + ")"
	}
	return &model.InsufficientStockError{
		VariantID:   v.ID,
		ProductName: name,
		Required:    required,
		Available:   available,
	}
}
