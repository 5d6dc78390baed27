package repository

import (
	"context"
	"testing"

	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepository_GetVariant(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewProductRepository(pool, zerolog.Nop())
	seeded := seedVariant(t, pool, "Linen Shirt", 250000, 5)

	tests := []struct {
		name    string
		id      uuid.UUID
		wantErr error
	}{
		{name: "Existing variant", id: seeded.ID},
		{name: "Unknown variant", id: uuid.New(), wantErr: model.ErrVariantNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := repo.GetVariant(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, v)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Linen Shirt", v.ProductName)
			assert.Equal(t, 5, v.StockQuantity)
			assert.True(t, seeded.PriceBase.Equal(v.PriceBase))
			assert.False(t, v.PriceSale.Valid)
		})
	}
}

func TestProductRepository_DeductStock(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewProductRepository(pool, zerolog.Nop())
	v := seedVariant(t, pool, "Canvas Tote", 90000, 5)

	tests := []struct {
		name      string
		qty       int
		wantOK    bool
		wantStock int
	}{
		{name: "Deduct within stock", qty: 2, wantOK: true, wantStock: 3},
		{name: "Deduct exactly remaining", qty: 3, wantOK: true, wantStock: 0},
		{name: "Deduct beyond stock leaves it unchanged", qty: 1, wantOK: false, wantStock: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTx(t, pool, func(tx pgx.Tx) {
				ok, err := repo.DeductStock(ctx, tx, v.ID, tt.qty)
				require.NoError(t, err)
				assert.Equal(t, tt.wantOK, ok)
			})

			got, err := repo.GetVariant(ctx, v.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStock, got.StockQuantity)
		})
	}
}

func TestProductRepository_AddStock(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewProductRepository(pool, zerolog.Nop())
	v := seedVariant(t, pool, "Wool Scarf", 120000, 1)

	inTx(t, pool, func(tx pgx.Tx) {
		require.NoError(t, repo.AddStock(ctx, tx, v.ID, 2, 1))
		assert.ErrorIs(t, repo.AddStock(ctx, tx, uuid.New(), 1, 0), model.ErrVariantNotFound)
	})

	got, err := repo.GetVariant(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.StockQuantity)
	assert.Equal(t, 1, got.DamagedQuantity)
}

func TestProductRepository_LockVariants(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewProductRepository(pool, zerolog.Nop())
	a := seedVariant(t, pool, "Sock A", 10000, 1)
	b := seedVariant(t, pool, "Sock B", 10000, 2)

	inTx(t, pool, func(tx pgx.Tx) {
		locked, err := repo.LockVariants(ctx, tx, []uuid.UUID{b.ID, a.ID, b.ID, uuid.New()})
		require.NoError(t, err)
		assert.Len(t, locked, 2)
		assert.Equal(t, 1, locked[a.ID].StockQuantity)
		assert.Equal(t, "Sock B", locked[b.ID].ProductName)

		empty, err := repo.LockVariants(ctx, tx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestProductRepository_FirstVariantForUpdate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewProductRepository(pool, zerolog.Nop())
	v := seedVariant(t, pool, "Cap", 50000, 4)

	inTx(t, pool, func(tx pgx.Tx) {
		got, err := repo.FirstVariantForUpdate(ctx, tx, v.ProductID)
		require.NoError(t, err)
		assert.Equal(t, v.ID, got.ID)

		_, err = repo.FirstVariantForUpdate(ctx, tx, uuid.New())
		assert.ErrorIs(t, err, model.ErrProductNotFound)
	})
}
