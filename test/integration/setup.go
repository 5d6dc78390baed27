package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"order-settlement/internal/config"
	"order-settlement/internal/database"
	"order-settlement/internal/model"
	"order-settlement/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a migrated PostgreSQL test container and connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.Nop()
	if err := database.Migrate(connStr, logger); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	// Create connection pool through the same path the server uses
	pool, err := database.NewPool(ctx, config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedUser inserts a customer and returns its ID.
func SeedUser(t *testing.T, pool *pgxpool.Pool, name string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, full_name, email, phone) VALUES ($1, $2, $3, $4)`,
		id, name, id.String()+"@example.com", "0900000000",
	)
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", name, err)
	}
	return id
}

// SeedVariant inserts a product with one variant and returns the variant.
func SeedVariant(t *testing.T, pool *pgxpool.Pool, name string, price int64, stock int) *model.ProductVariant {
	t.Helper()

	ctx := context.Background()
	v := &model.ProductVariant{
		ID:            uuid.New(),
		ProductID:     uuid.New(),
		ProductName:   name,
		SKU:           "SKU-" + uuid.NewString()[:8],
		Size:          "42",
		Color:         "black",
		PriceBase:     decimal.NewFromInt(price),
		StockQuantity: stock,
	}

	if _, err := pool.Exec(ctx, `INSERT INTO products (id, name) VALUES ($1, $2)`, v.ProductID, name); err != nil {
		t.Fatalf("failed to seed product %s: %v", name, err)
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO product_variants (id, product_id, sku, size, color, price_base, stock_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.ProductID, v.SKU, v.Size, v.Color, v.PriceBase, v.StockQuantity,
	)
	if err != nil {
		t.Fatalf("failed to seed variant %s: %v", name, err)
	}
	return v
}

// SeedCoupon inserts an active percentage coupon.
func SeedCoupon(t *testing.T, pool *pgxpool.Pool, code string, percent int64) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO coupons (id, code, discount_type, value, is_active)
		VALUES ($1, $2, 'percent', $3, TRUE)`,
		id, code, decimal.NewFromInt(percent),
	)
	if err != nil {
		t.Fatalf("failed to seed coupon %s: %v", code, err)
	}
	return id
}

// SeedOrder persists a pending online order for qty units of v.
func SeedOrder(t *testing.T, pool *pgxpool.Pool, userID uuid.UUID, v *model.ProductVariant, qty int) *model.Order {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := uuid.New()
	variantID := v.ID
	unit := v.EffectivePrice()
	lineTotal := unit.Mul(decimal.NewFromInt(int64(qty)))

	order := &model.Order{
		ID:          id,
		OrderNumber: "ORD-" + id.String()[:8],
		Channel:     model.ChannelOnline,
		UserID:      &userID,
		Status:      model.OrderStatusPending,
		Subtotal:    lineTotal,
		CreatedAt:   now,
		UpdatedAt:   now,
		Details: []model.OrderDetail{{
			ID:          uuid.New(),
			OrderID:     id,
			VariantID:   &variantID,
			ProductName: v.ProductName,
			VariantSKU:  v.SKU,
			Quantity:    qty,
			UnitPrice:   unit,
			TotalPrice:  lineTotal,
		}},
	}
	order.ApplyTotals(decimal.NewFromFloat(0.1))
	order.AppendHistory(model.OrderStatusPending, nil, now)

	logger := zerolog.Nop()
	tx, err := repository.NewTxManager(pool, logger).BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		t.Fatalf("failed to begin seed transaction: %v", err)
	}
	if err := repository.NewOrderRepository(pool, logger).Create(ctx, tx, order); err != nil {
		_ = tx.Rollback(ctx)
		t.Fatalf("failed to seed order: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("failed to commit seed order: %v", err)
	}
	return order
}

// StockOf returns the stock and damaged counters of a variant.
func StockOf(t *testing.T, pool *pgxpool.Pool, variantID uuid.UUID) (stock, damaged int) {
	t.Helper()

	err := pool.QueryRow(context.Background(),
		`SELECT stock_quantity, damaged_quantity FROM product_variants WHERE id = $1`, variantID,
	).Scan(&stock, &damaged)
	if err != nil {
		t.Fatalf("failed to read stock of %s: %v", variantID, err)
	}
	return stock, damaged
}

// CleanupDB removes all rows from the settlement tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	tables := []string{
		"return_requests", "loyalty_points", "payments", "order_status_histories",
		"order_details", "orders", "addresses", "coupons", "product_variants", "products", "users",
	}
	for _, table := range tables {
		if _, err := pool.Exec(context.Background(), fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
