package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const orderColumns = `
	id, order_number, channel, user_id, status, subtotal, discount_amount, shipping_fee,
	tax_amount, points_used, points_discount, points_earned, total_amount, coupon_id,
	shipping_address_id, notes, created_at, updated_at
`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.Channel,
		&o.UserID,
		&o.Status,
		&o.Subtotal,
		&o.DiscountAmount,
		&o.ShippingFee,
		&o.TaxAmount,
		&o.PointsUsed,
		&o.PointsDiscount,
		&o.PointsEarned,
		&o.TotalAmount,
		&o.CouponID,
		&o.ShippingAddressID,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts a new order with its details, history and payment within
// the provided transaction.
func (r *orderRepository) Create(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := tx.Exec(ctx, query,
		order.ID,
		order.OrderNumber,
		order.Channel,
		order.UserID,
		order.Status,
		order.Subtotal,
		order.DiscountAmount,
		order.ShippingFee,
		order.TaxAmount,
		order.PointsUsed,
		order.PointsDiscount,
		order.PointsEarned,
		order.TotalAmount,
		order.CouponID,
		order.ShippingAddressID,
		order.Notes,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := r.createDetails(ctx, tx, order.Details); err != nil {
		return err
	}

	for _, entry := range order.History {
		if err := r.AppendHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	if order.Payment != nil {
		if err := r.createPayment(ctx, tx, order.Payment); err != nil {
			return err
		}
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Msg("order created successfully")

	return nil
}

// createDetails inserts the order lines in one batch, keeping their order.
func (r *orderRepository) createDetails(ctx context.Context, tx pgx.Tx, details []model.OrderDetail) error {
	if len(details) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_details (
			id, order_id, variant_id, product_name, variant_sku, size, color,
			quantity, unit_price, total_price, position
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	batch := &pgx.Batch{}
	for i, d := range details {
		batch.Queue(query,
			d.ID, d.OrderID, d.VariantID, d.ProductName, d.VariantSKU, d.Size, d.Color,
			d.Quantity, d.UnitPrice, d.TotalPrice, i,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(details); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", details[i].OrderID.String()).
				Str("product_name", details[i].ProductName).
				Msg("failed to create order detail")
			return fmt.Errorf("failed to create order detail: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) createPayment(ctx context.Context, tx pgx.Tx, p *model.Payment) error {
	query := `
		INSERT INTO payments (id, order_id, payment_method, amount, status, transaction_id, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(ctx, query,
		p.ID, p.OrderID, p.PaymentMethod, p.Amount, p.Status, p.TransactionID, p.PaidAt, p.CreatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", p.OrderID.String()).
			Msg("failed to create payment")
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID along with details, history and payment.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, model.ErrOrderNotFound
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	if order.Details, err = r.details(ctx, r.pool, id); err != nil {
		return nil, err
	}
	if order.History, err = r.history(ctx, id); err != nil {
		return nil, err
	}
	if order.Payment, err = r.payment(ctx, id); err != nil {
		return nil, err
	}

	return order, nil
}

// GetForUpdate locks the order row and loads its details within the provided transaction.
func (r *orderRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	order, err := scanOrder(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, model.ErrOrderNotFound
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to lock order")
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	if order.Details, err = r.details(ctx, tx, id); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *orderRepository) details(ctx context.Context, q querier, orderID uuid.UUID) ([]model.OrderDetail, error) {
	query := `
		SELECT id, order_id, variant_id, product_name, variant_sku, size, color,
			quantity, unit_price, total_price
		FROM order_details
		WHERE order_id = $1
		ORDER BY position, id
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to query order details")
		return nil, fmt.Errorf("failed to query order details: %w", err)
	}
	defer rows.Close()

	details := []model.OrderDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order detail row")
			return nil, fmt.Errorf("failed to scan order detail: %w", err)
		}
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order detail rows")
		return nil, fmt.Errorf("error iterating order details: %w", err)
	}

	return details, nil
}

func scanDetail(row pgx.Row) (model.OrderDetail, error) {
	var d model.OrderDetail
	err := row.Scan(
		&d.ID, &d.OrderID, &d.VariantID, &d.ProductName, &d.VariantSKU, &d.Size, &d.Color,
		&d.Quantity, &d.UnitPrice, &d.TotalPrice,
	)
	return d, err
}

func (r *orderRepository) history(ctx context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error) {
	query := `
		SELECT id, order_id, status, note, changed_at
		FROM order_status_histories
		WHERE order_id = $1
		ORDER BY changed_at, id
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to query order history")
		return nil, fmt.Errorf("failed to query order history: %w", err)
	}
	defer rows.Close()

	history := []model.OrderStatusHistory{}
	for rows.Next() {
		var h model.OrderStatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Note, &h.ChangedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order history row")
			return nil, fmt.Errorf("failed to scan order history: %w", err)
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order history rows")
		return nil, fmt.Errorf("error iterating order history: %w", err)
	}

	return history, nil
}

func (r *orderRepository) payment(ctx context.Context, orderID uuid.UUID) (*model.Payment, error) {
	query := `
		SELECT id, order_id, payment_method, amount, status, transaction_id, paid_at, created_at
		FROM payments
		WHERE order_id = $1
	`

	var p model.Payment
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&p.ID, &p.OrderID, &p.PaymentMethod, &p.Amount, &p.Status, &p.TransactionID, &p.PaidAt, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query payment")
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}

	return &p, nil
}

// Update persists the order's status and monetary breakdown.
func (r *orderRepository) Update(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		UPDATE orders
		SET status = $2, subtotal = $3, discount_amount = $4, shipping_fee = $5, tax_amount = $6,
			points_used = $7, points_discount = $8, points_earned = $9, total_amount = $10,
			coupon_id = $11, notes = $12, updated_at = $13
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query,
		order.ID,
		order.Status,
		order.Subtotal,
		order.DiscountAmount,
		order.ShippingFee,
		order.TaxAmount,
		order.PointsUsed,
		order.PointsDiscount,
		order.PointsEarned,
		order.TotalAmount,
		order.CouponID,
		order.Notes,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to update order")
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	return nil
}

// SetPointsEarned records the points an order earned.
func (r *orderRepository) SetPointsEarned(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int) error {
	query := `UPDATE orders SET points_earned = $2, updated_at = NOW() WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, points)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", id.String()).
			Int("points", points).
			Msg("failed to record earned points")
		return fmt.Errorf("failed to record earned points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	return nil
}

// AppendHistory inserts a status history entry.
func (r *orderRepository) AppendHistory(ctx context.Context, tx pgx.Tx, entry model.OrderStatusHistory) error {
	query := `
		INSERT INTO order_status_histories (id, order_id, status, note, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.Exec(ctx, query, entry.ID, entry.OrderID, entry.Status, entry.Note, entry.ChangedAt)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", entry.OrderID.String()).
			Str("status", string(entry.Status)).
			Msg("failed to append order history")
		return fmt.Errorf("failed to append order history: %w", err)
	}

	return nil
}

// NextPOSOrderNumber returns the next point-of-sale order number for day.
// A transaction-scoped advisory lock keyed on the day serialises callers
// until the order carrying the number is committed.
func (r *orderRepository) NextPOSOrderNumber(ctx context.Context, tx pgx.Tx, day time.Time) (string, error) {
	prefix := fmt.Sprintf("%s%s-", model.POSOrderPrefix, day.Format("20060102"))

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
		r.logger.Error().Err(err).Str("prefix", prefix).Msg("failed to lock order number sequence")
		return "", fmt.Errorf("failed to lock order number sequence: %w", err)
	}

	query := `
		SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM $2) AS INTEGER)), 0)
		FROM orders
		WHERE order_number LIKE $1 || '%'
	`

	var last int
	if err := tx.QueryRow(ctx, query, prefix, len(prefix)+1).Scan(&last); err != nil {
		r.logger.Error().Err(err).Str("prefix", prefix).Msg("failed to query last order number")
		return "", fmt.Errorf("failed to query last order number: %w", err)
	}

	return fmt.Sprintf("%s%04d", prefix, last+1), nil
}

// DetailsByOrderIDs retrieves the details of several orders keyed by order id.
func (r *orderRepository) DetailsByOrderIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]model.OrderDetail, error) {
	byOrder := make(map[uuid.UUID][]model.OrderDetail, len(ids))
	if len(ids) == 0 {
		return byOrder, nil
	}

	query := `
		SELECT id, order_id, variant_id, product_name, variant_sku, size, color,
			quantity, unit_price, total_price
		FROM order_details
		WHERE order_id = ANY($1)
		ORDER BY order_id, position, id
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query order details")
		return nil, fmt.Errorf("failed to query order details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order detail row")
			return nil, fmt.Errorf("failed to scan order detail: %w", err)
		}
		byOrder[d.OrderID] = append(byOrder[d.OrderID], d)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order detail rows")
		return nil, fmt.Errorf("error iterating order details: %w", err)
	}

	return byOrder, nil
}
