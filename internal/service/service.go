package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-settlement/internal/events"
	"order-settlement/internal/metrics"
	"order-settlement/internal/model"
	"order-settlement/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PointsLedger defines the loyalty points operations exposed to callers.
type PointsLedger interface {
	// Balance returns the user's spendable balance, never negative.
	Balance(ctx context.Context, userID uuid.UUID) (int, error)

	// History lists the user's ledger entries, newest first.
	History(ctx context.Context, userID uuid.UUID) ([]model.LoyaltyPoint, error)

	// Award credits points unconditionally. A blank reason gets the default description.
	Award(ctx context.Context, userID uuid.UUID, points int, reason *string) (*model.LoyaltyPoint, error)

	// Redeem applies points to a pending order and returns the discount granted.
	Redeem(ctx context.Context, orderID uuid.UUID, req *model.RedeemPointsRequest) (*model.RedeemPointsResponse, error)

	// EarnFromOrder credits the points an order earns. Repeated calls are no-ops.
	EarnFromOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
}

// LedgerWriter writes ledger entries inside a caller's transaction.
type LedgerWriter interface {
	// RedeemInTx debits points for the order and records them as used on it.
	RedeemInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, points int, order *model.Order) (decimal.Decimal, error)

	// EarnInTx credits the order's earned points and records them on it.
	EarnInTx(ctx context.Context, tx pgx.Tx, order *model.Order) (int, error)

	// RefundUsedInTx credits back the points an order used.
	RefundUsedInTx(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// ClawBackEarnedInTx debits the points an order earned.
	ClawBackEarnedInTx(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// HasRedemption reports whether points were already redeemed against the order.
	HasRedemption(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error)
}

// InventoryAdjuster changes variant stock inside a caller's transaction.
type InventoryAdjuster interface {
	// Deduct removes qty units from a locked variant.
	Deduct(ctx context.Context, tx pgx.Tx, variant *model.ProductVariant, qty int) error

	// DeductLines checks every line against stock and deducts only when all fit.
	DeductLines(ctx context.Context, tx pgx.Tx, details []model.OrderDetail) error

	// Restock returns good units to stock and damaged units to the damaged counter.
	Restock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, good, damaged int) error
}

// CouponUsageTracker adjusts coupon usage counters inside a caller's transaction.
type CouponUsageTracker interface {
	Increment(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) error
	Decrement(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) error
}

// OrderLifecycle defines order reads and status transitions.
type OrderLifecycle interface {
	// GetOrder reads an order with details, history and payment.
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// TransitionStatus moves an order to the requested status and applies its side effects.
	TransitionStatus(ctx context.Context, id uuid.UUID, requested string) (*model.Order, error)
}

// ReturnSettlement defines the return request workflow.
type ReturnSettlement interface {
	// CreateReturnRequest opens a return for a delivered order.
	CreateReturnRequest(ctx context.Context, orderID uuid.UUID, req *model.CreateReturnRequest) (*model.ReturnView, error)

	// GetReturn reads a return request with its order lines.
	GetReturn(ctx context.Context, id uuid.UUID) (*model.ReturnView, error)

	// ListReturns lists return requests, newest first.
	ListReturns(ctx context.Context, filter model.ReturnFilter) (*model.ReturnPage, error)

	// UpdateStatus moves a return request and mirrors the status onto its order.
	UpdateStatus(ctx context.Context, id uuid.UUID, adminID uuid.UUID, req *model.UpdateReturnStatusRequest) (*model.ReturnView, error)

	// ConfirmConditions records the returned condition of each line and settles the return.
	ConfirmConditions(ctx context.Context, id uuid.UUID, adminID uuid.UUID, req *model.ConfirmConditionsRequest) (*model.ReturnView, error)

	// ProcessRefund completes an approved return without a condition check.
	ProcessRefund(ctx context.Context, id uuid.UUID, adminID uuid.UUID) (*model.ReturnView, error)
}

// POSOrderBuilder records in-store sales.
type POSOrderBuilder interface {
	// CreatePOSOrder records a paid, delivered order in one step.
	CreatePOSOrder(ctx context.Context, req *model.POSOrderRequest) (*model.Order, error)
}

// readCommitted is the isolation level of every settlement transaction.
// Check-then-act sections rely on row locks taken inside it.
var readCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// withTx runs fn in a transaction, committing when it returns nil and rolling
// back otherwise.
func withTx(ctx context.Context, txm repository.TxManager, opts pgx.TxOptions, logger zerolog.Logger, fn func(tx pgx.Tx) error) (err error) {
	tx, err := txm.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to commit transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// publishStatusChange emits a status change event after commit. Failures are
// logged and counted.
func publishStatusChange(ctx context.Context, publisher events.Publisher, logger zerolog.Logger, order *model.Order, from model.OrderStatus, source string, now time.Time) {
	evt := events.NewOrderStatusChanged(order.ID, order.OrderNumber, string(from), string(order.Status), source, now)
	if err := publisher.PublishOrderStatusChanged(ctx, evt); err != nil {
		metrics.EventPublishFailuresTotal.Inc()
		logger.Warn().
			Err(err).
			Str("order_id", order.ID.String()).
			Str("to_status", string(order.Status)).
			Msg("failed to publish order status change")
	}
}

// observe records the latency of a settlement operation.
func observe(operation string, start time.Time) {
	metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// finishSpan ends a span, marking it failed when err is set.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
