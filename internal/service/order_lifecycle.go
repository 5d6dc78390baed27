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
	"order-settlement/internal/tracing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Event sources.
const (
	sourceLifecycle = "order_lifecycle"
	sourceReturn    = "return_settlement"
	sourcePOS       = "pos"
)

// orderLifecycle implements OrderLifecycle.
type orderLifecycle struct {
	txm       repository.TxManager
	orders    repository.OrderRepository
	ledger    LedgerWriter
	inventory InventoryAdjuster
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// NewOrderLifecycle creates a new order lifecycle service.
func NewOrderLifecycle(
	txm repository.TxManager,
	orders repository.OrderRepository,
	ledger LedgerWriter,
	inventory InventoryAdjuster,
	publisher events.Publisher,
	logger zerolog.Logger,
) OrderLifecycle {
	return &orderLifecycle{
		txm:       txm,
		orders:    orders,
		ledger:    ledger,
		inventory: inventory,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With().Str("service", "order-lifecycle").Logger(),
	}
}

// GetOrder retrieves an order with its details, history and payment.
func (s *orderLifecycle) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, model.ErrOrderNotFound) {
			s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		}
		return nil, err
	}
	return order, nil
}

// TransitionStatus moves an order to the requested status.
//
// Cancelling an order that has not been delivered refunds the points it
// used. Delivering an online order deducts the stock of every line, or
// nothing at all when any line is short. Both happen in the transaction
// that records the new status. Confirming an online order that used points
// redeems them afterwards in a separate transaction whose failure does not
// undo the confirmation.
func (s *orderLifecycle) TransitionStatus(ctx context.Context, id uuid.UUID, requested string) (order *model.Order, err error) {
	defer observe("order_transition", time.Now())
	ctx, span := tracing.StartSpan(ctx, "OrderLifecycle.TransitionStatus",
		attribute.String("order_id", id.String()),
		attribute.String("requested_status", requested),
	)
	defer func() { finishSpan(span, err) }()

	next, err := model.NormalizeOrderStatus(requested)
	if err != nil {
		metrics.UnrecognizedStatusTotal.WithLabelValues("order").Inc()
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("requested_status", requested).
			Msg("unrecognized order status")
		return nil, err
	}

	var (
		locked *model.Order
		from   model.OrderStatus
		now    = s.now()
	)
	err = withTx(ctx, s.txm, readCommitted, s.logger, func(tx pgx.Tx) error {
		var err error
		locked, err = s.orders.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		from = locked.Status
		if !from.CanTransitionTo(next) {
			s.logger.Warn().
				Str("order_id", id.String()).
				Str("from_status", string(from)).
				Str("to_status", string(next)).
				Msg("invalid order transition")
			return fmt.Errorf("%w: %s to %s", model.ErrInvalidTransition, from, next)
		}

		if next == model.OrderStatusCancelled && from != model.OrderStatusCancelled &&
			from != model.OrderStatusDelivered && !locked.IsPOS() {
			if err := s.ledger.RefundUsedInTx(ctx, tx, locked); err != nil {
				return err
			}
		}

		if next == model.OrderStatusDelivered && from != model.OrderStatusDelivered && !locked.IsPOS() {
			if err := s.inventory.DeductLines(ctx, tx, locked.Details); err != nil {
				return err
			}
		}

		locked.Status = next
		locked.UpdatedAt = now
		entry := locked.AppendHistory(next, nil, now)

		if err := s.orders.Update(ctx, tx, locked); err != nil {
			return err
		}
		return s.orders.AppendHistory(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(next)).Inc()
	s.logger.Info().
		Str("order_id", id.String()).
		Str("from_status", string(from)).
		Str("to_status", string(next)).
		Msg("order status updated")

	if next == model.OrderStatusConfirmed && from != model.OrderStatusConfirmed &&
		!locked.IsPOS() && locked.UserID != nil && locked.PointsUsed > 0 {
		s.redeemOnConfirm(context.WithoutCancel(ctx), locked)
	}

	publishStatusChange(ctx, s.publisher, s.logger, locked, from, sourceLifecycle, now)

	return s.GetOrder(ctx, id)
}

// redeemOnConfirm debits the points a confirmed order used, in its own
// transaction. It runs after the confirmation committed, so the order is
// locked again and the debit is skipped when a concurrent transition has
// already moved it off the fulfilment path. Failures are logged and counted,
// never returned.
func (s *orderLifecycle) redeemOnConfirm(ctx context.Context, order *model.Order) {
	err := withTx(ctx, s.txm, readCommitted, s.logger, func(tx pgx.Tx) error {
		current, err := s.orders.GetForUpdate(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if !current.Status.InFulfilment() || current.UserID == nil || current.PointsUsed <= 0 {
			s.logger.Warn().
				Str("order_id", order.ID.String()).
				Str("status", string(current.Status)).
				Msg("order left confirmation before points were redeemed")
			return nil
		}

		redeemed, err := s.ledger.HasRedemption(ctx, tx, current.ID)
		if err != nil {
			return err
		}
		if redeemed {
			s.logger.Debug().Str("order_id", current.ID.String()).Msg("order points already redeemed")
			return nil
		}

		_, err = s.ledger.RedeemInTx(ctx, tx, *current.UserID, current.PointsUsed, current)
		return err
	})
	if err == nil {
		return
	}

	reason := "error"
	switch {
	case errors.Is(err, model.ErrInsufficientBalance):
		reason = "insufficient_balance"
	case errors.Is(err, model.ErrUserNotFound):
		reason = "user_not_found"
	}
	metrics.RedemptionFailuresTotal.WithLabelValues(reason).Inc()

	s.logger.Error().
		Err(err).
		Str("order_id", order.ID.String()).
		Str("user_id", order.UserID.String()).
		Int("points", order.PointsUsed).
		Msg("failed to redeem points on confirmation")
}
