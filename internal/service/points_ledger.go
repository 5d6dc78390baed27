package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order-settlement/internal/metrics"
	"order-settlement/internal/model"
	"order-settlement/internal/repository"
	"order-settlement/internal/tracing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// Ledger is the loyalty points ledger. It implements both PointsLedger and
// LedgerWriter; the other services write through the latter so that every
// ledger mutation goes through one place.
type Ledger struct {
	txm     repository.TxManager
	loyalty repository.LoyaltyRepository
	users   repository.UserRepository
	orders  repository.OrderRepository
	vatRate decimal.Decimal
	now     func() time.Time
	logger  zerolog.Logger
}

// NewPointsLedger creates a new points ledger.
func NewPointsLedger(
	txm repository.TxManager,
	loyalty repository.LoyaltyRepository,
	users repository.UserRepository,
	orders repository.OrderRepository,
	vatRate decimal.Decimal,
	logger zerolog.Logger,
) *Ledger {
	return &Ledger{
		txm:     txm,
		loyalty: loyalty,
		users:   users,
		orders:  orders,
		vatRate: vatRate,
		now:     time.Now,
		logger:  logger.With().Str("service", "points-ledger").Logger(),
	}
}

// Balance returns the sum of the user's unexpired entries, clamped at zero.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (balance int, err error) {
	ctx, span := tracing.StartSpan(ctx, "PointsLedger.Balance", attribute.String("user_id", userID.String()))
	defer func() { finishSpan(span, err) }()

	opts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}
	err = withTx(ctx, l.txm, opts, l.logger, func(tx pgx.Tx) error {
		var err error
		balance, err = l.balanceInTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}

func (l *Ledger) balanceInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int, error) {
	sum, err := l.loyalty.SumActive(ctx, tx, userID, l.now())
	if err != nil {
		return 0, err
	}
	if sum < 0 {
		l.logger.Warn().Str("user_id", userID.String()).Int("sum", sum).Msg("negative ledger sum clamped to zero")
		return 0, nil
	}
	return sum, nil
}

// History lists the user's ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, userID uuid.UUID) ([]model.LoyaltyPoint, error) {
	entries, err := l.loyalty.ListByUser(ctx, userID)
	if err != nil {
		l.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list ledger entries")
		return nil, fmt.Errorf("failed to list points history: %w", err)
	}
	return entries, nil
}

// Award credits points to a user without any balance check.
func (l *Ledger) Award(ctx context.Context, userID uuid.UUID, points int, reason *string) (entry *model.LoyaltyPoint, err error) {
	ctx, span := tracing.StartSpan(ctx, "PointsLedger.Award",
		attribute.String("user_id", userID.String()),
		attribute.Int("points", points),
	)
	defer func() { finishSpan(span, err) }()

	if points <= 0 {
		return nil, model.ErrInvalidAmount
	}

	description := model.DefaultAwardDescription
	if reason != nil && strings.TrimSpace(*reason) != "" {
		description = strings.TrimSpace(*reason)
	}

	err = withTx(ctx, l.txm, readCommitted, l.logger, func(tx pgx.Tx) error {
		if _, err := l.users.GetByID(ctx, tx, userID); err != nil {
			return err
		}

		var err error
		entry, err = model.NewEarnEntry(userID, points, description, nil, l.now())
		if err != nil {
			return err
		}
		return l.loyalty.Insert(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}

	metrics.PointsEarnedTotal.Add(float64(points))
	l.logger.Info().
		Str("user_id", userID.String()).
		Int("points", points).
		Msg("points awarded")

	return entry, nil
}

// Redeem applies points to a pending order owned by the requesting user. The
// debit, the order's points discount and its recomputed totals commit
// together. Confirming the order later does not debit the points again.
func (l *Ledger) Redeem(ctx context.Context, orderID uuid.UUID, req *model.RedeemPointsRequest) (resp *model.RedeemPointsResponse, err error) {
	defer observe("points_redeem", time.Now())
	ctx, span := tracing.StartSpan(ctx, "PointsLedger.Redeem", attribute.String("order_id", orderID.String()))
	defer func() { finishSpan(span, err) }()

	if req == nil || req.UserID == uuid.Nil {
		return nil, model.ErrMissingField
	}
	if req.Points <= 0 {
		return nil, model.ErrInvalidAmount
	}

	var discount decimal.Decimal
	err = withTx(ctx, l.txm, readCommitted, l.logger, func(tx pgx.Tx) error {
		order, err := l.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.UserID == nil || *order.UserID != req.UserID ||
			order.Status != model.OrderStatusPending || order.PointsUsed > 0 || order.IsPOS() {
			l.logger.Warn().
				Str("order_id", orderID.String()).
				Str("user_id", req.UserID.String()).
				Str("status", string(order.Status)).
				Int("points_used", order.PointsUsed).
				Msg("points not applicable to order")
			return model.ErrPointsNotApplicable
		}

		discount, err = l.RedeemInTx(ctx, tx, req.UserID, req.Points, order)
		if err != nil {
			return err
		}

		order.PointsDiscount = discount
		order.ApplyTotals(l.vatRate)
		order.UpdatedAt = l.now()
		return l.orders.Update(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	return &model.RedeemPointsResponse{
		OrderID:        orderID,
		PointsUsed:     req.Points,
		DiscountAmount: discount.StringFixed(2),
	}, nil
}

// RedeemInTx debits points from the user against order. The user row is
// locked before the balance is read so concurrent redemptions serialise.
// The order's PointsUsed is set in memory; persisting it is the caller's job.
func (l *Ledger) RedeemInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, points int, order *model.Order) (decimal.Decimal, error) {
	if points <= 0 {
		return decimal.Zero, model.ErrInvalidAmount
	}

	if err := l.users.Lock(ctx, tx, userID); err != nil {
		return decimal.Zero, err
	}

	balance, err := l.balanceInTx(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if points > balance {
		l.logger.Warn().
			Str("user_id", userID.String()).
			Int("requested", points).
			Int("balance", balance).
			Msg("insufficient points balance")
		return decimal.Zero, &model.InsufficientBalanceError{
			UserID:    userID,
			Requested: points,
			Available: balance,
		}
	}

	entry, err := model.NewRedeemEntry(userID, points, "redeem for order "+order.OrderNumber, &order.ID, l.now())
	if err != nil {
		return decimal.Zero, err
	}
	if err := l.loyalty.Insert(ctx, tx, entry); err != nil {
		return decimal.Zero, err
	}

	order.PointsUsed = points
	metrics.PointsRedeemedTotal.Add(float64(points))

	l.logger.Info().
		Str("user_id", userID.String()).
		Str("order_id", order.ID.String()).
		Int("points", points).
		Msg("points redeemed")

	return model.PointsDiscount(points), nil
}

// EarnFromOrder credits the points a delivered order earns and returns the
// order. The order's points_earned column is the applied marker, so a second
// call writes nothing. Orders in any other status are rejected.
func (l *Ledger) EarnFromOrder(ctx context.Context, orderID uuid.UUID) (order *model.Order, err error) {
	defer observe("points_earn", time.Now())
	ctx, span := tracing.StartSpan(ctx, "PointsLedger.EarnFromOrder", attribute.String("order_id", orderID.String()))
	defer func() { finishSpan(span, err) }()

	err = withTx(ctx, l.txm, readCommitted, l.logger, func(tx pgx.Tx) error {
		locked, err := l.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if locked.Status != model.OrderStatusDelivered {
			l.logger.Warn().
				Str("order_id", orderID.String()).
				Str("status", string(locked.Status)).
				Msg("points requested for an order that is not delivered")
			return fmt.Errorf("%w: points are earned on delivered orders, order is %s", model.ErrInvalidTransition, locked.Status)
		}
		_, err = l.EarnInTx(ctx, tx, locked)
		return err
	})
	if err != nil {
		return nil, err
	}

	return l.orders.GetByID(ctx, orderID)
}

// EarnInTx credits round(taxable / 10000) points to the order's customer
// and records them on the order. Walk-in orders, orders that earn nothing
// and orders that already earned are skipped.
func (l *Ledger) EarnInTx(ctx context.Context, tx pgx.Tx, order *model.Order) (int, error) {
	if order.UserID == nil {
		return 0, nil
	}
	if order.PointsEarned > 0 {
		l.logger.Debug().
			Str("order_id", order.ID.String()).
			Int("points_earned", order.PointsEarned).
			Msg("order already earned points")
		return 0, nil
	}

	points := model.PointsForAmount(order.TaxableAmount())
	if points <= 0 {
		return 0, nil
	}

	entry, err := model.NewEarnEntry(*order.UserID, points, "earn from order "+order.OrderNumber, &order.ID, l.now())
	if err != nil {
		return 0, err
	}
	if err := l.loyalty.Insert(ctx, tx, entry); err != nil {
		return 0, err
	}
	if err := l.orders.SetPointsEarned(ctx, tx, order.ID, points); err != nil {
		return 0, err
	}

	order.PointsEarned = points
	metrics.PointsEarnedTotal.Add(float64(points))

	l.logger.Info().
		Str("user_id", order.UserID.String()).
		Str("order_id", order.ID.String()).
		Int("points", points).
		Msg("points earned")

	return points, nil
}

// RefundUsedInTx credits back the points an order used, as a fresh earn
// entry expiring in one year. Nothing is written unless the ledger holds a
// redemption for the order.
func (l *Ledger) RefundUsedInTx(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	if order.UserID == nil || order.PointsUsed <= 0 {
		return nil
	}

	redeemed, err := l.loyalty.HasRedemption(ctx, tx, order.ID)
	if err != nil {
		return err
	}
	if !redeemed {
		l.logger.Warn().
			Str("order_id", order.ID.String()).
			Int("points_used", order.PointsUsed).
			Msg("order points were never redeemed, skipping refund")
		return nil
	}

	entry, err := model.NewEarnEntry(*order.UserID, order.PointsUsed, "refund points from order "+order.OrderNumber, &order.ID, l.now())
	if err != nil {
		return err
	}
	if err := l.loyalty.Insert(ctx, tx, entry); err != nil {
		return err
	}

	metrics.PointsEarnedTotal.Add(float64(order.PointsUsed))
	l.logger.Info().
		Str("order_id", order.ID.String()).
		Int("points", order.PointsUsed).
		Msg("used points refunded")

	return nil
}

// ClawBackEarnedInTx debits the points an order earned as a redeem entry
// without expiry that points back at the earning order. The resulting
// balance may dip below zero; Balance clamps it.
func (l *Ledger) ClawBackEarnedInTx(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	if order.UserID == nil || order.PointsEarned <= 0 {
		return nil
	}

	entry, err := model.NewClawBackEntry(*order.UserID, order.PointsEarned, "claw back points earned by order "+order.OrderNumber, order.ID, l.now())
	if err != nil {
		return err
	}
	if err := l.loyalty.Insert(ctx, tx, entry); err != nil {
		return err
	}

	metrics.PointsRedeemedTotal.Add(float64(order.PointsEarned))
	l.logger.Info().
		Str("order_id", order.ID.String()).
		Int("points", order.PointsEarned).
		Msg("earned points clawed back")

	return nil
}

// HasRedemption reports whether points were already redeemed against the order.
func (l *Ledger) HasRedemption(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	return l.loyalty.HasRedemption(ctx, tx, orderID)
}
