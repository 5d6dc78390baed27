package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
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
	"golang.org/x/sync/errgroup"
)

const (
	defaultReturnPageSize = 20
	maxReturnPageSize     = 100
	refundProcessedNote   = "refund processed"
)

// returnSettlement implements ReturnSettlement.
type returnSettlement struct {
	txm       repository.TxManager
	returns   repository.ReturnRepository
	orders    repository.OrderRepository
	ledger    LedgerWriter
	inventory InventoryAdjuster
	coupons   CouponUsageTracker
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// NewReturnSettlement creates a new return settlement service.
func NewReturnSettlement(
	txm repository.TxManager,
	returns repository.ReturnRepository,
	orders repository.OrderRepository,
	ledger LedgerWriter,
	inventory InventoryAdjuster,
	coupons CouponUsageTracker,
	publisher events.Publisher,
	logger zerolog.Logger,
) ReturnSettlement {
	return &returnSettlement{
		txm:       txm,
		returns:   returns,
		orders:    orders,
		ledger:    ledger,
		inventory: inventory,
		coupons:   coupons,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With().Str("service", "return-settlement").Logger(),
	}
}

// CreateReturnRequest opens a pending refund request for a delivered order
// owned by the requesting user. The order status is left untouched.
func (s *returnSettlement) CreateReturnRequest(ctx context.Context, orderID uuid.UUID, req *model.CreateReturnRequest) (view *model.ReturnView, err error) {
	ctx, span := tracing.StartSpan(ctx, "ReturnSettlement.CreateReturnRequest", attribute.String("order_id", orderID.String()))
	defer func() { finishSpan(span, err) }()

	if err := validateCreateReturn(req); err != nil {
		return nil, err
	}

	now := s.now()
	rr := &model.ReturnRequest{
		ID:                uuid.New(),
		OrderID:           orderID,
		UserID:            req.UserID,
		Reason:            strings.TrimSpace(req.Reason),
		Status:            model.ReturnStatusPending,
		ReturnMethod:      model.ReturnMethodRefund,
		BankName:          strings.TrimSpace(req.BankName),
		BankAccountNumber: strings.TrimSpace(req.BankAccountNumber),
		BankAccountHolder: strings.TrimSpace(req.BankAccountHolder),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.Note != nil && strings.TrimSpace(*req.Note) != "" {
		rr.Reason = rr.Reason + "\nNote: " + strings.TrimSpace(*req.Note)
	}
	if err := rr.SetImages(req.Images); err != nil {
		return nil, err
	}

	var order *model.Order
	err = withTx(ctx, s.txm, readCommitted, s.logger, func(tx pgx.Tx) error {
		var err error
		order, err = s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if order.UserID == nil || *order.UserID != req.UserID || order.Status != model.OrderStatusDelivered {
			s.logger.Warn().
				Str("order_id", orderID.String()).
				Str("user_id", req.UserID.String()).
				Str("status", string(order.Status)).
				Msg("order not returnable")
			return model.ErrOrderNotReturnable
		}

		exists, err := s.returns.ExistsForOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if exists {
			return model.ErrReturnAlreadyExists
		}

		return s.returns.Create(ctx, tx, rr)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("return_id", rr.ID.String()).
		Str("order_id", orderID.String()).
		Msg("return request created")

	return model.BuildReturnView(rr, order)
}

func validateCreateReturn(req *model.CreateReturnRequest) error {
	if req == nil {
		return model.ErrMissingField
	}
	required := []struct {
		name  string
		value string
	}{
		{"reason", req.Reason},
		{"bankName", req.BankName},
		{"bankAccountNumber", req.BankAccountNumber},
		{"bankAccountHolder", req.BankAccountHolder},
	}
	if req.UserID == uuid.Nil {
		return fmt.Errorf("%w: userId", model.ErrMissingField)
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", model.ErrMissingField, f.name)
		}
	}
	return nil
}

// GetReturn retrieves a return request with its order lines.
func (s *returnSettlement) GetReturn(ctx context.Context, id uuid.UUID) (*model.ReturnView, error) {
	rr, err := s.returns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, rr.OrderID)
	if err != nil {
		s.logger.Error().Err(err).Str("return_id", id.String()).Msg("failed to load order of return request")
		return nil, fmt.Errorf("failed to load order of return request: %w", err)
	}

	return model.BuildReturnView(rr, order)
}

// ListReturns returns a page of return requests. The page and the total
// count are queried concurrently.
func (s *returnSettlement) ListReturns(ctx context.Context, filter model.ReturnFilter) (*model.ReturnPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Size < 1 {
		filter.Size = defaultReturnPageSize
	}
	if filter.Size > maxReturnPageSize {
		filter.Size = maxReturnPageSize
	}

	var (
		views []model.ReturnView
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		views, err = s.returns.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.returns.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	orderIDs := make([]uuid.UUID, 0, len(views))
	for _, v := range views {
		orderIDs = append(orderIDs, v.OrderID)
	}
	details, err := s.orders.DetailsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	items := make([]model.ReturnView, 0, len(views))
	for i := range views {
		order := &model.Order{OrderNumber: views[i].OrderNumber, Details: details[views[i].OrderID]}
		view, err := model.BuildReturnView(&views[i].ReturnRequest, order)
		if err != nil {
			return nil, err
		}
		items = append(items, *view)
	}

	return &model.ReturnPage{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Size:  filter.Size,
	}, nil
}

// UpdateStatus moves a return request along pending, approved, rejected
// and completed, and mirrors the new status onto the order with a history
// entry carrying the note.
func (s *returnSettlement) UpdateStatus(ctx context.Context, id uuid.UUID, adminID uuid.UUID, req *model.UpdateReturnStatusRequest) (view *model.ReturnView, err error) {
	defer observe("return_update_status", time.Now())
	ctx, span := tracing.StartSpan(ctx, "ReturnSettlement.UpdateStatus", attribute.String("return_id", id.String()))
	defer func() { finishSpan(span, err) }()

	if req == nil {
		return nil, model.ErrMissingField
	}
	next, err := model.ParseReturnStatus(req.Status)
	if err != nil {
		metrics.UnrecognizedStatusTotal.WithLabelValues("return").Inc()
		s.logger.Warn().
			Str("return_id", id.String()).
			Str("requested_status", req.Status).
			Msg("unrecognized return status")
		return nil, err
	}
	note := trimmedNote(req.Note)

	var (
		rr    *model.ReturnRequest
		order *model.Order
		from  model.OrderStatus
		now   = s.now()
	)
	err = withTx(ctx, s.txm, readCommitted, s.logger, func(tx pgx.Tx) error {
		var err error
		rr, err = s.returns.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if !rr.Status.CanTransitionTo(next) {
			s.logger.Warn().
				Str("return_id", id.String()).
				Str("from_status", string(rr.Status)).
				Str("to_status", string(next)).
				Msg("invalid return transition")
			return fmt.Errorf("%w: %s to %s", model.ErrInvalidReturnTransition, rr.Status, next)
		}

		rr.Status = next
		if next == model.ReturnStatusApproved || next == model.ReturnStatusRejected {
			rr.ApprovedBy = &adminID
			rr.ApprovedAt = &now
		}
		if note != nil {
			rr.AdminNote = note
		}
		rr.UpdatedAt = now
		if err := s.returns.Update(ctx, tx, rr); err != nil {
			return err
		}

		orderStatus, _ := next.OrderStatus()
		order, from, err = s.mirrorOnOrder(ctx, tx, rr.OrderID, orderStatus, note, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("return_id", id.String()).
		Str("status", string(next)).
		Str("admin_id", adminID.String()).
		Msg("return request status updated")

	metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status)).Inc()
	publishStatusChange(ctx, s.publisher, s.logger, order, from, sourceReturn, now)

	return model.BuildReturnView(rr, order)
}

// ConfirmConditions records the good/damaged split of the returned lines
// and completes the return.
//
// The split is validated against the purchased quantities on every call.
// Restocking, the points reversal and the coupon release run only while
// the request's assets_refunded flag is false, and set it in the same
// transaction; a retried confirmation only refreshes the status, the
// approving admin and the order history.
func (s *returnSettlement) ConfirmConditions(ctx context.Context, id uuid.UUID, adminID uuid.UUID, req *model.ConfirmConditionsRequest) (view *model.ReturnView, err error) {
	defer observe("return_confirm_conditions", time.Now())
	ctx, span := tracing.StartSpan(ctx, "ReturnSettlement.ConfirmConditions", attribute.String("return_id", id.String()))
	defer func() { finishSpan(span, err) }()

	if req == nil || len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items", model.ErrMissingField)
	}
	for _, item := range req.Items {
		if item.VariantID == uuid.Nil {
			return nil, fmt.Errorf("%w: variantId", model.ErrMissingField)
		}
		if item.GoodQuantity < 0 || item.DamagedQuantity < 0 {
			return nil, model.ErrInvalidQuantity
		}
	}
	note := trimmedNote(req.AdminNote)

	var (
		rr      *model.ReturnRequest
		order   *model.Order
		from    model.OrderStatus
		outcome string
		now     = s.now()
	)
	err = withTx(ctx, s.txm, readCommitted, s.logger, func(tx pgx.Tx) error {
		var err error
		rr, err = s.returns.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if rr.Status == model.ReturnStatusRejected {
			return fmt.Errorf("%w: %s to %s", model.ErrInvalidReturnTransition, rr.Status, model.ReturnStatusCompleted)
		}

		order, err = s.orders.GetForUpdate(ctx, tx, rr.OrderID)
		if err != nil {
			return err
		}

		conditions, err := checkConditions(order, req.Items)
		if err != nil {
			return err
		}

		if rr.AssetsRefunded {
			outcome = metrics.OutcomeAlreadyApplied
			s.logger.Info().Str("return_id", id.String()).Msg("return assets already refunded, skipping reversal")
		} else {
			if err := s.reverseAssets(ctx, tx, order, conditions); err != nil {
				return err
			}
			encoded, err := model.EncodeConditions(conditions)
			if err != nil {
				return err
			}
			rr.ItemConditionsJSON = &encoded
			rr.AssetsRefunded = true
			outcome = metrics.OutcomeApplied
		}

		rr.Status = model.ReturnStatusCompleted
		rr.ApprovedBy = &adminID
		if rr.ApprovedAt == nil {
			rr.ApprovedAt = &now
		}
		if note != nil {
			rr.AdminNote = note
		}
		rr.UpdatedAt = now
		if err := s.returns.Update(ctx, tx, rr); err != nil {
			return err
		}

		from = order.Status
		return s.setOrderStatus(ctx, tx, order, model.OrderStatusReturnCompleted, note, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.ReturnSettlementsTotal.WithLabelValues(outcome).Inc()
	s.logger.Info().
		Str("return_id", id.String()).
		Str("order_id", order.ID.String()).
		Str("admin_id", adminID.String()).
		Str("outcome", outcome).
		Msg("return conditions confirmed")

	metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status)).Inc()
	publishStatusChange(ctx, s.publisher, s.logger, order, from, sourceReturn, now)

	return model.BuildReturnView(rr, order)
}

// checkConditions validates the submitted split against the order and
// returns one condition per variant in ascending variant order. For a
// variant submitted twice the later entry wins.
func checkConditions(order *model.Order, items []model.ItemCondition) ([]model.ItemCondition, error) {
	purchased := make(map[uuid.UUID]int, len(order.Details))
	for _, d := range order.Details {
		if d.VariantID != nil {
			purchased[*d.VariantID] += d.Quantity
		}
	}

	byVariant := make(map[uuid.UUID]model.ItemCondition, len(items))
	for _, item := range items {
		byVariant[item.VariantID] = item
	}

	conditions := make([]model.ItemCondition, 0, len(byVariant))
	for variantID, c := range byVariant {
		bought, ok := purchased[variantID]
		if !ok {
			return nil, &model.VariantNotInOrderError{VariantID: variantID}
		}
		if c.Total() > bought {
			return nil, &model.QuantityExceededError{
				VariantID: variantID,
				Purchased: bought,
				Requested: c.Total(),
			}
		}
		conditions = append(conditions, c)
	}

	slices.SortFunc(conditions, func(a, b model.ItemCondition) int {
		return slices.Compare(a.VariantID[:], b.VariantID[:])
	})
	return conditions, nil
}

// reverseAssets restocks the returned units, refunds the points the order
// used, claws back the points it earned and releases its coupon.
func (s *returnSettlement) reverseAssets(ctx context.Context, tx pgx.Tx, order *model.Order, conditions []model.ItemCondition) error {
	for _, c := range conditions {
		if err := s.inventory.Restock(ctx, tx, c.VariantID, c.GoodQuantity, c.DamagedQuantity); err != nil {
			return err
		}
	}

	if err := s.ledger.RefundUsedInTx(ctx, tx, order); err != nil {
		return err
	}
	if err := s.ledger.ClawBackEarnedInTx(ctx, tx, order); err != nil {
		return err
	}

	if order.CouponID != nil {
		if err := s.coupons.Decrement(ctx, tx, *order.CouponID); err != nil && !errors.Is(err, model.ErrCouponNotFound) {
			return err
		}
	}

	return nil
}

// ProcessRefund completes an approved return. No stock or points are
// reversed; the order moves to return_completed.
func (s *returnSettlement) ProcessRefund(ctx context.Context, id uuid.UUID, adminID uuid.UUID) (view *model.ReturnView, err error) {
	defer observe("return_process_refund", time.Now())
	ctx, span := tracing.StartSpan(ctx, "ReturnSettlement.ProcessRefund", attribute.String("return_id", id.String()))
	defer func() { finishSpan(span, err) }()

	var (
		rr    *model.ReturnRequest
		order *model.Order
		from  model.OrderStatus
		now   = s.now()
	)
	err = withTx(ctx, s.txm, readCommitted, s.logger, func(tx pgx.Tx) error {
		var err error
		rr, err = s.returns.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if rr.Status != model.ReturnStatusApproved {
			return model.ErrReturnNotApproved
		}

		rr.Status = model.ReturnStatusCompleted
		rr.ApprovedBy = &adminID
		rr.UpdatedAt = now
		if err := s.returns.Update(ctx, tx, rr); err != nil {
			return err
		}

		note := refundProcessedNote
		order, from, err = s.mirrorOnOrder(ctx, tx, rr.OrderID, model.OrderStatusReturnCompleted, &note, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("return_id", id.String()).
		Str("admin_id", adminID.String()).
		Msg("return refund processed")

	metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status)).Inc()
	publishStatusChange(ctx, s.publisher, s.logger, order, from, sourceReturn, now)

	return model.BuildReturnView(rr, order)
}

// mirrorOnOrder locks the order and moves it to status.
func (s *returnSettlement) mirrorOnOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, note *string, now time.Time) (*model.Order, model.OrderStatus, error) {
	order, err := s.orders.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, "", err
	}
	from := order.Status
	if err := s.setOrderStatus(ctx, tx, order, status, note, now); err != nil {
		return nil, "", err
	}
	return order, from, nil
}

func (s *returnSettlement) setOrderStatus(ctx context.Context, tx pgx.Tx, order *model.Order, status model.OrderStatus, note *string, now time.Time) error {
	order.Status = status
	order.UpdatedAt = now
	entry := order.AppendHistory(status, note, now)

	if err := s.orders.Update(ctx, tx, order); err != nil {
		return err
	}
	return s.orders.AppendHistory(ctx, tx, entry)
}

func trimmedNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
