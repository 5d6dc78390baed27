package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order-settlement/internal/coupon"
	"order-settlement/internal/events"
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

// walkInRecipient names the recipient of a sale without any customer details.
const walkInRecipient = "walk-in"

// StoreLocation is the counter address recorded on point-of-sale orders.
type StoreLocation struct {
	Phone       string
	AddressLine string
	City        string
}

// posOrderBuilder implements POSOrderBuilder.
type posOrderBuilder struct {
	txm       repository.TxManager
	orders    repository.OrderRepository
	products  repository.ProductRepository
	users     repository.UserRepository
	addresses repository.AddressRepository
	validator coupon.Validator
	coupons   CouponUsageTracker
	ledger    LedgerWriter
	inventory InventoryAdjuster
	publisher events.Publisher
	store     StoreLocation
	vatRate   decimal.Decimal
	now       func() time.Time
	logger    zerolog.Logger
}

// POSDependencies groups the collaborators of the POS order builder.
type POSDependencies struct {
	TxManager   repository.TxManager
	Orders      repository.OrderRepository
	Products    repository.ProductRepository
	Users       repository.UserRepository
	Addresses   repository.AddressRepository
	Validator   coupon.Validator
	CouponUsage CouponUsageTracker
	Ledger      LedgerWriter
	Inventory   InventoryAdjuster
	Publisher   events.Publisher
}

// NewPOSOrderBuilder creates a new point-of-sale order builder.
func NewPOSOrderBuilder(deps POSDependencies, store StoreLocation, vatRate decimal.Decimal, logger zerolog.Logger) POSOrderBuilder {
	return &posOrderBuilder{
		txm:       deps.TxManager,
		orders:    deps.Orders,
		products:  deps.Products,
		users:     deps.Users,
		addresses: deps.Addresses,
		validator: deps.Validator,
		coupons:   deps.CouponUsage,
		ledger:    deps.Ledger,
		inventory: deps.Inventory,
		publisher: deps.Publisher,
		store:     store,
		vatRate:   vatRate,
		now:       time.Now,
		logger:    logger.With().Str("service", "pos-order").Logger(),
	}
}

// CreatePOSOrder records an in-store sale as a delivered, paid order.
//
// Stock is deducted per line and the whole sale fails when any line is
// short. A coupon is priced on the subtotal and its usage counted. Points
// are redeemed only for an identified customer, who also earns points on
// the sale. Everything commits in one transaction.
func (b *posOrderBuilder) CreatePOSOrder(ctx context.Context, req *model.POSOrderRequest) (result *model.Order, err error) {
	defer observe("pos_order_create", time.Now())
	if err := b.validate(req); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "POSOrderBuilder.CreatePOSOrder",
		attribute.Int("item_count", len(req.Items)),
		attribute.Bool("has_customer", req.CustomerID != nil),
	)
	defer func() { finishSpan(span, err) }()

	method, known := model.NormalizePaymentMethod(req.PaymentMethod)
	if !known {
		b.logger.Warn().
			Str("payment_method", req.PaymentMethod).
			Msg("unknown payment method, recording as cod")
	}

	now := b.now()
	order := &model.Order{
		ID:        uuid.New(),
		Channel:   model.ChannelPOS,
		UserID:    req.CustomerID,
		Status:    model.OrderStatusDelivered,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = withTx(ctx, b.txm, readCommitted, b.logger, func(tx pgx.Tx) error {
		var err error
		order.OrderNumber, err = b.orders.NextPOSOrderNumber(ctx, tx, now)
		if err != nil {
			return err
		}

		var customer *model.User
		if req.CustomerID != nil {
			customer, err = b.users.GetByID(ctx, tx, *req.CustomerID)
			if err != nil {
				return err
			}
		}

		address, err := b.addresses.FindOrCreateWalkIn(ctx, tx, b.walkInAddress(req, customer, now))
		if err != nil {
			return err
		}
		order.ShippingAddressID = &address.ID

		if err := b.addLines(ctx, tx, order, req.Items); err != nil {
			return err
		}

		if req.DiscountCode != nil && strings.TrimSpace(*req.DiscountCode) != "" {
			c, discount, err := b.validator.Apply(ctx, tx, *req.DiscountCode, order.Subtotal, now)
			if err != nil {
				return err
			}
			if discount.GreaterThan(order.Subtotal) {
				discount = order.Subtotal
			}
			order.DiscountAmount = discount
			order.CouponID = &c.ID
			if err := b.coupons.Increment(ctx, tx, c.ID); err != nil {
				return err
			}
		}

		if req.PointsUsed > 0 {
			if customer == nil {
				b.logger.Warn().
					Int("points", req.PointsUsed).
					Msg("points ignored for walk-in sale")
			} else {
				discount, err := b.ledger.RedeemInTx(ctx, tx, customer.ID, req.PointsUsed, order)
				if err != nil {
					return err
				}
				order.PointsDiscount = discount
			}
		}

		order.ApplyTotals(b.vatRate)

		paidAt := now
		order.Payment = &model.Payment{
			ID:            uuid.New(),
			OrderID:       order.ID,
			PaymentMethod: method,
			Amount:        order.TotalAmount,
			Status:        model.PaymentStatusCompleted,
			PaidAt:        &paidAt,
			CreatedAt:     now,
		}
		order.AppendHistory(model.OrderStatusDelivered, nil, now)

		if err := b.orders.Create(ctx, tx, order); err != nil {
			return err
		}

		_, err = b.ledger.EarnInTx(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.POSOrdersTotal.Inc()
	metrics.OrderTransitionsTotal.WithLabelValues(string(model.OrderStatusDelivered)).Inc()
	b.logger.Info().
		Str("order_id", order.ID.String()).
		Str("order_number", order.OrderNumber).
		Str("total", order.TotalAmount.StringFixed(2)).
		Int("item_count", len(order.Details)).
		Msg("pos order created")

	publishStatusChange(ctx, b.publisher, b.logger, order, "", sourcePOS, now)

	return b.orders.GetByID(ctx, order.ID)
}

func (b *posOrderBuilder) validate(req *model.POSOrderRequest) error {
	if req == nil || len(req.Items) == 0 {
		return fmt.Errorf("%w: items", model.ErrMissingField)
	}
	for i, item := range req.Items {
		if item.VariantID == nil && item.ProductID == nil {
			return fmt.Errorf("%w: item %d needs variantId or productId", model.ErrMissingField, i)
		}
		if item.Quantity <= 0 {
			b.logger.Warn().
				Int("item_index", i).
				Int("quantity", item.Quantity).
				Msg("invalid quantity")
			return model.ErrInvalidQuantity
		}
	}
	if req.PointsUsed < 0 {
		return model.ErrInvalidAmount
	}
	return nil
}

// walkInAddress builds the counter address of the sale. The recipient is
// the given customer name, else the customer's name, else walk-in.
func (b *posOrderBuilder) walkInAddress(req *model.POSOrderRequest, customer *model.User, now time.Time) model.Address {
	recipient := walkInRecipient
	phone := b.store.Phone
	switch {
	case req.CustomerName != nil && strings.TrimSpace(*req.CustomerName) != "":
		recipient = strings.TrimSpace(*req.CustomerName)
	case customer != nil && customer.FullName != "":
		recipient = customer.FullName
	}
	switch {
	case req.CustomerPhone != nil && strings.TrimSpace(*req.CustomerPhone) != "":
		phone = strings.TrimSpace(*req.CustomerPhone)
	case customer != nil && customer.Phone != nil && *customer.Phone != "":
		phone = *customer.Phone
	}

	return model.Address{
		ID:            uuid.New(),
		RecipientName: recipient,
		Phone:         phone,
		Line1:         b.store.AddressLine,
		City:          b.store.City,
		AddressType:   model.AddressTypeOther,
		CreatedAt:     now,
	}
}

// addLines resolves, prices and deducts every line of the sale. Variants
// named by id are locked first, in ascending id order.
func (b *posOrderBuilder) addLines(ctx context.Context, tx pgx.Tx, order *model.Order, items []model.POSItemRequest) error {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.VariantID != nil {
			ids = append(ids, *item.VariantID)
		}
	}
	locked, err := b.products.LockVariants(ctx, tx, ids)
	if err != nil {
		return err
	}

	subtotal := decimal.Zero
	for _, item := range items {
		v, err := b.resolveVariant(ctx, tx, locked, item)
		if err != nil {
			return err
		}

		if err := b.inventory.Deduct(ctx, tx, v, item.Quantity); err != nil {
			return err
		}

		variantID := v.ID
		unit := v.EffectivePrice()
		lineTotal := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
		order.Details = append(order.Details, model.OrderDetail{
			ID:          uuid.New(),
			OrderID:     order.ID,
			VariantID:   &variantID,
			ProductName: v.ProductName,
			VariantSKU:  v.SKU,
			Size:        v.Size,
			Color:       v.Color,
			Quantity:    item.Quantity,
			UnitPrice:   unit,
			TotalPrice:  lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	order.Subtotal = subtotal
	return nil
}

// resolveVariant returns the line's variant, or the first variant of the
// line's product. A product variant that was already locked by id is
// shared so stock checks see earlier deductions.
func (b *posOrderBuilder) resolveVariant(ctx context.Context, tx pgx.Tx, locked map[uuid.UUID]*model.ProductVariant, item model.POSItemRequest) (*model.ProductVariant, error) {
	if item.VariantID != nil {
		v, ok := locked[*item.VariantID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", model.ErrVariantNotFound, item.VariantID)
		}
		return v, nil
	}

	v, err := b.products.FirstVariantForUpdate(ctx, tx, *item.ProductID)
	if err != nil {
		return nil, err
	}
	if shared, ok := locked[v.ID]; ok {
		return shared, nil
	}
	locked[v.ID] = v
	return v, nil
}
