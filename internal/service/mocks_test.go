package service

import (
	"context"
	"time"

	"order-settlement/internal/events"
	"order-settlement/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }

// newCommittingTx returns a MockTx expecting a commit.
func newCommittingTx() *MockTx {
	tx := new(MockTx)
	tx.On("Commit", mock.Anything).Return(nil)
	return tx
}

// newRollingBackTx returns a MockTx expecting a rollback.
func newRollingBackTx() *MockTx {
	tx := new(MockTx)
	tx.On("Rollback", mock.Anything).Return(nil)
	return tx
}

// MockTxManager is a mock implementation of repository.TxManager.
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	args := m.Called(ctx, opts)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockOrderRepository is a mock implementation of repository.OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) Update(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockOrderRepository) SetPointsEarned(ctx context.Context, tx pgx.Tx, id uuid.UUID, points int) error {
	return m.Called(ctx, tx, id, points).Error(0)
}

func (m *MockOrderRepository) AppendHistory(ctx context.Context, tx pgx.Tx, entry model.OrderStatusHistory) error {
	return m.Called(ctx, tx, entry).Error(0)
}

func (m *MockOrderRepository) NextPOSOrderNumber(ctx context.Context, tx pgx.Tx, day time.Time) (string, error) {
	args := m.Called(ctx, tx, day)
	return args.String(0), args.Error(1)
}

func (m *MockOrderRepository) DetailsByOrderIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]model.OrderDetail, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]model.OrderDetail), args.Error(1)
}

// MockProductRepository is a mock implementation of repository.ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetVariantForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.ProductVariant, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProductVariant), args.Error(1)
}

func (m *MockProductRepository) LockVariants(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) (map[uuid.UUID]*model.ProductVariant, error) {
	args := m.Called(ctx, tx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*model.ProductVariant), args.Error(1)
}

func (m *MockProductRepository) FirstVariantForUpdate(ctx context.Context, tx pgx.Tx, productID uuid.UUID) (*model.ProductVariant, error) {
	args := m.Called(ctx, tx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProductVariant), args.Error(1)
}

func (m *MockProductRepository) DeductStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty int) (bool, error) {
	args := m.Called(ctx, tx, id, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) AddStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, good, damaged int) error {
	return m.Called(ctx, tx, id, good, damaged).Error(0)
}

func (m *MockProductRepository) GetVariant(ctx context.Context, id uuid.UUID) (*model.ProductVariant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProductVariant), args.Error(1)
}

// MockLoyaltyRepository is a mock implementation of repository.LoyaltyRepository.
type MockLoyaltyRepository struct {
	mock.Mock
}

func (m *MockLoyaltyRepository) Insert(ctx context.Context, tx pgx.Tx, entry *model.LoyaltyPoint) error {
	return m.Called(ctx, tx, entry).Error(0)
}

func (m *MockLoyaltyRepository) SumActive(ctx context.Context, tx pgx.Tx, userID uuid.UUID, at time.Time) (int, error) {
	args := m.Called(ctx, tx, userID, at)
	return args.Int(0), args.Error(1)
}

func (m *MockLoyaltyRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.LoyaltyPoint, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LoyaltyPoint), args.Error(1)
}

func (m *MockLoyaltyRepository) HasRedemption(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Bool(0), args.Error(1)
}

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) Lock(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

// MockCouponRepository is a mock implementation of repository.CouponRepository.
type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*model.Coupon, error) {
	args := m.Called(ctx, tx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCouponRepository) IncrementUses(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockCouponRepository) DecrementUses(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockCouponRepository) Upsert(ctx context.Context, tx pgx.Tx, c *model.Coupon) error {
	return m.Called(ctx, tx, c).Error(0)
}

// MockAddressRepository is a mock implementation of repository.AddressRepository.
type MockAddressRepository struct {
	mock.Mock
}

func (m *MockAddressRepository) FindOrCreateWalkIn(ctx context.Context, tx pgx.Tx, template model.Address) (*model.Address, error) {
	args := m.Called(ctx, tx, template)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Address), args.Error(1)
}

// MockReturnRepository is a mock implementation of repository.ReturnRepository.
type MockReturnRepository struct {
	mock.Mock
}

func (m *MockReturnRepository) Create(ctx context.Context, tx pgx.Tx, req *model.ReturnRequest) error {
	return m.Called(ctx, tx, req).Error(0)
}

func (m *MockReturnRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ReturnRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnRequest), args.Error(1)
}

func (m *MockReturnRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.ReturnRequest, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnRequest), args.Error(1)
}

func (m *MockReturnRepository) ExistsForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReturnRepository) Update(ctx context.Context, tx pgx.Tx, req *model.ReturnRequest) error {
	return m.Called(ctx, tx, req).Error(0)
}

func (m *MockReturnRepository) List(ctx context.Context, filter model.ReturnFilter) ([]model.ReturnView, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ReturnView), args.Error(1)
}

func (m *MockReturnRepository) Count(ctx context.Context, filter model.ReturnFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

// MockLedgerWriter is a mock implementation of LedgerWriter.
type MockLedgerWriter struct {
	mock.Mock
}

func (m *MockLedgerWriter) RedeemInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, points int, order *model.Order) (decimal.Decimal, error) {
	args := m.Called(ctx, tx, userID, points, order)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerWriter) EarnInTx(ctx context.Context, tx pgx.Tx, order *model.Order) (int, error) {
	args := m.Called(ctx, tx, order)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerWriter) RefundUsedInTx(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockLedgerWriter) ClawBackEarnedInTx(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	return m.Called(ctx, tx, order).Error(0)
}

func (m *MockLedgerWriter) HasRedemption(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, orderID)
	return args.Bool(0), args.Error(1)
}

// MockInventoryAdjuster is a mock implementation of InventoryAdjuster.
type MockInventoryAdjuster struct {
	mock.Mock
}

func (m *MockInventoryAdjuster) Deduct(ctx context.Context, tx pgx.Tx, variant *model.ProductVariant, qty int) error {
	return m.Called(ctx, tx, variant, qty).Error(0)
}

func (m *MockInventoryAdjuster) DeductLines(ctx context.Context, tx pgx.Tx, details []model.OrderDetail) error {
	return m.Called(ctx, tx, details).Error(0)
}

func (m *MockInventoryAdjuster) Restock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, good, damaged int) error {
	return m.Called(ctx, tx, variantID, good, damaged).Error(0)
}

// MockCouponUsageTracker is a mock implementation of CouponUsageTracker.
type MockCouponUsageTracker struct {
	mock.Mock
}

func (m *MockCouponUsageTracker) Increment(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) error {
	return m.Called(ctx, tx, couponID).Error(0)
}

func (m *MockCouponUsageTracker) Decrement(ctx context.Context, tx pgx.Tx, couponID uuid.UUID) error {
	return m.Called(ctx, tx, couponID).Error(0)
}

// MockCouponValidator is a mock implementation of coupon.Validator.
type MockCouponValidator struct {
	mock.Mock
}

func (m *MockCouponValidator) Apply(ctx context.Context, tx pgx.Tx, code string, subtotal decimal.Decimal, now time.Time) (*model.Coupon, decimal.Decimal, error) {
	args := m.Called(ctx, tx, code, subtotal, now)
	if args.Get(0) == nil {
		return nil, decimal.Zero, args.Error(2)
	}
	return args.Get(0).(*model.Coupon), args.Get(1).(decimal.Decimal), args.Error(2)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderStatusChanged(ctx context.Context, event events.OrderStatusChangedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

// fixedNow is the clock used by the unit tests.
var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// testOrder builds an online order for user with one line of qty units of
// variantID at 250,000 each.
func testOrder(userID *uuid.UUID, variantID uuid.UUID, qty int, status model.OrderStatus) *model.Order {
	id := uuid.New()
	unit := decimal.NewFromInt(250000)
	order := &model.Order{
		ID:          id,
		OrderNumber: "ORD-" + id.String()[:8],
		Channel:     model.ChannelOnline,
		UserID:      userID,
		Status:      status,
		Subtotal:    unit.Mul(decimal.NewFromInt(int64(qty))),
		Details: []model.OrderDetail{{
			ID:          uuid.New(),
			OrderID:     id,
			VariantID:   &variantID,
			ProductName: "Runner",
			Quantity:    qty,
			UnitPrice:   unit,
			TotalPrice:  unit.Mul(decimal.NewFromInt(int64(qty))),
		}},
	}
	order.ApplyTotals(decimal.NewFromFloat(0.1))
	return order
}
