package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"order-settlement/internal/coupon"
	"order-settlement/internal/events"
	"order-settlement/internal/handler"
	"order-settlement/internal/middleware"
	"order-settlement/internal/model"
	"order-settlement/internal/repository"
	"order-settlement/internal/router"
	"order-settlement/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

var testAdminID = uuid.MustParse("7f1c2a56-0d7e-4f4c-9c55-3b1f6f7f0a01")

func setupTestServer(t *testing.T, testDB *TestDB) http.Handler {
	t.Helper()

	logger := zerolog.Nop()
	vatRate := decimal.NewFromFloat(0.1)
	publisher := events.NewNopPublisher()

	// Initialize repositories
	txm := repository.NewTxManager(testDB.Pool, logger)
	orderRepo := repository.NewOrderRepository(testDB.Pool, logger)
	productRepo := repository.NewProductRepository(testDB.Pool, logger)
	userRepo := repository.NewUserRepository(logger)
	couponRepo := repository.NewCouponRepository(logger)

	// Initialize services
	ledger := service.NewPointsLedger(txm, repository.NewLoyaltyRepository(testDB.Pool, logger), userRepo, orderRepo, vatRate, logger)
	inventory := service.NewInventoryAdjuster(productRepo, logger)
	couponUsage := service.NewCouponUsageTracker(couponRepo, logger)
	lifecycle := service.NewOrderLifecycle(txm, orderRepo, ledger, inventory, publisher, logger)
	returns := service.NewReturnSettlement(txm, repository.NewReturnRepository(testDB.Pool, logger), orderRepo, ledger, inventory, couponUsage, publisher, logger)
	pos := service.NewPOSOrderBuilder(service.POSDependencies{
		TxManager:   txm,
		Orders:      orderRepo,
		Products:    productRepo,
		Users:       userRepo,
		Addresses:   repository.NewAddressRepository(logger),
		Validator:   coupon.NewValidator(couponRepo, logger),
		CouponUsage: couponUsage,
		Ledger:      ledger,
		Inventory:   inventory,
		Publisher:   publisher,
	}, service.StoreLocation{Phone: "02873001234", AddressLine: "12 Nguyen Hue", City: "Ho Chi Minh"}, vatRate, logger)

	// Create router
	return router.New(router.Handlers{
		Orders:  handler.NewOrderHandler(lifecycle, ledger, logger),
		Points:  handler.NewPointsHandler(ledger, logger),
		POS:     handler.NewPOSHandler(pos, logger),
		Returns: handler.NewReturnHandler(returns, logger),
	}, router.Options{APIKey: testAPIKey}, logger)
}

// call sends a JSON request. Admin requests carry the API key and admin identity.
func call(t *testing.T, server http.Handler, method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-API-Key", testAPIKey)
		req.Header.Set(middleware.AdminIDHeader, testAdminID.String())
	}

	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func balanceOf(t *testing.T, server http.Handler, userID uuid.UUID) int {
	t.Helper()
	w := call(t, server, http.MethodGet, "/api/users/"+userID.String()+"/points", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	return decodeBody[model.PointsBalance](t, w).Balance
}

func TestOrderSettlementAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server := setupTestServer(t, testDB)

	userID := SeedUser(t, testDB.Pool, "Nguyen Van A")
	variant := SeedVariant(t, testDB.Pool, "Runner", 250000, 10)
	order := SeedOrder(t, testDB.Pool, userID, variant, 2)
	orderPath := "/api/admin/orders/" + order.ID.String()

	t.Run("award and redeem points on a pending order", func(t *testing.T) {
		w := call(t, server, http.MethodPost, "/api/admin/users/"+userID.String()+"/points",
			model.AwardPointsRequest{Points: 100}, true)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = call(t, server, http.MethodPost, "/api/orders/"+order.ID.String()+"/points/redeem",
			model.RedeemPointsRequest{UserID: userID, Points: 30}, false)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "30000.00", decodeBody[model.RedeemPointsResponse](t, w).DiscountAmount)
		assert.Equal(t, 70, balanceOf(t, server, userID))

		w = call(t, server, http.MethodPost, "/api/orders/"+order.ID.String()+"/points/redeem",
			model.RedeemPointsRequest{UserID: userID, Points: 10}, false)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("confirm does not redeem twice", func(t *testing.T) {
		w := call(t, server, http.MethodPatch, orderPath+"/status", model.StatusUpdateRequest{Status: "confirmed"}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, model.OrderStatusConfirmed, decodeBody[model.Order](t, w).Status)
		assert.Equal(t, 70, balanceOf(t, server, userID))
	})

	t.Run("earn before delivery is a conflict", func(t *testing.T) {
		w := call(t, server, http.MethodPost, orderPath+"/points/earn", nil, true)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, model.ErrCodeInvalidTransition, decodeBody[model.ErrorResponse](t, w).Error)
		assert.Equal(t, 70, balanceOf(t, server, userID))
	})

	t.Run("deliver deducts stock", func(t *testing.T) {
		w := call(t, server, http.MethodPatch, orderPath+"/status", model.StatusUpdateRequest{Status: "COMPLETED"}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, model.OrderStatusDelivered, decodeBody[model.Order](t, w).Status)

		stock, _ := StockOf(t, testDB.Pool, variant.ID)
		assert.Equal(t, 8, stock)
	})

	t.Run("earn is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			w := call(t, server, http.MethodPost, orderPath+"/points/earn", nil, true)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, 47, decodeBody[model.Order](t, w).PointsEarned)
		}
		assert.Equal(t, 117, balanceOf(t, server, userID))
	})

	t.Run("invalid transition is a conflict", func(t *testing.T) {
		w := call(t, server, http.MethodPatch, orderPath+"/status", model.StatusUpdateRequest{Status: "pending"}, true)
		assert.Equal(t, http.StatusConflict, w.Code)

		var resp model.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, model.ErrCodeInvalidTransition, resp.Error)
		assert.NotEmpty(t, resp.CorrelationID)
	})

	t.Run("order history records every status", func(t *testing.T) {
		w := call(t, server, http.MethodGet, orderPath, nil, true)
		require.Equal(t, http.StatusOK, w.Code)

		got := decodeBody[model.Order](t, w)
		require.Len(t, got.History, 3)
		assert.Equal(t, model.OrderStatusDelivered, got.History[len(got.History)-1].Status)
	})

	t.Run("points history lists every entry", func(t *testing.T) {
		w := call(t, server, http.MethodGet, "/api/users/"+userID.String()+"/points/history", nil, false)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decodeBody[[]model.LoyaltyPoint](t, w), 3)
	})

	t.Run("return settles stock and points", func(t *testing.T) {
		w := call(t, server, http.MethodPost, "/api/orders/"+order.ID.String()+"/returns", model.CreateReturnRequest{
			UserID:            userID,
			Reason:            "Wrong size",
			BankName:          "VCB",
			BankAccountNumber: "0123456789",
			BankAccountHolder: "NGUYEN VAN A",
		}, false)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		created := decodeBody[model.ReturnView](t, w)
		assert.Equal(t, model.ReturnStatusPending, created.Status)
		returnPath := "/api/admin/returns/" + created.ID.String()

		w = call(t, server, http.MethodGet, "/api/admin/returns?status=pending", nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, decodeBody[model.ReturnPage](t, w).Total)

		w = call(t, server, http.MethodPatch, returnPath+"/status", model.UpdateReturnStatusRequest{Status: "approved"}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		approved := decodeBody[model.ReturnView](t, w)
		require.NotNil(t, approved.ApprovedBy)
		assert.Equal(t, testAdminID, *approved.ApprovedBy)

		w = call(t, server, http.MethodPost, returnPath+"/conditions", model.ConfirmConditionsRequest{
			Items: []model.ItemCondition{{VariantID: variant.ID, GoodQuantity: 2, DamagedQuantity: 1}},
		}, true)
		assert.Equal(t, http.StatusConflict, w.Code)

		w = call(t, server, http.MethodPost, returnPath+"/conditions", model.ConfirmConditionsRequest{
			Items: []model.ItemCondition{{VariantID: variant.ID, GoodQuantity: 1, DamagedQuantity: 1}},
		}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		settled := decodeBody[model.ReturnView](t, w)
		assert.Equal(t, model.ReturnStatusCompleted, settled.Status)
		assert.True(t, settled.AssetsRefunded)

		stock, damaged := StockOf(t, testDB.Pool, variant.ID)
		assert.Equal(t, 9, stock)
		assert.Equal(t, 1, damaged)
		// 117 less the 47 earned plus the 30 used.
		assert.Equal(t, 100, balanceOf(t, server, userID))

		// Confirming again changes nothing.
		w = call(t, server, http.MethodPost, returnPath+"/conditions", model.ConfirmConditionsRequest{
			Items: []model.ItemCondition{{VariantID: variant.ID, GoodQuantity: 2}},
		}, true)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		stock, damaged = StockOf(t, testDB.Pool, variant.ID)
		assert.Equal(t, 9, stock)
		assert.Equal(t, 1, damaged)
		assert.Equal(t, 100, balanceOf(t, server, userID))

		w = call(t, server, http.MethodGet, orderPath, nil, true)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, model.OrderStatusReturnCompleted, decodeBody[model.Order](t, w).Status)
	})
}

func TestCancelRefundsPoints_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server := setupTestServer(t, testDB)

	userID := SeedUser(t, testDB.Pool, "Tran Thi B")
	variant := SeedVariant(t, testDB.Pool, "Trail", 200000, 5)
	order := SeedOrder(t, testDB.Pool, userID, variant, 1)

	w := call(t, server, http.MethodPost, "/api/admin/users/"+userID.String()+"/points", model.AwardPointsRequest{Points: 50}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	w = call(t, server, http.MethodPost, "/api/orders/"+order.ID.String()+"/points/redeem",
		model.RedeemPointsRequest{UserID: userID, Points: 20}, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, balanceOf(t, server, userID))

	w = call(t, server, http.MethodPatch, "/api/admin/orders/"+order.ID.String()+"/status", model.StatusUpdateRequest{Status: "cancelled"}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 50, balanceOf(t, server, userID))

	stock, _ := StockOf(t, testDB.Pool, variant.ID)
	assert.Equal(t, 5, stock, "cancelling before delivery leaves stock untouched")

	// Cancelled is terminal.
	w = call(t, server, http.MethodPatch, "/api/admin/orders/"+order.ID.String()+"/status", model.StatusUpdateRequest{Status: "confirmed"}, true)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPOSAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server := setupTestServer(t, testDB)

	customerID := SeedUser(t, testDB.Pool, "Le Van C")
	variant := SeedVariant(t, testDB.Pool, "Court", 250000, 4)
	SeedCoupon(t, testDB.Pool, "SPRING10", 10)

	t.Run("walk-in sale by product", func(t *testing.T) {
		w := call(t, server, http.MethodPost, "/api/admin/pos/orders", model.POSOrderRequest{
			Items:         []model.POSItemRequest{{ProductID: &variant.ProductID, Quantity: 1}},
			PaymentMethod: "cash",
		}, true)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		order := decodeBody[model.Order](t, w)
		assert.Equal(t, model.ChannelPOS, order.Channel)
		assert.Equal(t, model.OrderStatusDelivered, order.Status)
		assert.Nil(t, order.UserID)
		assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(275000)), "total %s", order.TotalAmount)
	})

	t.Run("customer sale with coupon earns points", func(t *testing.T) {
		code := "spring10"
		w := call(t, server, http.MethodPost, "/api/admin/pos/orders", model.POSOrderRequest{
			Items:         []model.POSItemRequest{{VariantID: &variant.ID, Quantity: 2}},
			CustomerID:    &customerID,
			DiscountCode:  &code,
			PaymentMethod: "card",
		}, true)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		order := decodeBody[model.Order](t, w)
		assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(495000)), "total %s", order.TotalAmount)
		assert.Equal(t, 45, order.PointsEarned)
		assert.Equal(t, 45, balanceOf(t, server, customerID))

		stock, _ := StockOf(t, testDB.Pool, variant.ID)
		assert.Equal(t, 1, stock)
	})

	t.Run("shortage is rejected", func(t *testing.T) {
		w := call(t, server, http.MethodPost, "/api/admin/pos/orders", model.POSOrderRequest{
			Items:         []model.POSItemRequest{{VariantID: &variant.ID, Quantity: 2}},
			PaymentMethod: "cash",
		}, true)
		assert.Equal(t, http.StatusConflict, w.Code)

		stock, _ := StockOf(t, testDB.Pool, variant.ID)
		assert.Equal(t, 1, stock)
	})

	t.Run("admin routes require the API key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/pos/orders", bytes.NewBufferString(`{}`))
		req.Header.Set(middleware.AdminIDHeader, testAdminID.String())
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
