package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"order-settlement/internal/middleware"
	"order-settlement/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOrderLifecycle is a mock implementation of service.OrderLifecycle.
type MockOrderLifecycle struct {
	mock.Mock
}

func (m *MockOrderLifecycle) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderLifecycle) TransitionStatus(ctx context.Context, id uuid.UUID, requested string) (*model.Order, error) {
	args := m.Called(ctx, id, requested)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockPointsLedger is a mock implementation of service.PointsLedger.
type MockPointsLedger struct {
	mock.Mock
}

func (m *MockPointsLedger) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockPointsLedger) History(ctx context.Context, userID uuid.UUID) ([]model.LoyaltyPoint, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LoyaltyPoint), args.Error(1)
}

func (m *MockPointsLedger) Award(ctx context.Context, userID uuid.UUID, points int, reason *string) (*model.LoyaltyPoint, error) {
	args := m.Called(ctx, userID, points, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LoyaltyPoint), args.Error(1)
}

func (m *MockPointsLedger) Redeem(ctx context.Context, orderID uuid.UUID, req *model.RedeemPointsRequest) (*model.RedeemPointsResponse, error) {
	args := m.Called(ctx, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RedeemPointsResponse), args.Error(1)
}

func (m *MockPointsLedger) EarnFromOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockReturnSettlement is a mock implementation of service.ReturnSettlement.
type MockReturnSettlement struct {
	mock.Mock
}

func (m *MockReturnSettlement) CreateReturnRequest(ctx context.Context, orderID uuid.UUID, req *model.CreateReturnRequest) (*model.ReturnView, error) {
	args := m.Called(ctx, orderID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnView), args.Error(1)
}

func (m *MockReturnSettlement) GetReturn(ctx context.Context, id uuid.UUID) (*model.ReturnView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnView), args.Error(1)
}

func (m *MockReturnSettlement) ListReturns(ctx context.Context, filter model.ReturnFilter) (*model.ReturnPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnPage), args.Error(1)
}

func (m *MockReturnSettlement) UpdateStatus(ctx context.Context, id uuid.UUID, adminID uuid.UUID, req *model.UpdateReturnStatusRequest) (*model.ReturnView, error) {
	args := m.Called(ctx, id, adminID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnView), args.Error(1)
}

func (m *MockReturnSettlement) ConfirmConditions(ctx context.Context, id uuid.UUID, adminID uuid.UUID, req *model.ConfirmConditionsRequest) (*model.ReturnView, error) {
	args := m.Called(ctx, id, adminID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnView), args.Error(1)
}

func (m *MockReturnSettlement) ProcessRefund(ctx context.Context, id uuid.UUID, adminID uuid.UUID) (*model.ReturnView, error) {
	args := m.Called(ctx, id, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReturnView), args.Error(1)
}

// MockPOSOrderBuilder is a mock implementation of service.POSOrderBuilder.
type MockPOSOrderBuilder struct {
	mock.Mock
}

func (m *MockPOSOrderBuilder) CreatePOSOrder(ctx context.Context, req *model.POSOrderRequest) (*model.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// routeTarget mounts routes the way the router does, minus authentication.
// The admin identity middleware still runs so handlers see an admin ID.
func routeTarget(public, admin func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		if public != nil {
			public(r)
		}
		if admin != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminIdentity(zerolog.Nop()))
				admin(r)
			})
		}
	})
	return r
}

// doRequest sends a JSON request through h, optionally as an admin.
func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}, admin *uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin != nil {
		req.Header.Set(middleware.AdminIDHeader, admin.String())
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decodeError reads an error response body.
func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
