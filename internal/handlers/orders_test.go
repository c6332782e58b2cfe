package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/platform/identity"
	"github.com/adomherbals/api/internal/services"
)

type orderServiceStub struct {
	getFn  func(ctx context.Context, userID, orderID string) (domain.Order, error)
	listFn func(ctx context.Context, userID string, limit int) ([]domain.Order, error)
}

func (s *orderServiceStub) AssembleOrder(context.Context, services.AssembleOrderCommand) (domain.Order, error) {
	return domain.Order{}, services.ErrOrderUnavailable
}

func (s *orderServiceStub) GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	return s.getFn(ctx, userID, orderID)
}

func (s *orderServiceStub) ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	return s.listFn(ctx, userID, limit)
}

func (s *orderServiceStub) UpdateStatus(context.Context, string, domain.OrderStatus, string) (domain.Order, error) {
	return domain.Order{}, services.ErrOrderUnavailable
}

func newOrderTestServer(t *testing.T, stub *orderServiceStub) *httptest.Server {
	t.Helper()
	router := NewRouter(
		WithMiddlewares(identity.Middleware()),
		WithOrderRoutes(NewOrderHandlers(stub).Routes),
	)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func sampleOrder() domain.Order {
	paidAt := time.Date(2025, 7, 2, 14, 30, 0, 0, time.UTC)
	return domain.Order{
		ID:       "ord-1",
		UserID:   "user-1",
		Status:   domain.OrderStatusPaid,
		Currency: "GHS",
		Items: []domain.OrderLineItem{
			{ProductID: "prd-moringa", Name: "Moringa Capsules", Quantity: 2, UnitPrice: 45.00, Total: 90.00},
		},
		ShippingAddress: domain.Address{
			Recipient: "Akosua Mensah",
			Street:    "12 Oxford St",
			City:      "Accra",
			Region:    domain.RegionGreaterAccra,
			Country:   "GH",
		},
		ShippingMethod:   domain.DeliveryStandard,
		ShippingCost:     12.75,
		Subtotal:         90.00,
		Tax:              13.50,
		Total:            116.25,
		Payment:          domain.PaymentDetails{Method: domain.PaymentMethodCard},
		PaymentReference: "ord-1",
		CreatedAt:        time.Date(2025, 7, 2, 14, 0, 0, 0, time.UTC),
		PaidAt:           &paidAt,
	}
}

func TestOrderHandlersGetOrder(t *testing.T) {
	stub := &orderServiceStub{
		getFn: func(_ context.Context, userID, orderID string) (domain.Order, error) {
			if userID != "user-1" || orderID != "ord-1" {
				t.Fatalf("unexpected lookup user=%q order=%q", userID, orderID)
			}
			return sampleOrder(), nil
		},
	}
	server := newOrderTestServer(t, stub)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/orders/ord-1", nil)
	req.Header.Set(identity.Header, "user-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.OrderID != "ord-1" || body.Status != "paid" {
		t.Fatalf("unexpected order payload %+v", body)
	}
	if body.Total != 116.25 {
		t.Fatalf("expected total 116.25, got %.2f", body.Total)
	}
	if body.PaidAt != "2025-07-02T14:30:00Z" {
		t.Fatalf("unexpected paidAt %q", body.PaidAt)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	stub := &orderServiceStub{
		getFn: func(context.Context, string, string) (domain.Order, error) {
			return domain.Order{}, services.ErrOrderNotFound
		},
	}
	server := newOrderTestServer(t, stub)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/orders/missing", nil)
	req.Header.Set(identity.Header, "user-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.StatusCode)
	}
}

func TestOrderHandlersListOrders(t *testing.T) {
	stub := &orderServiceStub{
		listFn: func(_ context.Context, userID string, limit int) ([]domain.Order, error) {
			if limit != 5 {
				t.Fatalf("expected limit 5, got %d", limit)
			}
			return []domain.Order{sampleOrder()}, nil
		},
	}
	server := newOrderTestServer(t, stub)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/orders/?limit=5", nil)
	req.Header.Set(identity.Header, "user-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Orders []orderResponse `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(body.Orders))
	}
}

func TestOrderHandlersListOrdersRejectsBadLimit(t *testing.T) {
	stub := &orderServiceStub{
		listFn: func(context.Context, string, int) ([]domain.Order, error) {
			t.Fatal("service should not be reached with a bad limit")
			return nil, nil
		},
	}
	server := newOrderTestServer(t, stub)

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/v1/orders/?limit=abc", nil)
	req.Header.Set(identity.Header, "user-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}
