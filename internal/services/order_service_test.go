package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/repositories"
	"github.com/adomherbals/api/internal/repositories/memory"
)

type orderFixture struct {
	service   OrderService
	orders    *memory.OrderRepository
	addresses *memory.AddressRepository
	catalog   *memory.Catalog
	events    *recordingPublisher
}

type recordingPublisher struct {
	created []domain.Order
	paid    []domain.Order
	fail    error
}

func (p *recordingPublisher) OrderCreated(_ context.Context, order domain.Order) error {
	if p.fail != nil {
		return p.fail
	}
	p.created = append(p.created, order)
	return nil
}

func (p *recordingPublisher) OrderPaid(_ context.Context, order domain.Order) error {
	if p.fail != nil {
		return p.fail
	}
	p.paid = append(p.paid, order)
	return nil
}

func newOrderFixture(t *testing.T) orderFixture {
	t.Helper()

	orders := memory.NewOrderRepository()
	addresses := memory.NewAddressRepository()
	catalog := memory.NewCatalog()
	catalog.Put(domain.CartItem{ProductID: "prd-moringa", Name: "Moringa Powder", UnitPrice: 45.00, UnitWeightKg: 0.5})
	catalog.Put(domain.CartItem{ProductID: "prd-neem", Name: "Neem Capsules", UnitPrice: 30.00, UnitWeightKg: 0.3})

	publisher := &recordingPublisher{}
	counter := 0
	service, err := NewOrderService(OrderServiceDeps{
		Orders:    orders,
		Addresses: addresses,
		Catalog:   catalog,
		Publisher: publisher,
		Clock:     func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) },
		NewID: func() string {
			counter++
			return fmt.Sprintf("id-%04d", counter)
		},
		TaxRate: -1,
	})
	if err != nil {
		t.Fatalf("NewOrderService failed: %v", err)
	}
	return orderFixture{service: service, orders: orders, addresses: addresses, catalog: catalog, events: publisher}
}

func assembleCommand() AssembleOrderCommand {
	return AssembleOrderCommand{
		UserID: "user-1",
		Cart: domain.CartSnapshot{
			UserID: "user-1",
			Items: []domain.CartItem{
				{ProductID: "prd-moringa", Quantity: 2, UnitPrice: 1.00},
				{ProductID: "prd-neem", Quantity: 1, UnitPrice: 1.00},
			},
		},
		Shipping: ShippingForm{
			Name:   "Akosua Mensah",
			Email:  "akosua@example.com",
			Phone:  "+233201234567",
			Street: "12 Oxford Street",
			City:   "Accra",
			Region: "greater-accra",
			Method: domain.DeliveryStandard,
		},
		Payment:          domain.PaymentDetails{Method: domain.PaymentMethodCard, Card: &domain.CardDetails{HolderName: "Akosua Mensah"}},
		Quote:            domain.ShippingQuote{Method: domain.DeliveryStandard, Total: 12.75},
		IdempotencyToken: "tok-abc",
	}
}

func TestAssembleOrderComputesServerTotals(t *testing.T) {
	fx := newOrderFixture(t)

	order, err := fx.service.AssembleOrder(context.Background(), assembleCommand())
	if err != nil {
		t.Fatalf("AssembleOrder failed: %v", err)
	}

	// Catalog prices are authoritative: 2 x 45.00 + 1 x 30.00 = 120.00,
	// not the 1.00 figures carried on the cart lines.
	if order.Subtotal != 120.00 {
		t.Fatalf("expected subtotal 120.00 got %v", order.Subtotal)
	}
	if order.Total != 132.75 {
		t.Fatalf("expected total 132.75 got %v", order.Total)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status got %s", order.Status)
	}
	if order.Currency != "GHS" {
		t.Fatalf("expected GHS currency got %s", order.Currency)
	}
	if order.ShippingAddress.ID == "" {
		t.Fatal("expected persisted address on order")
	}
	if len(fx.events.created) != 1 {
		t.Fatalf("expected one OrderCreated event got %d", len(fx.events.created))
	}
}

func TestAssembleOrderAddressFailureCreatesNoOrder(t *testing.T) {
	fx := newOrderFixture(t)
	fx.addresses.FailWith(repositories.NewUnavailable("memory addresses", errors.New("down")))

	_, err := fx.service.AssembleOrder(context.Background(), assembleCommand())
	if !errors.Is(err, ErrAddressCreationFailed) {
		t.Fatalf("expected ErrAddressCreationFailed got %v", err)
	}
	if fx.orders.InsertCount() != 0 {
		t.Fatalf("expected no order insert, got %d", fx.orders.InsertCount())
	}
	if len(fx.events.created) != 0 {
		t.Fatal("expected no events after address failure")
	}
}

func TestAssembleOrderUnknownProductFails(t *testing.T) {
	fx := newOrderFixture(t)

	cmd := assembleCommand()
	cmd.Cart.Items = append(cmd.Cart.Items, domain.CartItem{ProductID: "prd-ghost", Quantity: 1})

	_, err := fx.service.AssembleOrder(context.Background(), cmd)
	if !errors.Is(err, ErrOrderCreationFailed) {
		t.Fatalf("expected ErrOrderCreationFailed got %v", err)
	}
}

func TestAssembleOrderIdempotencyTokenDedupes(t *testing.T) {
	fx := newOrderFixture(t)
	cmd := assembleCommand()

	first, err := fx.service.AssembleOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first AssembleOrder failed: %v", err)
	}
	second, err := fx.service.AssembleOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second AssembleOrder failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected deduped order, got %s and %s", first.ID, second.ID)
	}
	if fx.orders.InsertCount() != 1 {
		t.Fatalf("expected one stored order, got %d", fx.orders.InsertCount())
	}
	if len(fx.events.created) != 1 {
		t.Fatalf("expected one OrderCreated event got %d", len(fx.events.created))
	}
}

func TestUpdateStatusEnforcesLifecycle(t *testing.T) {
	fx := newOrderFixture(t)

	order, err := fx.service.AssembleOrder(context.Background(), assembleCommand())
	if err != nil {
		t.Fatalf("AssembleOrder failed: %v", err)
	}

	paid, err := fx.service.UpdateStatus(context.Background(), order.ID, domain.OrderStatusPaid, "ref-123")
	if err != nil {
		t.Fatalf("UpdateStatus to paid failed: %v", err)
	}
	if paid.PaymentReference != "ref-123" {
		t.Fatalf("expected payment reference recorded, got %q", paid.PaymentReference)
	}
	if len(fx.events.paid) != 1 {
		t.Fatalf("expected one OrderPaid event got %d", len(fx.events.paid))
	}

	if _, err := fx.service.UpdateStatus(context.Background(), order.ID, domain.OrderStatusPending, ""); !errors.Is(err, ErrOrderIllegalTransition) {
		t.Fatalf("expected ErrOrderIllegalTransition got %v", err)
	}
}

func TestGetOrderScopedToUser(t *testing.T) {
	fx := newOrderFixture(t)

	order, err := fx.service.AssembleOrder(context.Background(), assembleCommand())
	if err != nil {
		t.Fatalf("AssembleOrder failed: %v", err)
	}

	if _, err := fx.service.GetOrder(context.Background(), "user-2", order.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for foreign user got %v", err)
	}
	got, err := fx.service.GetOrder(context.Background(), "user-1", order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.ID != order.ID {
		t.Fatalf("expected order %s got %s", order.ID, got.ID)
	}
}
