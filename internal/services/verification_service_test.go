package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/payments"
	"github.com/adomherbals/api/internal/repositories/memory"
)

type stubVerifier struct {
	calls  int
	result payments.VerifyResult
	err    error
}

func (s *stubVerifier) Verify(_ context.Context, _ payments.PaymentContext, reference string) (payments.VerifyResult, error) {
	s.calls++
	if s.err != nil {
		return payments.VerifyResult{}, s.err
	}
	result := s.result
	result.Reference = reference
	return result, nil
}

type stubOrders struct {
	OrderService
	order     domain.Order
	updateErr error
	updated   *domain.Order
}

func (s *stubOrders) GetOrder(_ context.Context, userID, orderID string) (domain.Order, error) {
	if s.order.ID != orderID || s.order.UserID != userID {
		return domain.Order{}, ErrOrderNotFound
	}
	return s.order, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus, paymentReference string) (domain.Order, error) {
	if s.updateErr != nil {
		return domain.Order{}, s.updateErr
	}
	order := s.order
	order.Status = status
	order.PaymentReference = paymentReference
	s.updated = &order
	return order, nil
}

type verificationFixture struct {
	service  VerificationService
	carts    *memory.CartRepository
	verifier *stubVerifier
	orders   *stubOrders
}

func newVerificationFixture(t *testing.T) verificationFixture {
	t.Helper()

	carts := memory.NewCartRepository()
	carts.Put(domain.CartSnapshot{
		ID:     "cart-1",
		UserID: "user-1",
		Items:  []domain.CartItem{{ProductID: "prd-moringa", Quantity: 1, UnitPrice: 45.00}},
	})

	orders := &stubOrders{order: domain.Order{
		ID:      "ord-1",
		UserID:  "user-1",
		Status:  domain.OrderStatusPending,
		Payment: domain.PaymentDetails{Method: domain.PaymentMethodCard, Card: &domain.CardDetails{HolderName: "Akosua Mensah"}},
		Total:   132.75,
	}}
	verifier := &stubVerifier{result: payments.VerifyResult{Settled: true, Status: payments.StatusSettled}}

	service, err := NewVerificationService(VerificationServiceDeps{
		Orders:   orders,
		Carts:    carts,
		Payments: verifier,
	})
	if err != nil {
		t.Fatalf("NewVerificationService failed: %v", err)
	}
	return verificationFixture{service: service, carts: carts, verifier: verifier, orders: orders}
}

func TestVerifyPaymentMissingReference(t *testing.T) {
	fx := newVerificationFixture(t)

	cases := []VerifyPaymentCommand{
		{UserID: "user-1", OrderID: "ord-1"},
		{UserID: "user-1", Reference: "ref-1"},
		{UserID: "user-1"},
	}
	for _, cmd := range cases {
		if _, err := fx.service.VerifyPayment(context.Background(), cmd); !errors.Is(err, ErrVerificationMissingReference) {
			t.Fatalf("expected ErrVerificationMissingReference for %+v got %v", cmd, err)
		}
	}
	if fx.verifier.calls != 0 {
		t.Fatalf("missing reference must not reach the gateway, got %d calls", fx.verifier.calls)
	}
}

func TestVerifyPaymentSettledFinalisesOrder(t *testing.T) {
	fx := newVerificationFixture(t)

	result, err := fx.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID: "user-1", OrderID: "ord-1", Reference: "ref-1",
	})
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if !result.PaymentSettled || !result.OrderStatusPersisted {
		t.Fatalf("expected settled and persisted, got %+v", result)
	}
	if result.OrderStatus != domain.OrderStatusPaid {
		t.Fatalf("expected paid status got %s", result.OrderStatus)
	}
	if fx.orders.updated == nil || fx.orders.updated.PaymentReference != "ref-1" {
		t.Fatalf("expected reference recorded on order, got %+v", fx.orders.updated)
	}
	if fx.carts.Has("user-1") {
		t.Fatal("expected cart cleared after settlement")
	}
}

func TestVerifyPaymentTrxRefAccepted(t *testing.T) {
	fx := newVerificationFixture(t)

	result, err := fx.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID: "user-1", OrderID: "ord-1", TrxRef: "ref-trx",
	})
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if result.Reference != "ref-trx" {
		t.Fatalf("expected trxref used, got %q", result.Reference)
	}
}

func TestVerifyPaymentPersistenceFailureStillReportsSettlement(t *testing.T) {
	fx := newVerificationFixture(t)
	fx.orders.updateErr = ErrOrderUnavailable

	result, err := fx.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID: "user-1", OrderID: "ord-1", Reference: "ref-1",
	})
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if !result.PaymentSettled {
		t.Fatal("settlement must be reported despite persistence failure")
	}
	if result.OrderStatusPersisted {
		t.Fatal("persistence must be reported as pending")
	}
	if result.OrderStatus != domain.OrderStatusPending {
		t.Fatalf("expected pending status got %s", result.OrderStatus)
	}
}

func TestVerifyPaymentFailureLeavesCart(t *testing.T) {
	fx := newVerificationFixture(t)
	fx.verifier.result = payments.VerifyResult{Settled: false, Status: payments.StatusFailed, GatewayMessage: "Declined"}

	result, err := fx.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID: "user-1", OrderID: "ord-1", Reference: "ref-1",
	})
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if result.PaymentSettled {
		t.Fatal("expected unsettled result")
	}
	if result.GatewayMessage != "Declined" {
		t.Fatalf("expected verbatim gateway message got %q", result.GatewayMessage)
	}
	if !fx.carts.Has("user-1") {
		t.Fatal("cart must survive a failed verification")
	}
}

func TestVerifyPaymentRepeatedCallsAgree(t *testing.T) {
	fx := newVerificationFixture(t)

	first, err := fx.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID: "user-1", OrderID: "ord-1", Reference: "ref-1",
	})
	if err != nil {
		t.Fatalf("first VerifyPayment failed: %v", err)
	}
	second, err := fx.service.VerifyPayment(context.Background(), VerifyPaymentCommand{
		UserID: "user-1", OrderID: "ord-1", Reference: "ref-1",
	})
	if err != nil {
		t.Fatalf("second VerifyPayment failed: %v", err)
	}
	if first.PaymentSettled != second.PaymentSettled {
		t.Fatalf("settlement outcome changed between calls: %v vs %v", first.PaymentSettled, second.PaymentSettled)
	}
	if fx.verifier.calls != 2 {
		t.Fatalf("expected verify relayed on every call, got %d", fx.verifier.calls)
	}
}
