package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/payments"
	"github.com/adomherbals/api/internal/repositories"
)

var (
	// ErrVerificationMissingReference indicates the verification route was
	// hit without a payment reference or order id. No gateway call is made.
	ErrVerificationMissingReference = errors.New("verification: missing payment reference")
	// ErrVerificationUnavailable indicates verification dependencies are
	// currently unavailable.
	ErrVerificationUnavailable = errors.New("verification: unavailable")
)

// MissingReferenceMessage is the user-facing text for a verification attempt
// without a reference.
const MissingReferenceMessage = "Missing payment reference"

// paymentVerifier abstracts payments.Manager for easier testing.
type paymentVerifier interface {
	Verify(ctx context.Context, paymentCtx payments.PaymentContext, reference string) (payments.VerifyResult, error)
}

// VerificationServiceDeps wires the dependencies required by the verification service.
type VerificationServiceDeps struct {
	Orders   OrderService
	Carts    repositories.CartRepository
	Payments paymentVerifier
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type verificationService struct {
	orders   OrderService
	carts    repositories.CartRepository
	payments paymentVerifier
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewVerificationService constructs a VerificationService validating required dependencies.
func NewVerificationService(deps VerificationServiceDeps) (VerificationService, error) {
	if deps.Orders == nil {
		return nil, errors.New("verification service: order service is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("verification service: cart repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("verification service: payment manager is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &verificationService{
		orders:   deps.Orders,
		carts:    deps.Carts,
		payments: deps.Payments,
		logger:   logger,
	}, nil
}

// VerifyPayment resolves the reference with the processor and finalises the
// order. Settlement and order-status persistence are reported separately: a
// transient persistence failure never hides a real payment success.
func (s *verificationService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (VerificationResult, error) {
	reference := strings.TrimSpace(cmd.Reference)
	if reference == "" {
		reference = strings.TrimSpace(cmd.TrxRef)
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if reference == "" || orderID == "" {
		return VerificationResult{}, ErrVerificationMissingReference
	}

	order, err := s.orders.GetOrder(ctx, cmd.UserID, orderID)
	if err != nil {
		return VerificationResult{}, err
	}

	verified, err := s.payments.Verify(ctx, payments.PaymentContext{Method: string(order.Payment.Method)}, reference)
	if err != nil {
		s.logger(ctx, "verification.gateway_failed", map[string]any{
			"orderID":   orderID,
			"reference": reference,
			"error":     err.Error(),
		})
		return VerificationResult{}, err
	}

	result := VerificationResult{
		OrderID:        orderID,
		Reference:      reference,
		PaymentSettled: verified.Settled,
		OrderStatus:    order.Status,
		GatewayMessage: verified.GatewayMessage,
	}

	if !verified.Settled {
		// The cart stays intact so the customer can return to checkout.
		return result, nil
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusPaid, reference)
	if err != nil {
		// The payment settled; surface that even though the status write
		// failed. The order stays pending until a later reconciliation.
		s.logger(ctx, "verification.status_update_failed", map[string]any{
			"orderID":   orderID,
			"reference": reference,
			"error":     err.Error(),
		})
	} else {
		result.OrderStatusPersisted = true
		result.OrderStatus = updated.Status
	}

	if err := s.carts.Clear(ctx, cmd.UserID); err != nil {
		s.logger(ctx, "verification.cart_clear_failed", map[string]any{
			"orderID": orderID,
			"userID":  cmd.UserID,
			"error":   err.Error(),
		})
	}
	return result, nil
}
