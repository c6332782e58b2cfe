// Package services contains the checkout domain services: shipping quote
// calculation, the multi-step checkout session flow, order assembly, and
// post-redirect payment verification.
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	domain "github.com/adomherbals/api/internal/domain"
)

// ShippingForm is the shipping-step input collected from the customer.
type ShippingForm struct {
	Name       string
	Email      string
	Phone      string
	Street     string
	City       string
	Region     string
	PostalCode string
	Country    string
	Method     domain.DeliveryMethod
}

// PaymentForm is the payment-step input. Card number, expiry, and CVV are
// validated for presence and then discarded; only the holder name is kept
// locally because the PAN is entered again inside the gateway widget.
type PaymentForm struct {
	Method       string
	CardNumber   string
	CardExpiry   string
	CardCVV      string
	CardHolder   string
	MomoProvider string
	MomoNumber   string
}

// CheckoutState enumerates the steps of one checkout session.
type CheckoutState string

const (
	// StateShippingInfo collects the destination address and delivery method.
	StateShippingInfo CheckoutState = "shipping_info"
	// StatePaymentInfo collects the payment method and its fields.
	StatePaymentInfo CheckoutState = "payment_info"
	// StateReviewOrder shows the assembled totals ahead of submission.
	StateReviewOrder CheckoutState = "review_order"
	// StateSubmitting covers the order-creation and payment-init calls.
	StateSubmitting CheckoutState = "submitting"
	// StateSucceeded is terminal: the order exists and any gateway handoff
	// has been issued. Settlement may still be pending out-of-band.
	StateSucceeded CheckoutState = "succeeded"
	// StateFailed is terminal for an abandoned session; a failed submission
	// returns to review instead so the customer can retry.
	StateFailed CheckoutState = "failed"
)

// CheckoutSession is one pass through the checkout flow, from entry to a
// terminal state. Field values survive backward navigation.
type CheckoutSession struct {
	ID               string
	UserID           string
	State            CheckoutState
	Cart             domain.CartSnapshot
	Shipping         ShippingForm
	Quote            *domain.ShippingQuote
	Payment          domain.PaymentDetails
	IdempotencyToken string
	OrderID          string
	PaymentReference string
	AuthorizationURL string
	Instructions     string
	FailureMessage   string
}

// SubmitOutcome reports the result of the review-step submission.
type SubmitOutcome struct {
	Session CheckoutSession
	Order   domain.Order
}

// CheckoutService drives the checkout session state machine.
type CheckoutService interface {
	StartSession(ctx context.Context, userID string) (CheckoutSession, error)
	GetSession(ctx context.Context, sessionID, userID string) (CheckoutSession, error)
	SubmitShipping(ctx context.Context, sessionID, userID string, form ShippingForm) (CheckoutSession, error)
	SubmitPayment(ctx context.Context, sessionID, userID string, form PaymentForm) (CheckoutSession, error)
	Back(ctx context.Context, sessionID, userID string) (CheckoutSession, error)
	Submit(ctx context.Context, sessionID, userID string) (SubmitOutcome, error)
	Cancel(ctx context.Context, sessionID, userID string) (CheckoutSession, error)
}

// ShippingCalculator produces shipping quotes for supported regions.
type ShippingCalculator interface {
	Calculate(address domain.Address, items []domain.CartItem, method domain.DeliveryMethod) (domain.ShippingQuote, error)
}

// AssembleOrderCommand carries the validated checkout state into order
// assembly. Prices on cart items are advisory; the catalog is authoritative.
type AssembleOrderCommand struct {
	UserID           string
	Cart             domain.CartSnapshot
	Shipping         ShippingForm
	Payment          domain.PaymentDetails
	Quote            domain.ShippingQuote
	IdempotencyToken string
}

// OrderService assembles and exposes persisted orders.
type OrderService interface {
	AssembleOrder(ctx context.Context, cmd AssembleOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentReference string) (domain.Order, error)
}

// VerifyPaymentCommand is the post-redirect verification input. Reference and
// TrxRef are interchangeable; the processor sends both names.
type VerifyPaymentCommand struct {
	UserID    string
	OrderID   string
	Reference string
	TrxRef    string
}

// VerificationResult keeps settlement and persistence as separate outcomes:
// a real payment success is reported even when the follow-up order status
// write fails transiently.
type VerificationResult struct {
	OrderID              string
	Reference            string
	PaymentSettled       bool
	OrderStatusPersisted bool
	OrderStatus          domain.OrderStatus
	GatewayMessage       string
}

// VerificationService resolves a payment reference into a settlement outcome
// and finalises the order.
type VerificationService interface {
	VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (VerificationResult, error)
}

// ValidationError reports field-level failures that block a step transition.
// It is recovered locally and shown inline, never treated as a system fault.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "services: validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	return fmt.Sprintf("services: validation failed: %s", strings.Join(names, ", "))
}

func newValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
