package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adomherbals/api/internal/payments"
	"github.com/adomherbals/api/internal/platform/httpx"
	"github.com/adomherbals/api/internal/services"
)

// PaymentHandlers serves the post-redirect payment verification endpoint.
type PaymentHandlers struct {
	verification services.VerificationService
	limiter      requestLimiter
}

// PaymentOption customises the payment handlers.
type PaymentOption func(*PaymentHandlers)

// WithVerifyRateLimit caps verification attempts per user within the window.
func WithVerifyRateLimit(limit int, window time.Duration) PaymentOption {
	return func(h *PaymentHandlers) {
		h.limiter = newFixedWindowLimiter(limit, window, nil)
	}
}

// NewPaymentHandlers constructs payment handlers over the verification service.
func NewPaymentHandlers(verification services.VerificationService, opts ...PaymentOption) *PaymentHandlers {
	h := &PaymentHandlers{verification: verification}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers payment endpoints under the provided router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/verify", h.verify)
}

type verifyResponse struct {
	OrderID              string `json:"orderId"`
	PaymentReference     string `json:"paymentReference"`
	PaymentSettled       bool   `json:"paymentSettled"`
	OrderStatusPersisted bool   `json:"orderStatusPersisted"`
	Status               string `json:"status"`
	Message              string `json:"message,omitempty"`
}

func (h *PaymentHandlers) verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(userID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many verification attempts", http.StatusTooManyRequests))
		return
	}

	query := r.URL.Query()
	result, err := h.verification.VerifyPayment(ctx, services.VerifyPaymentCommand{
		UserID:    userID,
		OrderID:   query.Get("orderId"),
		Reference: query.Get("reference"),
		TrxRef:    query.Get("trxref"),
	})
	if err != nil {
		writeVerifyError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, verifyResponse{
		OrderID:              result.OrderID,
		PaymentReference:     result.Reference,
		PaymentSettled:       result.PaymentSettled,
		OrderStatusPersisted: result.OrderStatusPersisted,
		Status:               string(result.OrderStatus),
		Message:              result.GatewayMessage,
	})
}

func writeVerifyError(ctx context.Context, w http.ResponseWriter, err error) {
	var gatewayErr *payments.GatewayError
	switch {
	case errors.Is(err, services.ErrVerificationMissingReference):
		httpx.WriteError(ctx, w, httpx.NewError("missing_reference", services.MissingReferenceMessage, http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.As(err, &gatewayErr):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_error", gatewayErr.Message, http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "payment verification is temporarily unavailable", http.StatusServiceUnavailable))
	}
}
