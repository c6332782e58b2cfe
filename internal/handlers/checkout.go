package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/platform/httpx"
	"github.com/adomherbals/api/internal/platform/identity"
	"github.com/adomherbals/api/internal/services"
)

const maxCheckoutRequestBody = 8 * 1024

// CheckoutHandlers exposes the checkout session flow for authenticated users.
type CheckoutHandlers struct {
	checkout          services.CheckoutService
	submitMiddlewares []func(http.Handler) http.Handler
}

// CheckoutOption customises checkout handler behaviour.
type CheckoutOption func(*CheckoutHandlers)

// WithSubmitMiddlewares wraps only the submit route. The other session
// endpoints are header-free; submit is the one mutating call that warrants
// an idempotency guard.
func WithSubmitMiddlewares(mw ...func(http.Handler) http.Handler) CheckoutOption {
	return func(h *CheckoutHandlers) {
		for _, m := range mw {
			if m != nil {
				h.submitMiddlewares = append(h.submitMiddlewares, m)
			}
		}
	}
}

// NewCheckoutHandlers constructs checkout handlers over the session service.
func NewCheckoutHandlers(checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{checkout: checkout}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/sessions", h.startSession)
	r.Get("/sessions/{sessionId}", h.getSession)
	r.Post("/sessions/{sessionId}/shipping", h.submitShipping)
	r.Post("/sessions/{sessionId}/payment", h.submitPayment)
	r.Post("/sessions/{sessionId}/back", h.back)
	r.With(h.submitMiddlewares...).Post("/sessions/{sessionId}/submit", h.submit)
	r.Post("/sessions/{sessionId}/cancel", h.cancel)
}

type shippingFormRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode"`
	Method     string `json:"method"`
}

type paymentFormRequest struct {
	Method       string `json:"method"`
	CardNumber   string `json:"cardNumber"`
	CardExpiry   string `json:"cardExpiry"`
	CardCVV      string `json:"cardCvv"`
	CardHolder   string `json:"cardHolder"`
	MomoProvider string `json:"momoProvider"`
	MomoNumber   string `json:"momoNumber"`
}

type quotePayload struct {
	BaseRate         float64 `json:"baseRate"`
	DistanceRate     float64 `json:"distanceRate"`
	WeightRate       float64 `json:"weightRate"`
	MethodMultiplier float64 `json:"methodMultiplier"`
	Total            float64 `json:"total"`
	EstimatedDays    string  `json:"estimatedDays"`
	Method           string  `json:"method"`
}

type sessionResponse struct {
	SessionID        string            `json:"sessionId"`
	State            string            `json:"state"`
	Shipping         *shippingPayload  `json:"shipping,omitempty"`
	Quote            *quotePayload     `json:"quote,omitempty"`
	PaymentMethod    string            `json:"paymentMethod,omitempty"`
	OrderID          string            `json:"orderId,omitempty"`
	PaymentReference string            `json:"paymentReference,omitempty"`
	AuthorizationURL string            `json:"authorizationUrl,omitempty"`
	Instructions     string            `json:"instructions,omitempty"`
	FailureMessage   string            `json:"failureMessage,omitempty"`
	Cart             []cartLinePayload `json:"cart,omitempty"`
}

type shippingPayload struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode,omitempty"`
	Method     string `json:"method"`
}

type cartLinePayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

func sessionPayload(session services.CheckoutSession) sessionResponse {
	payload := sessionResponse{
		SessionID:        session.ID,
		State:            string(session.State),
		OrderID:          session.OrderID,
		PaymentReference: session.PaymentReference,
		AuthorizationURL: session.AuthorizationURL,
		Instructions:     session.Instructions,
		FailureMessage:   session.FailureMessage,
		PaymentMethod:    string(session.Payment.Method),
	}
	if session.Shipping.Name != "" || session.Shipping.Street != "" {
		payload.Shipping = &shippingPayload{
			Name:       session.Shipping.Name,
			Email:      session.Shipping.Email,
			Phone:      session.Shipping.Phone,
			Street:     session.Shipping.Street,
			City:       session.Shipping.City,
			Region:     session.Shipping.Region,
			PostalCode: session.Shipping.PostalCode,
			Method:     string(session.Shipping.Method),
		}
	}
	if session.Quote != nil {
		payload.Quote = &quotePayload{
			BaseRate:         session.Quote.BaseRate,
			DistanceRate:     session.Quote.DistanceRate,
			WeightRate:       session.Quote.WeightRate,
			MethodMultiplier: session.Quote.MethodMultiplier,
			Total:            session.Quote.Total,
			EstimatedDays:    session.Quote.EstimatedDays,
			Method:           string(session.Quote.Method),
		}
	}
	for _, item := range session.Cart.Items {
		payload.Cart = append(payload.Cart, cartLinePayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return payload
}

func (h *CheckoutHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	session, err := h.checkout.StartSession(ctx, userID)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, sessionPayload(session))
}

func (h *CheckoutHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	session, err := h.checkout.GetSession(ctx, chi.URLParam(r, "sessionId"), userID)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(session))
}

func (h *CheckoutHandlers) submitShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	var req shippingFormRequest
	if !decodeCheckoutBody(ctx, w, r, &req) {
		return
	}

	form := services.ShippingForm{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Street:     req.Street,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Method:     domain.DeliveryMethod(strings.ToLower(strings.TrimSpace(req.Method))),
	}

	session, err := h.checkout.SubmitShipping(ctx, chi.URLParam(r, "sessionId"), userID, form)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(session))
}

func (h *CheckoutHandlers) submitPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	var req paymentFormRequest
	if !decodeCheckoutBody(ctx, w, r, &req) {
		return
	}

	session, err := h.checkout.SubmitPayment(ctx, chi.URLParam(r, "sessionId"), userID, services.PaymentForm{
		Method:       req.Method,
		CardNumber:   req.CardNumber,
		CardExpiry:   req.CardExpiry,
		CardCVV:      req.CardCVV,
		CardHolder:   req.CardHolder,
		MomoProvider: req.MomoProvider,
		MomoNumber:   req.MomoNumber,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(session))
}

func (h *CheckoutHandlers) back(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	session, err := h.checkout.Back(ctx, chi.URLParam(r, "sessionId"), userID)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(session))
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	outcome, err := h.checkout.Submit(ctx, chi.URLParam(r, "sessionId"), userID)
	if err != nil {
		if errors.Is(err, services.ErrCheckoutSubmissionFailed) {
			// The session payload carries the failure message and retains
			// the created order for retry.
			writeJSONResponse(w, http.StatusBadGateway, sessionPayload(outcome.Session))
			return
		}
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(outcome.Session))
}

func (h *CheckoutHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	session, err := h.checkout.Cancel(ctx, chi.URLParam(r, "sessionId"), userID)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionPayload(session))
}

func requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	userID, ok := identity.UserID(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return userID, true
}

func decodeCheckoutBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return false
	}
	if len(body) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		details := make(map[string]any, len(validationErr.Fields))
		for field, message := range validationErr.Fields {
			details[field] = message
		}
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", "one or more fields are invalid", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"fields": details}))
	case errors.Is(err, services.ErrCheckoutSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "checkout session not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCheckoutCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no items to check out", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_state", "operation not allowed in the current checkout step", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutSubmitInFlight):
		httpx.WriteError(ctx, w, httpx.NewError("submit_in_flight", "a submission is already being processed", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid checkout input", http.StatusBadRequest))
	case errors.Is(err, services.ErrUnsupportedRegion):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_region", "shipping is not available for this region", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrMethodUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("method_unavailable", "express delivery is not available for this region", http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout is temporarily unavailable", http.StatusServiceUnavailable))
	}
}
