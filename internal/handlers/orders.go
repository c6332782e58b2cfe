package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/platform/httpx"
	"github.com/adomherbals/api/internal/services"
)

const defaultOrderListLimit = 20

// OrderHandlers exposes read access to the caller's orders.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs order handlers over the order service.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderId}", h.getOrder)
}

type orderLinePayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

type orderAddressPayload struct {
	Recipient  string `json:"recipient"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

type orderResponse struct {
	OrderID          string              `json:"orderId"`
	Status           string              `json:"status"`
	Currency         string              `json:"currency"`
	Items            []orderLinePayload  `json:"items"`
	ShippingAddress  orderAddressPayload `json:"shippingAddress"`
	ShippingMethod   string              `json:"shippingMethod"`
	ShippingCost     float64             `json:"shippingCost"`
	Subtotal         float64             `json:"subtotal"`
	Tax              float64             `json:"tax"`
	Total            float64             `json:"total"`
	PaymentMethod    string              `json:"paymentMethod"`
	PaymentReference string              `json:"paymentReference,omitempty"`
	CreatedAt        string              `json:"createdAt"`
	PaidAt           string              `json:"paidAt,omitempty"`
}

func orderPayload(order domain.Order) orderResponse {
	payload := orderResponse{
		OrderID:  order.ID,
		Status:   string(order.Status),
		Currency: order.Currency,
		ShippingAddress: orderAddressPayload{
			Recipient:  order.ShippingAddress.Recipient,
			Street:     order.ShippingAddress.Street,
			City:       order.ShippingAddress.City,
			Region:     string(order.ShippingAddress.Region),
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		ShippingMethod:   string(order.ShippingMethod),
		ShippingCost:     order.ShippingCost,
		Subtotal:         order.Subtotal,
		Tax:              order.Tax,
		Total:            order.Total,
		PaymentMethod:    string(order.Payment.Method),
		PaymentReference: order.PaymentReference,
		CreatedAt:        order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.PaidAt != nil {
		payload.PaidAt = order.PaidAt.UTC().Format(time.RFC3339)
	}
	payload.Items = make([]orderLinePayload, 0, len(order.Items))
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderLinePayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total,
		})
	}
	return payload
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	limit := defaultOrderListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	orders, err := h.orders.ListOrders(ctx, userID, limit)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		payload = append(payload, orderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"orders": payload})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := requireUser(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, userID, chi.URLParam(r, "orderId"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderPayload(order))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid order request", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "orders are temporarily unavailable", http.StatusServiceUnavailable))
	}
}
