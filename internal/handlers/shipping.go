package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/platform/httpx"
	"github.com/adomherbals/api/internal/services"
)

const maxShippingRequestBody = 16 * 1024

// ShippingHandlers exposes the region table and shipping quote endpoints.
type ShippingHandlers struct {
	calculator services.ShippingCalculator
}

// NewShippingHandlers constructs shipping handlers over the calculator.
func NewShippingHandlers(calculator services.ShippingCalculator) *ShippingHandlers {
	return &ShippingHandlers{calculator: calculator}
}

// Routes registers shipping endpoints under the provided router.
func (h *ShippingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/regions", h.listRegions)
	r.Post("/quote", h.quote)
}

type regionResponse struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	ExpressAvailable bool   `json:"expressAvailable"`
}

type quoteRequest struct {
	Address struct {
		Street     string `json:"street"`
		City       string `json:"city"`
		Region     string `json:"region"`
		PostalCode string `json:"postalCode"`
		Country    string `json:"country"`
	} `json:"address"`
	Items []struct {
		ID       string  `json:"id"`
		Weight   float64 `json:"weight"`
		Quantity int     `json:"quantity"`
	} `json:"items"`
	Method string `json:"method"`
}

type quoteResponse struct {
	BaseRate         float64 `json:"baseRate"`
	DistanceRate     float64 `json:"distanceRate"`
	WeightRate       float64 `json:"weightRate"`
	MethodMultiplier float64 `json:"methodMultiplier"`
	Total            float64 `json:"total"`
	EstimatedDays    string  `json:"estimatedDays"`
	Method           string  `json:"method"`
}

func (h *ShippingHandlers) listRegions(w http.ResponseWriter, _ *http.Request) {
	regions := domain.Regions()
	payload := make([]regionResponse, 0, len(regions))
	for _, region := range regions {
		payload = append(payload, regionResponse{
			Code:             string(region.Code),
			Name:             region.Name,
			ExpressAvailable: region.ExpressAvailable,
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"regions": payload})
}

func (h *ShippingHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.calculator == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_unavailable", "shipping calculator unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxShippingRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req quoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	method := domain.DeliveryStandard
	if req.Method != "" {
		parsed, ok := domain.ParseDeliveryMethod(req.Method)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "method must be standard or express", http.StatusBadRequest))
			return
		}
		method = parsed
	}

	items := make([]domain.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.CartItem{
			ProductID:    item.ID,
			Quantity:     item.Quantity,
			UnitWeightKg: item.Weight,
		})
	}

	quote, err := h.calculator.Calculate(domain.Address{
		Street:     req.Address.Street,
		City:       req.Address.City,
		Region:     domain.RegionCode(req.Address.Region),
		PostalCode: req.Address.PostalCode,
		Country:    req.Address.Country,
	}, items, method)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnsupportedRegion):
			httpx.WriteError(ctx, w, httpx.NewError("unsupported_region", "shipping is not available for this region", http.StatusUnprocessableEntity))
		case errors.Is(err, services.ErrMethodUnavailable):
			httpx.WriteError(ctx, w, httpx.NewError("method_unavailable", "express delivery is not available for this region", http.StatusUnprocessableEntity))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("shipping_error", "unable to compute shipping quote", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, quoteResponse{
		BaseRate:         quote.BaseRate,
		DistanceRate:     quote.DistanceRate,
		WeightRate:       quote.WeightRate,
		MethodMultiplier: quote.MethodMultiplier,
		Total:            quote.Total,
		EstimatedDays:    quote.EstimatedDays,
		Method:           string(quote.Method),
	})
}
