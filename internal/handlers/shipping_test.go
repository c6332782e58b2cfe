package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adomherbals/api/internal/services"
)

func newShippingTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handlers := NewShippingHandlers(services.NewShippingCalculator(services.ShippingRates{}))
	router := NewRouter(WithShippingRoutes(handlers.Routes))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestShippingHandlersListRegions(t *testing.T) {
	server := newShippingTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/shipping/regions")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		Regions []struct {
			Code             string `json:"code"`
			Name             string `json:"name"`
			ExpressAvailable bool   `json:"expressAvailable"`
		} `json:"regions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(body.Regions) != 16 {
		t.Fatalf("expected 16 regions, got %d", len(body.Regions))
	}
	for i := 1; i < len(body.Regions); i++ {
		if body.Regions[i-1].Name > body.Regions[i].Name {
			t.Fatalf("regions not sorted by name: %s before %s", body.Regions[i-1].Name, body.Regions[i].Name)
		}
	}
}

func TestShippingHandlersQuote(t *testing.T) {
	server := newShippingTestServer(t)

	payload := `{
		"address": {"street": "12 Oxford St", "city": "Accra", "region": "greater-accra", "country": "GH"},
		"items": [{"id": "prd-moringa", "weight": 0.4, "quantity": 2}],
		"method": "standard"
	}`

	resp, err := http.Post(server.URL+"/api/v1/shipping/quote", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Total != 12.75 {
		t.Fatalf("expected total 12.75, got %.2f", body.Total)
	}
	if body.EstimatedDays != "3-5 business days" {
		t.Fatalf("unexpected ETA %q", body.EstimatedDays)
	}
}

func TestShippingHandlersQuoteUnsupportedRegion(t *testing.T) {
	server := newShippingTestServer(t)

	payload := `{"address": {"region": "ouagadougou"}, "items": [], "method": "standard"}`

	resp, err := http.Post(server.URL+"/api/v1/shipping/quote", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "unsupported_region" {
		t.Fatalf("expected unsupported_region, got %v", body["error"])
	}
}

func TestShippingHandlersQuoteExpressUnavailable(t *testing.T) {
	server := newShippingTestServer(t)

	payload := `{"address": {"region": "northern"}, "items": [{"id": "prd-neem", "weight": 1, "quantity": 1}], "method": "express"}`

	resp, err := http.Post(server.URL+"/api/v1/shipping/quote", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["error"] != "method_unavailable" {
		t.Fatalf("expected method_unavailable, got %v", body["error"])
	}
}

func TestShippingHandlersQuoteRejectsUnknownMethod(t *testing.T) {
	server := newShippingTestServer(t)

	payload := `{"address": {"region": "ashanti"}, "items": [], "method": "drone"}`

	resp, err := http.Post(server.URL+"/api/v1/shipping/quote", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}
