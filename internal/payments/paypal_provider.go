package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultPayPalBaseURL = "https://api-m.sandbox.paypal.com"

// PayPalProviderConfig configures the PayPalProvider.
type PayPalProviderConfig struct {
	ClientID   string
	Secret     string
	BaseURL    string
	HTTPClient *http.Client
	Clock      func() time.Time
}

// PayPalProvider implements the Provider interface over the PayPal Orders v2
// API. Initialize creates an order and returns the approval link as the
// redirect target; Verify looks the order up and treats COMPLETED as settled.
type PayPalProvider struct {
	clientID string
	secret   string
	baseURL  string
	client   *http.Client
	clock    func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalProvider constructs a PayPal Provider using the given configuration.
func NewPayPalProvider(cfg PayPalProviderConfig) (*PayPalProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errors.New("paypal: client id and secret are required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultPayPalBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &PayPalProvider{
		clientID: clientID,
		secret:   secret,
		baseURL:  baseURL,
		client:   client,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	Amount      paypalAmount `json:"amount"`
}

type paypalOrderRequest struct {
	Intent             string               `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit `json:"purchase_units"`
	ApplicationContext *paypalAppContext    `json:"application_context,omitempty"`
}

type paypalAppContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	Links         []paypalLink         `json:"links"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Initialize creates a PayPal order in CAPTURE intent and returns the
// approval link. The minor-unit amount is rendered back to a decimal string
// because the Orders API expects major units.
func (p *PayPalProvider) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	if p == nil {
		return InitializeResult{}, errors.New("paypal: provider is nil")
	}
	if req.AmountMinor <= 0 {
		return InitializeResult{}, errors.New("paypal: amount must be positive")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	payload := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{
			{
				ReferenceID: strings.TrimSpace(req.Reference),
				Amount: paypalAmount{
					CurrencyCode: currency,
					Value:        fmt.Sprintf("%d.%02d", req.AmountMinor/100, req.AmountMinor%100),
				},
			},
		},
	}
	if callback := strings.TrimSpace(req.CallbackURL); callback != "" {
		payload.ApplicationContext = &paypalAppContext{ReturnURL: callback, CancelURL: callback}
	}

	var order paypalOrder
	if err := p.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order); err != nil {
		return InitializeResult{}, err
	}

	approval := ""
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			approval = link.Href
			break
		}
	}

	return InitializeResult{
		Reference:        order.ID,
		Provider:         "paypal",
		AuthorizationURL: approval,
	}, nil
}

// Verify looks up the PayPal order identified by the reference.
func (p *PayPalProvider) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	if p == nil {
		return VerifyResult{}, errors.New("paypal: provider is nil")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyResult{}, errors.New("paypal: reference is required")
	}

	var order paypalOrder
	if err := p.do(ctx, http.MethodGet, "/v2/checkout/orders/"+reference, nil, &order); err != nil {
		return VerifyResult{}, err
	}

	status := StatusPending
	switch strings.ToUpper(order.Status) {
	case "COMPLETED":
		status = StatusSettled
	case "VOIDED":
		status = StatusFailed
	}

	return VerifyResult{
		Reference:      order.ID,
		Provider:       "paypal",
		Settled:        status == StatusSettled,
		Status:         status,
		GatewayMessage: order.Status,
	}, nil
}

func (p *PayPalProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && p.clock().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal: build token request: %w", err)
	}
	req.SetBasicAuth(p.clientID, p.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &GatewayError{Provider: "paypal", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &GatewayError{Provider: "paypal", Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &GatewayError{
			Provider: "paypal",
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  "could not authenticate with payment gateway",
		}
	}

	var token paypalTokenResponse
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", &GatewayError{Provider: "paypal", Message: "malformed token response"}
	}

	p.accessToken = token.AccessToken
	p.tokenExpiry = p.clock().Add(time.Duration(token.ExpiresIn) * time.Second).Add(-time.Minute)
	return p.accessToken, nil
}

func (p *PayPalProvider) do(ctx context.Context, method, path string, payload, out any) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("paypal: marshal request: %w", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &GatewayError{Provider: "paypal", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &GatewayError{Provider: "paypal", Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{
			Provider: "paypal",
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  http.StatusText(resp.StatusCode),
		}
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return &GatewayError{Provider: "paypal", Message: "malformed gateway payload"}
		}
	}
	return nil
}
