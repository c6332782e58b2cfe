package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultPaystackBaseURL = "https://api.paystack.co"

// PaystackLogger defines the logging contract for Paystack provider operations.
type PaystackLogger func(ctx context.Context, event string, fields map[string]any)

// PaystackProviderConfig configures the PaystackProvider.
type PaystackProviderConfig struct {
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	Logger     PaystackLogger
	Clock      func() time.Time
}

// PaystackProvider implements the Provider interface against the Paystack
// REST API. Card payments go through transaction initialize and hand off to
// the hosted widget; mobile money goes through the charge endpoint and
// returns display instructions instead.
type PaystackProvider struct {
	secretKey string
	baseURL   string
	client    *http.Client
	clock     func() time.Time
	logger    PaystackLogger
}

// NewPaystackProvider constructs a Paystack Provider using the given configuration.
func NewPaystackProvider(cfg PaystackProviderConfig) (*PaystackProvider, error) {
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errors.New("paystack: secret key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultPaystackBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &PaystackProvider{
		secretKey: secret,
		baseURL:   baseURL,
		client:    client,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

type paystackInitializePayload struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Channels    []string          `json:"channels,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paystackChargePayload struct {
	Email       string               `json:"email"`
	Amount      int64                `json:"amount"`
	Currency    string               `json:"currency,omitempty"`
	Reference   string               `json:"reference,omitempty"`
	Metadata    map[string]string    `json:"metadata,omitempty"`
	MobileMoney *paystackMobileMoney `json:"mobile_money,omitempty"`
}

type paystackMobileMoney struct {
	Phone    string `json:"phone"`
	Provider string `json:"provider"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackChargeData struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	DisplayText string `json:"display_text"`
}

type paystackVerifyData struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	GatewayResponse string `json:"gateway_response"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// Initialize opens a payment intent with Paystack. Amounts must already be
// in minor units.
func (p *PaystackProvider) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	if p == nil {
		return InitializeResult{}, errors.New("paystack: provider is nil")
	}
	if req.AmountMinor <= 0 {
		return InitializeResult{}, errors.New("paystack: amount must be positive")
	}
	if strings.TrimSpace(req.Email) == "" {
		return InitializeResult{}, errors.New("paystack: payer email is required")
	}

	if req.MobileMoney != nil {
		return p.initializeMobileMoney(ctx, req)
	}
	return p.initializeRedirect(ctx, req)
}

func (p *PaystackProvider) initializeRedirect(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	payload := paystackInitializePayload{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Reference:   strings.TrimSpace(req.Reference),
		CallbackURL: strings.TrimSpace(req.CallbackURL),
		Channels:    req.Channels,
		Metadata:    req.Metadata,
	}

	var data paystackInitializeData
	if err := p.post(ctx, "/transaction/initialize", payload, &data); err != nil {
		return InitializeResult{}, err
	}

	p.logger(ctx, "payments.paystack.initialized", map[string]any{
		"reference": data.Reference,
		"amount":    req.AmountMinor,
		"currency":  payload.Currency,
	})

	return InitializeResult{
		Reference:        data.Reference,
		Provider:         "paystack",
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

func (p *PaystackProvider) initializeMobileMoney(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	payload := paystackChargePayload{
		Email:     req.Email,
		Amount:    req.AmountMinor,
		Currency:  strings.ToUpper(strings.TrimSpace(req.Currency)),
		Reference: strings.TrimSpace(req.Reference),
		Metadata:  req.Metadata,
		MobileMoney: &paystackMobileMoney{
			Phone:    req.MobileMoney.Number,
			Provider: req.MobileMoney.Provider,
		},
	}

	var data paystackChargeData
	if err := p.post(ctx, "/charge", payload, &data); err != nil {
		return InitializeResult{}, err
	}

	instructions := strings.TrimSpace(data.DisplayText)
	if instructions == "" {
		instructions = "Approve the payment prompt sent to your mobile money wallet."
	}

	p.logger(ctx, "payments.paystack.charge_created", map[string]any{
		"reference": data.Reference,
		"status":    data.Status,
	})

	return InitializeResult{
		Reference:    data.Reference,
		Provider:     "paystack",
		Instructions: instructions,
	}, nil
}

// Verify fetches the settlement outcome for a reference. The call simply
// relays the processor's answer, so repeated calls stay consistent.
func (p *PaystackProvider) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	if p == nil {
		return VerifyResult{}, errors.New("paystack: provider is nil")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyResult{}, errors.New("paystack: reference is required")
	}

	var data paystackVerifyData
	if err := p.get(ctx, "/transaction/verify/"+reference, &data); err != nil {
		return VerifyResult{}, err
	}

	status := StatusPending
	switch strings.ToLower(data.Status) {
	case "success":
		status = StatusSettled
	case "failed", "abandoned", "reversed":
		status = StatusFailed
	}

	message := strings.TrimSpace(data.GatewayResponse)
	if message == "" {
		message = data.Status
	}

	p.logger(ctx, "payments.paystack.verified", map[string]any{
		"reference": reference,
		"status":    data.Status,
	})

	return VerifyResult{
		Reference:      data.Reference,
		Provider:       "paystack",
		Settled:        status == StatusSettled,
		Status:         status,
		GatewayMessage: message,
		AmountMinor:    data.Amount,
		Currency:       strings.ToUpper(data.Currency),
	}, nil
}

func (p *PaystackProvider) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("paystack: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *PaystackProvider) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	return p.do(req, out)
}

func (p *PaystackProvider) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return &GatewayError{Provider: "paystack", Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &GatewayError{Provider: "paystack", Message: err.Error()}
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &GatewayError{
			Provider: "paystack",
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  "unexpected response from payment gateway",
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		message := strings.TrimSpace(envelope.Message)
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &GatewayError{
			Provider: "paystack",
			Code:     fmt.Sprintf("http_%d", resp.StatusCode),
			Message:  message,
		}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &GatewayError{Provider: "paystack", Message: "malformed gateway payload"}
		}
	}
	return nil
}
