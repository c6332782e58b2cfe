package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or processor confirmation.
	StatusPending Status = "pending"
	// StatusSettled indicates the processor reports the funds as captured.
	StatusSettled Status = "settled"
	// StatusFailed indicates the processor reports a failure and no further action is possible.
	StatusFailed Status = "failed"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// GatewayError carries the processor's own failure message so it can be
// surfaced to the user verbatim. There is no automatic retry on gateway
// failures.
type GatewayError struct {
	Provider string
	Code     string
	Message  string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payments: %s gateway error (%s): %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("payments: %s gateway error: %s", e.Provider, e.Message)
}

// MobileMoneyCharge identifies the wallet to debit for a mobile money payment.
type MobileMoneyCharge struct {
	Provider string
	Number   string
}

// InitializeRequest captures the payload required to open a payment intent
// with the processor. AmountMinor is in the processor's minor currency unit
// (pesewas for GHS); callers convert exactly once before building the request.
type InitializeRequest struct {
	AmountMinor    int64
	Currency       string
	Email          string
	CallbackURL    string
	Reference      string
	Channels       []string
	MobileMoney    *MobileMoneyCharge
	Metadata       map[string]string
	IdempotencyKey string
}

// InitializeResult is the processor handoff returned to the checkout flow.
// For card payments AuthorizationURL hosts the gateway widget; for mobile
// money Instructions holds the human-readable prompt to display instead.
type InitializeResult struct {
	Reference        string
	Provider         string
	AuthorizationURL string
	AccessCode       string
	Instructions     string
}

// VerifyResult is the normalised settlement outcome for one reference.
// Verify is idempotent: repeated calls with the same reference return the
// same outcome, as relayed from the processor.
type VerifyResult struct {
	Reference      string
	Provider       string
	Settled        bool
	Status         Status
	GatewayMessage string
	AmountMinor    int64
	Currency       string
}

// Provider defines the contract payment processor adapters implement.
type Provider interface {
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error)
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}

// Manager coordinates provider selection and exposes the aggregated interface.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	methodRoutes    map[string]string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the default provider for methods without
// explicit routing.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// WithMethodRoutes configures static payment-method to provider mappings.
func WithMethodRoutes(routes map[string]string) ManagerOption {
	return func(m *Manager) {
		if len(routes) == 0 {
			return
		}
		if m.methodRoutes == nil {
			m.methodRoutes = make(map[string]string, len(routes))
		}
		for k, v := range routes {
			m.methodRoutes[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		providers: copyMap,
	}
	if _, ok := copyMap["paystack"]; ok {
		m.defaultProvider = "paystack"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// PaymentContext defines the hints available when selecting a provider.
type PaymentContext struct {
	PreferredProvider string
	Method            string
}

func (m *Manager) resolveProvider(ctx PaymentContext) (string, Provider, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	if len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if provider := strings.TrimSpace(strings.ToLower(ctx.PreferredProvider)); provider != "" {
		if p, ok := m.providers[provider]; ok {
			return provider, p, nil
		}
	}
	method := strings.ToLower(strings.TrimSpace(ctx.Method))
	if method != "" && m.methodRoutes != nil {
		if providerKey, ok := m.methodRoutes[method]; ok {
			provider := strings.TrimSpace(strings.ToLower(providerKey))
			if p, ok := m.providers[provider]; ok {
				return provider, p, nil
			}
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// Initialize delegates to the resolved provider.
func (m *Manager) Initialize(ctx context.Context, paymentCtx PaymentContext, req InitializeRequest) (InitializeResult, error) {
	key, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return InitializeResult{}, err
	}
	result, err := provider.Initialize(ctx, req)
	if err != nil {
		return InitializeResult{}, err
	}
	result.Provider = key
	return result, nil
}

// Verify delegates to the resolved provider.
func (m *Manager) Verify(ctx context.Context, paymentCtx PaymentContext, reference string) (VerifyResult, error) {
	key, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return VerifyResult{}, err
	}
	result, err := provider.Verify(ctx, reference)
	if err != nil {
		return VerifyResult{}, err
	}
	result.Provider = key
	return result, nil
}
