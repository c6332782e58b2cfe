package payments

import (
	"context"
	"errors"
	"testing"
)

type stubProvider struct {
	name         string
	initializeFn func(context.Context, InitializeRequest) (InitializeResult, error)
	verifyFn     func(context.Context, string) (VerifyResult, error)
}

func (s *stubProvider) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	if s.initializeFn != nil {
		return s.initializeFn(ctx, req)
	}
	return InitializeResult{Reference: "ref-" + s.name}, nil
}

func (s *stubProvider) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, reference)
	}
	return VerifyResult{Reference: reference, Settled: true, Status: StatusSettled}, nil
}

func TestManagerRequiresProviders(t *testing.T) {
	if _, err := NewManager(nil); err == nil {
		t.Fatal("expected error for empty provider map")
	}
}

func TestManagerDefaultsToPaystack(t *testing.T) {
	manager, err := NewManager(map[string]Provider{
		"paystack": &stubProvider{name: "paystack"},
		"paypal":   &stubProvider{name: "paypal"},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	result, err := manager.Initialize(context.Background(), PaymentContext{}, InitializeRequest{AmountMinor: 100})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if result.Provider != "paystack" {
		t.Fatalf("provider = %q, want paystack", result.Provider)
	}
}

func TestManagerRoutesByMethod(t *testing.T) {
	manager, err := NewManager(map[string]Provider{
		"paystack": &stubProvider{name: "paystack"},
		"paypal":   &stubProvider{name: "paypal"},
	}, WithMethodRoutes(map[string]string{"paypal": "paypal"}))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	result, err := manager.Initialize(context.Background(), PaymentContext{Method: "paypal"}, InitializeRequest{AmountMinor: 100})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if result.Provider != "paypal" {
		t.Fatalf("provider = %q, want paypal", result.Provider)
	}
}

func TestManagerUnknownPreferredFallsBack(t *testing.T) {
	manager, err := NewManager(map[string]Provider{
		"paystack": &stubProvider{name: "paystack"},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	result, err := manager.Verify(context.Background(), PaymentContext{PreferredProvider: "flutterwave"}, "ref-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Provider != "paystack" {
		t.Fatalf("provider = %q, want paystack", result.Provider)
	}
}

func TestManagerVerifyIsIdempotent(t *testing.T) {
	calls := 0
	manager, err := NewManager(map[string]Provider{
		"paystack": &stubProvider{
			name: "paystack",
			verifyFn: func(_ context.Context, reference string) (VerifyResult, error) {
				calls++
				return VerifyResult{Reference: reference, Settled: true, Status: StatusSettled}, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	first, err := manager.Verify(context.Background(), PaymentContext{}, "ref-42")
	if err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	second, err := manager.Verify(context.Background(), PaymentContext{}, "ref-42")
	if err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if first.Settled != second.Settled {
		t.Fatalf("settled outcome changed between calls: %v then %v", first.Settled, second.Settled)
	}
	if calls != 2 {
		t.Fatalf("expected relay on every call, got %d calls", calls)
	}
}

func TestManagerSurfacesProviderError(t *testing.T) {
	gwErr := &GatewayError{Provider: "paystack", Message: "Declined"}
	manager, err := NewManager(map[string]Provider{
		"paystack": &stubProvider{
			name: "paystack",
			initializeFn: func(context.Context, InitializeRequest) (InitializeResult, error) {
				return InitializeResult{}, gwErr
			},
		},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	_, err = manager.Initialize(context.Background(), PaymentContext{}, InitializeRequest{AmountMinor: 100})
	var got *GatewayError
	if !errors.As(err, &got) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if got.Message != "Declined" {
		t.Fatalf("gateway message = %q, want Declined", got.Message)
	}
}
