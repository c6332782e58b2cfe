package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testClock = time.Date(2025, time.July, 2, 14, 30, 0, 0, time.UTC)

func submitRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkout/sessions/sess-1/submit", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestMiddlewareRejectsMissingKey(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(func() time.Time { return testClock }))

	handlerCalled := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		handlerCalled = true
	})

	rr := httptest.NewRecorder()
	middleware(next).ServeHTTP(rr, submitRequest("", `{}`))

	if handlerCalled {
		t.Fatal("handler must not run without an idempotency key")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertIdempotencyError(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddlewareReplaysStoredResponse(t *testing.T) {
	store := NewMemoryStore()
	var calls int
	middleware := Middleware(store, WithClock(func() time.Time { return testClock }))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"sessionId":"sess-1","state":"succeeded","orderId":"ord-1"}`))
	}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, submitRequest("sess-1-token", `{}`))
	if calls != 1 {
		t.Fatalf("expected one handler invocation, got %d", calls)
	}
	if rr1.Code != http.StatusOK {
		t.Fatalf("unexpected first response status: %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, submitRequest("sess-1-token", `{}`))

	if calls != 1 {
		t.Fatalf("repeat submission must replay, got %d handler calls", calls)
	}
	if rr2.Code != http.StatusOK {
		t.Fatalf("expected replayed status 200, got %d", rr2.Code)
	}
	if rr2.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay marker header")
	}
	if got := rr2.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected content-type json, got %s", got)
	}
	if rr2.Body.String() != rr1.Body.String() {
		t.Fatalf("replayed body %s differs from original %s", rr2.Body.String(), rr1.Body.String())
	}
}

func TestMiddlewareRejectsReusedKeyForDifferentRequest(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(func() time.Time { return testClock }))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, submitRequest("sess-1-token", `{"note":"first"}`))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first request success, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, submitRequest("sess-1-token", `{"note":"second"}`))

	if rr2.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", rr2.Code)
	}
	assertIdempotencyError(t, rr2.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddlewarePendingReservationBlocksRetry(t *testing.T) {
	store := NewMemoryStore()
	middleware := Middleware(store, WithClock(func() time.Time { return testClock }))
	handler := middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run while the key is held")
	}))

	req := submitRequest("sess-2-token", `{}`)
	body, err := readAndReplayBody(req)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	requester := extractRequester(req.Context())
	fingerprint := requestFingerprint(req, body, requester)
	scoped := scopedKey("sess-2-token", requester)
	if _, err := store.Reserve(req.Context(), scoped, fingerprint, testClock, time.Hour); err != nil {
		t.Fatalf("failed to seed reservation: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 while pending, got %d", rr.Code)
	}
	assertIdempotencyError(t, rr.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddlewareSaveFailureReleasesKey(t *testing.T) {
	store := &failingSaveStore{}
	middleware := Middleware(store, WithClock(func() time.Time { return testClock }))

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	middleware(next).ServeHTTP(rr, submitRequest("sess-3-token", `{}`))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 response, got %d", rr.Code)
	}
	assertIdempotencyError(t, rr.Body.Bytes(), "idempotency_store_error")
	if !store.released {
		t.Fatal("expected the key released after a failed save")
	}
}

type failingSaveStore struct {
	released bool
}

func (s *failingSaveStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	return Reservation{State: ReservationStateNew}, nil
}

func (s *failingSaveStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	return errors.New("save failed")
}

func (s *failingSaveStore) Release(context.Context, string, string) error {
	s.released = true
	return nil
}

func (s *failingSaveStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func assertIdempotencyError(t *testing.T, payload []byte, expected string) {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if body.Error != expected {
		t.Fatalf("expected error code %s, got %s", expected, body.Error)
	}
}
