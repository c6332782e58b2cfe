// Package memory provides in-memory repository implementations used by
// tests and local development. They honour the same contracts as the
// postgres implementations, including idempotency-token dedupe on orders.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/repositories"
)

// OrderRepository is a mutex-guarded in-memory order store.
type OrderRepository struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	byToken  map[string]string
	inserted []string
}

// NewOrderRepository constructs an empty in-memory order repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:  make(map[string]domain.Order),
		byToken: make(map[string]string),
	}
}

// Insert stores the order, returning the existing order when the idempotency
// token has been seen before.
func (r *OrderRepository) Insert(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, repositories.NewConflict("memory orders: insert", errors.New("order id is required"))
	}

	if token := strings.TrimSpace(order.IdempotencyToken); token != "" {
		if existingID, ok := r.byToken[token]; ok {
			return r.orders[existingID], nil
		}
		r.byToken[token] = order.ID
	}

	if _, exists := r.orders[order.ID]; exists {
		return domain.Order{}, repositories.NewConflict("memory orders: insert", errors.New("order already exists"))
	}

	r.orders[order.ID] = cloneOrder(order)
	r.inserted = append(r.inserted, order.ID)
	return cloneOrder(order), nil
}

// FindByID returns the stored order or a not-found error.
func (r *OrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFound("memory orders: find", nil)
	}
	return cloneOrder(order), nil
}

// FindByIdempotencyToken returns the order previously inserted with the token.
func (r *OrderRepository) FindByIdempotencyToken(_ context.Context, token string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orderID, ok := r.byToken[strings.TrimSpace(token)]
	if !ok {
		return domain.Order{}, repositories.NewNotFound("memory orders: find by token", nil)
	}
	return cloneOrder(r.orders[orderID]), nil
}

// UpdateStatus mutates only the status and payment reference of an order.
func (r *OrderRepository) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus, paymentReference string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFound("memory orders: update status", nil)
	}

	order.Status = status
	if ref := strings.TrimSpace(paymentReference); ref != "" {
		order.PaymentReference = ref
	}
	order.UpdatedAt = time.Now().UTC()
	if status == domain.OrderStatusPaid && order.PaidAt == nil {
		paidAt := order.UpdatedAt
		order.PaidAt = &paidAt
	}
	r.orders[orderID] = order
	return cloneOrder(order), nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(_ context.Context, userID string, limit int) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Order
	for i := len(r.inserted) - 1; i >= 0; i-- {
		order := r.orders[r.inserted[i]]
		if order.UserID != userID {
			continue
		}
		result = append(result, cloneOrder(order))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// InsertCount reports how many distinct orders have been created; tests use
// it to assert the no-duplicate-order property.
func (r *OrderRepository) InsertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserted)
}

func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = append([]domain.OrderLineItem(nil), order.Items...)
	if order.PaidAt != nil {
		paidAt := *order.PaidAt
		clone.PaidAt = &paidAt
	}
	return clone
}
