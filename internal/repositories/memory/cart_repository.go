package memory

import (
	"context"
	"sync"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/repositories"
)

// CartRepository is a mutex-guarded in-memory cart store.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]domain.CartSnapshot
}

// NewCartRepository constructs an empty in-memory cart repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]domain.CartSnapshot)}
}

// Put seeds or replaces the cart snapshot for a user.
func (r *CartRepository) Put(cart domain.CartSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[cart.UserID] = cart
}

// GetCart returns the user's current snapshot.
func (r *CartRepository) GetCart(_ context.Context, userID string) (domain.CartSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, ok := r.carts[userID]
	if !ok {
		return domain.CartSnapshot{}, repositories.NewNotFound("memory carts: get", nil)
	}
	clone := cart
	clone.Items = append([]domain.CartItem(nil), cart.Items...)
	return clone, nil
}

// Clear removes the user's cart.
func (r *CartRepository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}

// Has reports whether a cart is still stored for the user.
func (r *CartRepository) Has(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.carts[userID]
	return ok
}
