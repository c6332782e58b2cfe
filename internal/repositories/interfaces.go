package repositories

import (
	"context"

	domain "github.com/adomherbals/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation
// used by services to translate into their own sentinel errors.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists orders created by the checkout flow. Insert must
// dedupe on the idempotency token: a second insert carrying a token that is
// already stored returns the existing order instead of creating a duplicate.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByIdempotencyToken(ctx context.Context, token string) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentReference string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error)
}

// AddressRepository persists shipping addresses captured during checkout.
type AddressRepository interface {
	Insert(ctx context.Context, address domain.Address) (domain.Address, error)
	FindByID(ctx context.Context, addressID string) (domain.Address, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Address, error)
}

// CartRepository owns the cart snapshots consumed by checkout. Clear is only
// invoked from the terminal success paths; no other checkout code mutates
// the cart.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.CartSnapshot, error)
	Clear(ctx context.Context, userID string) error
}

// ProductCatalog resolves authoritative unit prices and weights so order
// totals never trust client-supplied figures.
type ProductCatalog interface {
	Lookup(ctx context.Context, productID string) (domain.CartItem, error)
}

// ProfileRepository exposes the slice of the user profile checkout pre-fills
// from: contact name, email, phone, and the default address when present.
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID string) (CheckoutProfile, error)
}

// CheckoutProfile is the contact/address prefill source for a new checkout
// session.
type CheckoutProfile struct {
	UserID         string
	Name           string
	Email          string
	Phone          string
	DefaultAddress *domain.Address
}
