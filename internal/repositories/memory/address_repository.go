package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/repositories"
)

// AddressRepository is a mutex-guarded in-memory address store.
type AddressRepository struct {
	mu        sync.Mutex
	addresses map[string]domain.Address
	order     []string
	failWith  error
}

// NewAddressRepository constructs an empty in-memory address repository.
func NewAddressRepository() *AddressRepository {
	return &AddressRepository{addresses: make(map[string]domain.Address)}
}

// FailWith makes every subsequent Insert return the given error; tests use
// it to exercise the address-creation failure path.
func (r *AddressRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

// Insert stores the address.
func (r *AddressRepository) Insert(_ context.Context, address domain.Address) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return domain.Address{}, repositories.NewUnavailable("memory addresses: insert", r.failWith)
	}
	if strings.TrimSpace(address.ID) == "" {
		return domain.Address{}, repositories.NewConflict("memory addresses: insert", errors.New("address id is required"))
	}

	r.addresses[address.ID] = address
	r.order = append(r.order, address.ID)
	return address, nil
}

// FindByID returns the stored address or a not-found error.
func (r *AddressRepository) FindByID(_ context.Context, addressID string) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	address, ok := r.addresses[addressID]
	if !ok {
		return domain.Address{}, repositories.NewNotFound("memory addresses: find", nil)
	}
	return address, nil
}

// ListByUser returns the user's addresses in insertion order.
func (r *AddressRepository) ListByUser(_ context.Context, userID string) ([]domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []domain.Address
	for _, id := range r.order {
		if address := r.addresses[id]; address.UserID == userID {
			result = append(result, address)
		}
	}
	return result, nil
}
