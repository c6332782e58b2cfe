package memory

import (
	"context"
	"sync"

	"github.com/adomherbals/api/internal/repositories"
)

// ProfileRepository is a mutex-guarded in-memory profile store used for the
// checkout prefill source.
type ProfileRepository struct {
	mu       sync.Mutex
	profiles map[string]repositories.CheckoutProfile
}

// NewProfileRepository constructs an empty in-memory profile repository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{profiles: make(map[string]repositories.CheckoutProfile)}
}

// Put seeds or replaces a profile.
func (r *ProfileRepository) Put(profile repositories.CheckoutProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = profile
}

// FindByUserID returns the stored profile or a not-found error.
func (r *ProfileRepository) FindByUserID(_ context.Context, userID string) (repositories.CheckoutProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.profiles[userID]
	if !ok {
		return repositories.CheckoutProfile{}, repositories.NewNotFound("memory profiles: find", nil)
	}
	return profile, nil
}
