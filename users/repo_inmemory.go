package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepo is a map-backed Repo used in tests and local development.
type InMemoryRepo struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
	}
}

var _ Repo = (*InMemoryRepo)(nil)

func (r *InMemoryRepo) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := r.byEmail[key]; exists {
		return ErrDuplicateEmail
	}

	if user.Profile == nil {
		user.Profile = &Profile{ID: user.ID, CreatedAt: user.CreatedAt}
	}

	clone := cloneUser(user)
	r.byID[user.ID] = clone
	r.byEmail[key] = user.ID
	return nil
}

func (r *InMemoryRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *InMemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *InMemoryRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = newHash
	return nil
}

func (r *InMemoryRepo) SetEmailVerified(_ context.Context, id uuid.UUID, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	user.EmailVerified = verified
	return nil
}

// SetEnabled flips the account gate. Only the in-memory repo exposes this;
// production accounts are disabled through the admin tooling.
func (r *InMemoryRepo) SetEnabled(id uuid.UUID, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.byID[id]; ok {
		user.Enabled = enabled
	}
}

func (r *InMemoryRepo) TouchLastActive(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	user.LastActive = at
	return nil
}

func cloneUser(u *User) *User {
	clone := *u
	if u.Profile != nil {
		profile := *u.Profile
		clone.Profile = &profile
	}
	clone.Roles = append([]string(nil), u.Roles...)
	clone.Permissions = append([]string(nil), u.Permissions...)
	return &clone
}
