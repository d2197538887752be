package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned by Create when the email is already taken.
var ErrDuplicateEmail = errors.New("email already registered")

// Repo manages durable storage of users. Create persists the user together
// with its profile; the invariant "a user always has exactly one profile"
// is established atomically at creation time.
type Repo interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, newHash string) error
	SetEmailVerified(ctx context.Context, id uuid.UUID, verified bool) error
	TouchLastActive(ctx context.Context, id uuid.UUID, at time.Time) error
}
