package refresh

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a hash has no live ledger entry, whether it
// was never stored, already revoked, or aged out.
var ErrNotFound = errors.New("refresh token not found")

// Ledger records which refresh-token hashes are live. A token is only good
// for rotation while its hash is present; revocation removes the hash, so a
// replayed token simply misses.
//
// Only keyed hashes are stored, never raw tokens.
type Ledger interface {
	// Store records a hash as live for the owner until the TTL elapses.
	Store(ctx context.Context, hash string, ownerID uuid.UUID, ttl time.Duration) error

	// Owner returns the owner of a live hash, or ErrNotFound.
	Owner(ctx context.Context, hash string) (uuid.UUID, error)

	// Revoke removes a hash atomically. Exactly one of two concurrent
	// revocations of the same hash succeeds; the loser gets ErrNotFound.
	Revoke(ctx context.Context, hash string) error

	// RevokeAll removes every live hash belonging to the owner.
	RevokeAll(ctx context.Context, ownerID uuid.UUID) error
}
