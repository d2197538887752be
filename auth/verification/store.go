package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "emailVerification:"

// ErrNotFound is returned for unknown, expired or already-spent tokens.
var ErrNotFound = errors.New("verification token not found")

// consumeScript fetches and deletes a token in one step so it can only be
// redeemed once.
var consumeScript = redis.NewScript(`
local value = redis.call("GET", KEYS[1])
if not value then
  return false
end
redis.call("DEL", KEYS[1])
return value
`)

// Store holds pending email-verification tokens. Each token maps to the
// address it was mailed to; redeeming the token proves control of that
// mailbox.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewStore creates a Store whose tokens live for the given duration.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

func key(token string) string {
	return keyPrefix + token
}

// Issue creates a fresh verification token for the address.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, key(token), email, s.ttl).Err(); err != nil {
		return "", errors.Wrap(err, "Store.Issue Set")
	}
	return token, nil
}

// Consume spends a token and returns the address it verifies, or
// ErrNotFound if the token is unknown, expired or already spent.
func (s *Store) Consume(ctx context.Context, token string) (string, error) {
	email, err := consumeScript.Run(ctx, s.client, []string{key(token)}).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "Store.Consume")
	}
	return email, nil
}
