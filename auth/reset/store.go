package reset

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	codeKeyPrefix  = "passwordResetCode:"
	tokenKeyPrefix = "passwordResetToken:"

	codeDigits = 6
)

// ErrNotFound is returned when a code or token is absent, expired or wrong.
// Callers surface it as a generic invalid-token failure.
var ErrNotFound = errors.New("reset code or token not found")

// consumeScript compares the stored value against the submitted one and
// deletes the key only on a match, so a code or token can be spent at most
// once even under concurrent submissions.
var consumeScript = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if not stored or stored ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`)

// consumeKeyScript fetches and deletes a key in one step.
var consumeKeyScript = redis.NewScript(`
local value = redis.call("GET", KEYS[1])
if not value then
  return false
end
redis.call("DEL", KEYS[1])
return value
`)

// Store drives the two phases of a password reset. Phase one parks a short
// numeric code under the requesting account; phase two swaps a correct code
// for a single-use reset token that authorizes the actual password change.
type Store struct {
	client   redis.UniversalClient
	codeTTL  time.Duration
	tokenTTL time.Duration
}

// NewStore creates a Store with the given code and token lifetimes.
func NewStore(client redis.UniversalClient, codeTTL, tokenTTL time.Duration) *Store {
	return &Store{
		client:   client,
		codeTTL:  codeTTL,
		tokenTTL: tokenTTL,
	}
}

func codeKey(ownerID uuid.UUID) string {
	return codeKeyPrefix + ownerID.String()
}

func tokenKey(token string) string {
	return tokenKeyPrefix + token
}

// GenerateCode creates a fresh numeric code for the account and stores it
// under the account's key. A repeat request overwrites the previous code, so
// only the latest one can ever be redeemed.
func (s *Store) GenerateCode(ctx context.Context, ownerID uuid.UUID) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", errors.Wrap(err, "Store.GenerateCode")
	}

	if err := s.client.Set(ctx, codeKey(ownerID), code, s.codeTTL).Err(); err != nil {
		return "", errors.Wrap(err, "Store.GenerateCode Set")
	}
	return code, nil
}

// ConsumeCode checks the submitted code against the account's stored code
// and spends it. It returns ErrNotFound on a miss, a mismatch or an expired
// code alike.
func (s *Store) ConsumeCode(ctx context.Context, ownerID uuid.UUID, code string) error {
	matched, err := consumeScript.Run(ctx, s.client, []string{codeKey(ownerID)}, code).Int()
	if err != nil {
		return errors.Wrap(err, "Store.ConsumeCode")
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

// IssueToken creates the single-use reset token handed out after a correct
// code and binds it to the account.
func (s *Store) IssueToken(ctx context.Context, ownerID uuid.UUID) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, tokenKey(token), ownerID.String(), s.tokenTTL).Err(); err != nil {
		return "", errors.Wrap(err, "Store.IssueToken Set")
	}
	return token, nil
}

// LookupToken returns the account a live reset token was issued for without
// spending it, so callers can run their checks before committing.
func (s *Store) LookupToken(ctx context.Context, token string) (uuid.UUID, error) {
	owner, err := s.client.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "Store.LookupToken")
	}

	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "Store.LookupToken parse")
	}
	return ownerID, nil
}

// ConsumeToken spends a reset token and returns the account it was issued
// for, or ErrNotFound if the token is unknown, expired or already spent.
func (s *Store) ConsumeToken(ctx context.Context, token string) (uuid.UUID, error) {
	owner, err := consumeKeyScript.Run(ctx, s.client, []string{tokenKey(token)}).Text()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "Store.ConsumeToken")
	}

	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "Store.ConsumeToken parse")
	}
	return ownerID, nil
}

func randomCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
