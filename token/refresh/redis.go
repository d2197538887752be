package refresh

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "refreshToken:"
	userKeyPrefix  = "userTokens:"
)

// revokeScript deletes the hash entry and drops the hash from its owner's
// set in one step, so two racing revocations cannot both claim the token.
var revokeScript = redis.NewScript(`
local owner = redis.call("GET", KEYS[1])
if not owner then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. owner, ARGV[2])
return 1
`)

// RedisLedger is a Redis-backed Ledger. Each live hash maps to its owner
// under refreshToken:<hash>, and every owner keeps a userTokens:<id> set of
// their live hashes for revoke-all.
type RedisLedger struct {
	client redis.UniversalClient
}

// NewRedisLedger creates a RedisLedger backed by the given client.
func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client}
}

func tokenKey(hash string) string {
	return tokenKeyPrefix + hash
}

func userKey(ownerID string) string {
	return userKeyPrefix + ownerID
}

func (l *RedisLedger) Store(ctx context.Context, hash string, ownerID uuid.UUID, ttl time.Duration) error {
	owner := ownerID.String()
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKey(hash), owner, ttl)
		pipe.SAdd(ctx, userKey(owner), hash)
		pipe.Expire(ctx, userKey(owner), ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "RedisLedger.Store")
	}
	return nil
}

func (l *RedisLedger) Owner(ctx context.Context, hash string) (uuid.UUID, error) {
	owner, err := l.client.Get(ctx, tokenKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "RedisLedger.Owner")
	}

	ownerID, err := uuid.Parse(owner)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "RedisLedger.Owner parse")
	}
	return ownerID, nil
}

func (l *RedisLedger) Revoke(ctx context.Context, hash string) error {
	removed, err := revokeScript.Run(ctx, l.client,
		[]string{tokenKey(hash)}, userKeyPrefix, hash).Int()
	if err != nil {
		return errors.Wrap(err, "RedisLedger.Revoke")
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *RedisLedger) RevokeAll(ctx context.Context, ownerID uuid.UUID) error {
	owner := ownerID.String()
	hashes, err := l.client.SMembers(ctx, userKey(owner)).Result()
	if err != nil {
		return errors.Wrap(err, "RedisLedger.RevokeAll SMembers")
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, hash := range hashes {
			pipe.Del(ctx, tokenKey(hash))
		}
		pipe.Del(ctx, userKey(owner))
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "RedisLedger.RevokeAll")
	}
	return nil
}
