package verification_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iforddow/bizaudo-server/auth/verification"
)

func newStore(t *testing.T) (*verification.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return verification.NewStore(client, 30*time.Minute), mr
}

func TestTokenIsSingleUse(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "john.doe@example.com")
	require.NoError(t, err)

	email, err := store.Consume(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "john.doe@example.com", email)

	_, err = store.Consume(ctx, token)
	require.ErrorIs(t, err, verification.ErrNotFound)
}

func TestUnknownTokenMisses(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Consume(context.Background(), "nope")
	require.ErrorIs(t, err, verification.ErrNotFound)
}

func TestTokenExpires(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	token, err := store.Issue(ctx, "john.doe@example.com")
	require.NoError(t, err)

	mr.FastForward(31 * time.Minute)

	_, err = store.Consume(ctx, token)
	require.ErrorIs(t, err, verification.ErrNotFound)
}
