package token_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iforddow/bizaudo-server/token"
)

func TestHasherIsDeterministic(t *testing.T) {
	h := token.NewHasher("hash-secret")

	first := h.Hash("some.refresh.token")
	second := h.Hash("some.refresh.token")
	require.Equal(t, first, second)
}

func TestHasherSeparatesTokensAndKeys(t *testing.T) {
	h := token.NewHasher("hash-secret")
	other := token.NewHasher("another-secret")

	require.NotEqual(t, h.Hash("token-a"), h.Hash("token-b"))
	require.NotEqual(t, h.Hash("token-a"), other.Hash("token-a"))
}

func TestHasherOutputIsBase64(t *testing.T) {
	h := token.NewHasher("hash-secret")

	digest := h.Hash("some.refresh.token")
	decoded, err := base64.StdEncoding.DecodeString(digest)
	require.NoError(t, err)
	require.Len(t, decoded, 32) // SHA-256
}
