package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Hasher produces the keyed digest under which refresh tokens are stored.
// Only the digest ever reaches the ledger, so a dump of the store cannot be
// replayed as live tokens.
type Hasher struct {
	secret []byte
}

// NewHasher creates a Hasher keyed with the given secret.
func NewHasher(secret string) *Hasher {
	return &Hasher{
		secret: []byte(secret),
	}
}

// Hash returns the HMAC-SHA256 digest of the token, base64 encoded. The
// digest is deterministic: the same token always maps to the same key.
func (h *Hasher) Hash(rawToken string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(rawToken))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
