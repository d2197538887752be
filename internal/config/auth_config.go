package config

import "time"

type AuthConfig interface {
	GetJWTSecret() string
	GetTokenHashSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetResetCodeTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetVerificationTokenTTL() time.Duration
	GetRefreshCookieName() string
}

type Auth struct{}

var _ AuthConfig = Auth{}

// GetJWTSecret is the HMAC key used to sign access and refresh JWTs.
// The default exists so the server boots in DEV; production deployments
// must set JWT_SECRET.
func (Auth) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "dev-only-jwt-secret-change-me")
}

// GetTokenHashSecret is the key for the keyed hash applied to refresh
// tokens before they touch the ledger. Kept separate from the signing
// secret so neither can stand in for the other.
func (Auth) GetTokenHashSecret() string {
	return GetEnv("TOKEN_HASH_SECRET", "dev-only-hash-secret-change-me")
}

func (Auth) GetAccessTokenExpiry() time.Duration {
	return 15 * time.Minute
}

func (Auth) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}

func (Auth) GetResetCodeTTL() time.Duration {
	return 10 * time.Minute
}

func (Auth) GetResetTokenTTL() time.Duration {
	return 15 * time.Minute
}

func (Auth) GetVerificationTokenTTL() time.Duration {
	return 30 * time.Minute
}

func (Auth) GetRefreshCookieName() string {
	return "biz_rt"
}
