package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/iforddow/bizaudo-server/internal/errors"
	"github.com/iforddow/bizaudo-server/internal/utils"
	"github.com/iforddow/bizaudo-server/users"
)

// Token use values carried in the "token_use" claim. Verification pins a
// token to its intended use so an access token can never be replayed against
// the refresh endpoint or vice versa.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Claims is the verified content of a token issued by this service.
type Claims struct {
	Subject   uuid.UUID
	Email     string
	Roles     []string
	TokenUse  string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager issues and verifies the signed access and refresh tokens.
type Manager struct {
	signer             Signer
	issuer             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer: signer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// AccessTokenExpiry returns the configured access token lifetime.
func (m *Manager) AccessTokenExpiry() time.Duration { return m.accessTokenExpiry }

// RefreshTokenExpiry returns the configured refresh token lifetime.
func (m *Manager) RefreshTokenExpiry() time.Duration { return m.refreshTokenExpiry }

// IssueAccess creates a short-lived access token for the user. Roles ride on
// the token so request authorization does not need a user lookup.
func (m *Manager) IssueAccess(user *users.User) (string, error) {
	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"sub":       user.ID.String(),
		"email":     user.Email,
		"roles":     user.Roles,
		"token_use": UseAccess,
		"iat":       m.nowFunc().Unix(),
		"exp":       m.nowFunc().Add(m.accessTokenExpiry).Unix(),
		"jti":       uuid.New().String(),
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Manager.IssueAccess Sign")
	}
	return signed, nil
}

// IssueRefresh creates a long-lived refresh token for the user. The refresh
// token only names its subject; authorities are resolved fresh on rotation.
func (m *Manager) IssueRefresh(user *users.User) (string, error) {
	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"sub":       user.ID.String(),
		"token_use": UseRefresh,
		"iat":       m.nowFunc().Unix(),
		"exp":       m.nowFunc().Add(m.refreshTokenExpiry).Unix(),
		"jti":       uuid.New().String(),
	}
	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Manager.IssueRefresh Sign")
	}
	return signed, nil
}

// Verify parses the raw token, checks its signature and expiry, and requires
// the given token use. Every failure collapses to the same invalid-token
// error so callers leak nothing about why verification failed.
func (m *Manager) Verify(rawToken, tokenUse string) (*Claims, error) {
	parsed, err := jwt.Parse(rawToken, m.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil || !parsed.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}

	use, _ := mapClaims["token_use"].(string)
	if use != tokenUse {
		return nil, apperrors.ErrInvalidToken
	}

	sub, _ := mapClaims["sub"].(string)
	subject, err := uuid.Parse(sub)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	email, _ := mapClaims["email"].(string)
	jti, _ := mapClaims["jti"].(string)
	iat, _ := mapClaims["iat"].(float64)
	exp, _ := mapClaims["exp"].(float64)

	var roles []string
	if claimRoles, ok := mapClaims["roles"].([]any); ok {
		roles = utils.ToStringSlice(claimRoles)
	}

	return &Claims{
		Subject:   subject,
		Email:     email,
		Roles:     roles,
		TokenUse:  use,
		JTI:       jti,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
