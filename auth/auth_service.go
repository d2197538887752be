package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/iforddow/bizaudo-server/auth/reset"
	"github.com/iforddow/bizaudo-server/auth/verification"
	apperrors "github.com/iforddow/bizaudo-server/internal/errors"
	"github.com/iforddow/bizaudo-server/mail"
	"github.com/iforddow/bizaudo-server/password"
	"github.com/iforddow/bizaudo-server/token"
	"github.com/iforddow/bizaudo-server/token/refresh"
	"github.com/iforddow/bizaudo-server/users"
)

const defaultBcryptCost = 12

// Repos holds all repository dependencies for the Service
type Repos struct {
	Users users.Repo // Repository for user accounts and profiles
}

// Stores holds the short-lived credential state backing the Service
type Stores struct {
	RefreshTokens refresh.Ledger      // Ledger of live refresh-token hashes
	Reset         *reset.Store        // Password reset codes and tokens
	Verification  *verification.Store // Email verification tokens
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"-"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

// RegisterRequest carries the fields needed to create an account.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
}

// Service orchestrates the credential lifecycle: registration, login,
// refresh-token rotation, logout, password changes and resets, and email
// verification.
type Service struct {
	repos        Repos
	stores       Stores
	tokenManager *token.Manager
	hasher       *token.Hasher
	mailer       mail.Mailer
	frontendURL  string
	bcryptCost   int
	nowTime      func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithMailer sets the mailer used for verification and reset mail.
func WithMailer(m mail.Mailer) ServiceOption {
	return func(s *Service) {
		s.mailer = m
	}
}

// WithFrontendBaseURL sets the base URL embedded in mailed links.
func WithFrontendBaseURL(url string) ServiceOption {
	return func(s *Service) {
		s.frontendURL = url
	}
}

// WithBcryptCost sets the bcrypt work factor for new password hashes.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// NewService initializes a new Service with required dependencies.
// Optional configuration can be provided via options (e.g., WithNowTime for testing).
func NewService(
	repos Repos,
	stores Stores,
	tokenManager *token.Manager,
	hasher *token.Hasher,
	options ...ServiceOption,
) (*Service, error) {
	if repos.Users == nil {
		return nil, errors.New("[NewService] Users repo is required")
	}
	if stores.RefreshTokens == nil {
		return nil, errors.New("[NewService] RefreshTokens ledger is required")
	}
	if stores.Reset == nil {
		return nil, errors.New("[NewService] Reset store is required")
	}
	if stores.Verification == nil {
		return nil, errors.New("[NewService] Verification store is required")
	}
	if tokenManager == nil {
		return nil, errors.New("[NewService] tokenManager is required")
	}
	if hasher == nil {
		return nil, errors.New("[NewService] hasher is required")
	}

	s := &Service{
		repos:        repos,
		stores:       stores,
		tokenManager: tokenManager,
		hasher:       hasher,
		mailer:       mail.NoOpMailer{},
		bcryptCost:   defaultBcryptCost,
		nowTime:      time.Now,
	}

	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Register creates a new account with its profile and mails a verification
// link. The account starts enabled but unverified.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*users.User, error) {
	violations := validateRegistration(req)
	if len(violations) > 0 {
		return nil, apperrors.NewValidation(violations)
	}

	hash, err := users.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "Service.Register HashPassword")
	}

	user := &users.User{
		ID:           uuid.New(),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		CreatedAt:    s.nowTime(),
		Enabled:      true,
		Profile: &users.Profile{
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
	}

	if err := s.repos.Users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			return nil, apperrors.ErrConflict
		}
		return nil, errors.Wrap(err, "Service.Register Create")
	}

	s.sendVerificationMail(ctx, user.Email)
	return user, nil
}

// Login checks the credentials and, on success, issues a fresh token pair
// and records the refresh token's hash in the ledger. Every failure mode
// returns the same invalid-credentials error.
func (s *Service) Login(ctx context.Context, email, pw string) (*TokenPair, *users.User, error) {
	user, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, nil, apperrors.ErrInvalidCredentials
		}
		return nil, nil, errors.Wrap(err, "Service.Login GetByEmail")
	}

	if !users.CheckPasswordHash(pw, user.PasswordHash) {
		return nil, nil, apperrors.ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, nil, apperrors.ErrInvalidCredentials
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repos.Users.TouchLastActive(ctx, user.ID, s.nowTime()); err != nil {
		log.Warn().Err(err).Msg("failed to touch last active on login")
	}
	return pair, user, nil
}

// Refresh rotates a refresh token: the presented token's hash is revoked
// from the ledger before a replacement pair is issued and stored. A token
// whose hash is no longer in the ledger is rejected, which also catches
// replays of already-rotated tokens.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, *users.User, error) {
	claims, err := s.tokenManager.Verify(rawRefresh, token.UseRefresh)
	if err != nil {
		return nil, nil, apperrors.ErrInvalidToken
	}

	hash := s.hasher.Hash(rawRefresh)
	owner, err := s.stores.RefreshTokens.Owner(ctx, hash)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			log.Warn().Str("sub", claims.Subject.String()).Msg("refresh token replay or unknown token")
			return nil, nil, apperrors.ErrInvalidToken
		}
		return nil, nil, errors.Wrap(err, "Service.Refresh Owner")
	}
	if owner != claims.Subject {
		return nil, nil, apperrors.ErrInvalidToken
	}

	// Consume before issuing: of two concurrent rotations of the same
	// token, only the one that wins the revoke proceeds.
	if err := s.stores.RefreshTokens.Revoke(ctx, hash); err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return nil, nil, apperrors.ErrInvalidToken
		}
		return nil, nil, errors.Wrap(err, "Service.Refresh Revoke")
	}

	user, err := s.repos.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, nil, apperrors.ErrInvalidToken
	}
	if !user.Enabled {
		return nil, nil, apperrors.ErrInvalidToken
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repos.Users.TouchLastActive(ctx, user.ID, s.nowTime()); err != nil {
		log.Warn().Err(err).Msg("failed to touch last active on refresh")
	}
	return pair, user, nil
}

// Logout revokes the presented refresh token. With allDevices it clears
// every live refresh token belonging to the token's subject. Logout is
// idempotent: an absent or already-revoked token is not an error.
func (s *Service) Logout(ctx context.Context, rawRefresh string, allDevices bool) error {
	if rawRefresh == "" {
		return nil
	}

	hash := s.hasher.Hash(rawRefresh)

	if allDevices {
		claims, err := s.tokenManager.Verify(rawRefresh, token.UseRefresh)
		if err != nil {
			// Fall back to single-token revocation for a token we
			// cannot attribute to a subject.
			_ = s.stores.RefreshTokens.Revoke(ctx, hash)
			return nil
		}
		if err := s.stores.RefreshTokens.RevokeAll(ctx, claims.Subject); err != nil {
			return errors.Wrap(err, "Service.Logout RevokeAll")
		}
		return nil
	}

	if err := s.stores.RefreshTokens.Revoke(ctx, hash); err != nil && !errors.Is(err, refresh.ErrNotFound) {
		return errors.Wrap(err, "Service.Logout Revoke")
	}
	return nil
}

// ChangePassword verifies the current password, applies the policy to the
// replacement and stores its hash. Every live refresh token is revoked so
// stolen sessions die with the old password.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword, confirm string) error {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return apperrors.ErrInvalidCredentials
		}
		return errors.Wrap(err, "Service.ChangePassword GetByID")
	}

	if !users.CheckPasswordHash(current, user.PasswordHash) {
		return apperrors.ErrInvalidCredentials
	}

	violations := password.ValidateChange(newPassword, confirm, func(candidate string) bool {
		return users.CheckPasswordHash(candidate, user.PasswordHash)
	})
	if len(violations) > 0 {
		return apperrors.NewValidation(violations)
	}

	hash, err := users.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return errors.Wrap(err, "Service.ChangePassword HashPassword")
	}
	if err := s.repos.Users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return errors.Wrap(err, "Service.ChangePassword UpdatePasswordHash")
	}

	if err := s.stores.RefreshTokens.RevokeAll(ctx, user.ID); err != nil {
		return errors.Wrap(err, "Service.ChangePassword RevokeAll")
	}
	return nil
}

// AccessTokenExpiry exposes the configured access token lifetime for the
// HTTP layer's cookie and response bookkeeping.
func (s *Service) AccessTokenExpiry() time.Duration {
	return s.tokenManager.AccessTokenExpiry()
}

// RefreshTokenExpiry exposes the configured refresh token lifetime.
func (s *Service) RefreshTokenExpiry() time.Duration {
	return s.tokenManager.RefreshTokenExpiry()
}

func (s *Service) issueTokenPair(ctx context.Context, user *users.User) (*TokenPair, error) {
	access, err := s.tokenManager.IssueAccess(user)
	if err != nil {
		return nil, errors.Wrap(err, "Service.issueTokenPair IssueAccess")
	}
	refreshToken, err := s.tokenManager.IssueRefresh(user)
	if err != nil {
		return nil, errors.Wrap(err, "Service.issueTokenPair IssueRefresh")
	}

	hash := s.hasher.Hash(refreshToken)
	ttl := s.tokenManager.RefreshTokenExpiry()
	if err := s.stores.RefreshTokens.Store(ctx, hash, user.ID, ttl); err != nil {
		return nil, errors.Wrap(err, "Service.issueTokenPair Store")
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(s.tokenManager.AccessTokenExpiry().Seconds()),
	}, nil
}
