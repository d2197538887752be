package auth_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iforddow/bizaudo-server/auth"
	"github.com/iforddow/bizaudo-server/auth/reset"
	"github.com/iforddow/bizaudo-server/auth/verification"
	apperrors "github.com/iforddow/bizaudo-server/internal/errors"
	"github.com/iforddow/bizaudo-server/token"
	"github.com/iforddow/bizaudo-server/token/refresh"
	"github.com/iforddow/bizaudo-server/users"
)

const (
	secretStr        = "test-jwt-secret"
	hashSecretStr    = "test-hash-secret"
	testUserEmail    = "john.doe@example.com"
	testUserPassword = `Str0ng!Pass`
	frontendURL      = "http://localhost:5173"
)

// recordingMailer captures sent mail so tests can pull codes and links out
// of the bodies.
type recordingMailer struct {
	mu       sync.Mutex
	messages []sentMail
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (m *recordingMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *recordingMailer) last() sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[len(m.messages)-1]
}

// waitForMail blocks until at least n messages have been delivered. Sending
// happens off the request path, so tests have to wait for it.
func (m *recordingMailer) waitForMail(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return m.count() >= n }, 2*time.Second, 5*time.Millisecond)
}

// testFixture holds all test dependencies
type testFixture struct {
	userRepo *users.InMemoryRepo
	ledger   refresh.Ledger
	mailer   *recordingMailer
	redis    *miniredis.Miniredis
	service  *auth.Service
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	userRepo := users.NewInMemoryRepo()
	ledger := refresh.NewRedisLedger(client)
	mailer := &recordingMailer{}

	manager := token.New(token.NewHMACSigner(secretStr),
		token.WithIssuer("com.bizaudo.server"),
		token.WithTokenExpiry(15*time.Minute, 7*24*time.Hour),
	)

	service, err := auth.NewService(
		auth.Repos{Users: userRepo},
		auth.Stores{
			RefreshTokens: ledger,
			Reset:         reset.NewStore(client, 10*time.Minute, 15*time.Minute),
			Verification:  verification.NewStore(client, 30*time.Minute),
		},
		manager,
		token.NewHasher(hashSecretStr),
		auth.WithMailer(mailer),
		auth.WithFrontendBaseURL(frontendURL),
		auth.WithBcryptCost(4), // keep the test suite fast
	)
	require.NoError(t, err)

	return &testFixture{
		userRepo: userRepo,
		ledger:   ledger,
		mailer:   mailer,
		redis:    mr,
		service:  service,
	}
}

func registerTestUser(t *testing.T, f *testFixture) *users.User {
	t.Helper()
	user, err := f.service.Register(context.Background(), auth.RegisterRequest{
		Email:           testUserEmail,
		Password:        testUserPassword,
		ConfirmPassword: testUserPassword,
		FirstName:       "John",
		LastName:        "Doe",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterCreatesUserWithProfile(t *testing.T) {
	f := setupTestFixture(t)

	user := registerTestUser(t, f)
	require.Equal(t, testUserEmail, user.Email)
	require.True(t, user.Enabled)
	require.False(t, user.EmailVerified)
	require.NotNil(t, user.Profile)
	require.Equal(t, "John", user.Profile.FirstName)
	require.Equal(t, "Doe", user.Profile.LastName)

	// Registration mails a verification link.
	f.mailer.waitForMail(t, 1)
	require.Equal(t, testUserEmail, f.mailer.last().To)
	require.Contains(t, f.mailer.last().Body, frontendURL+"/verify-email?token=")
}

func TestRegisterWithCredentialsOnly(t *testing.T) {
	f := setupTestFixture(t)

	// Name fields are optional; the profile starts empty.
	user, err := f.service.Register(context.Background(), auth.RegisterRequest{
		Email:           "bob@x.com",
		Password:        testUserPassword,
		ConfirmPassword: testUserPassword,
	})
	require.NoError(t, err)
	require.NotNil(t, user.Profile)
	require.Empty(t, user.Profile.FirstName)
	require.Empty(t, user.Profile.LastName)

	_, _, err = f.service.Login(context.Background(), "bob@x.com", testUserPassword)
	require.NoError(t, err)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := setupTestFixture(t)
	registerTestUser(t, f)

	_, err := f.service.Register(context.Background(), auth.RegisterRequest{
		Email:           "John.Doe@Example.com", // same address, different case
		Password:        testUserPassword,
		ConfirmPassword: testUserPassword,
		FirstName:       "John",
		LastName:        "Doe",
	})
	require.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestRegisterCollectsValidationViolations(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Register(context.Background(), auth.RegisterRequest{
		Email:           "not-an-email",
		Password:        "weak",
		ConfirmPassword: "weaker",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.NotEmpty(t, vErr.Violations)
}

func TestLoginIssuesTokenPair(t *testing.T) {
	f := setupTestFixture(t)
	registered := registerTestUser(t, f)
	ctx := context.Background()

	pair, user, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "bearer", pair.TokenType)
	require.Equal(t, int((15 * time.Minute).Seconds()), pair.ExpiresIn)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := setupTestFixture(t)
	registerTestUser(t, f)
	ctx := context.Background()

	_, _, err := f.service.Login(ctx, testUserEmail, "wrong-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, _, err = f.service.Login(ctx, "nobody@example.com", testUserPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestLoginRejectsDisabledUser(t *testing.T) {
	f := setupTestFixture(t)
	user := registerTestUser(t, f)
	ctx := context.Background()

	f.userRepo.SetEnabled(user.ID, false)

	_, _, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := setupTestFixture(t)
	registerTestUser(t, f)
	ctx := context.Background()

	pair, _, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)

	rotated, user, err := f.service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, testUserEmail, user.Email)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The consumed token is dead; the replacement works.
	_, _, err = f.service.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, _, err = f.service.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	f := setupTestFixture(t)
	user := registerTestUser(t, f)
	ctx := context.Background()

	// Signed with the right key but never recorded in the ledger.
	forger := token.New(token.NewHMACSigner(secretStr))
	forged, err := forger.IssueRefresh(user)
	require.NoError(t, err)

	_, _, err = f.service.Refresh(ctx, forged)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestLogoutRevokesSingleToken(t *testing.T) {
	f := setupTestFixture(t)
	registerTestUser(t, f)
	ctx := context.Background()

	first, _, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)
	second, _, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, first.RefreshToken, false))

	_, _, err = f.service.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	// The other device is untouched.
	_, _, err = f.service.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)

	// Logging out twice is fine.
	require.NoError(t, f.service.Logout(ctx, first.RefreshToken, false))
}

func TestLogoutAllDevices(t *testing.T) {
	f := setupTestFixture(t)
	registerTestUser(t, f)
	ctx := context.Background()

	first, _, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)
	second, _, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, first.RefreshToken, true))

	_, _, err = f.service.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	_, _, err = f.service.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	f := setupTestFixture(t)
	user := registerTestUser(t, f)
	ctx := context.Background()

	pair, _, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)

	err = f.service.ChangePassword(ctx, user.ID, "wrong-current", `N3w!Password`, `N3w!Password`)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	err = f.service.ChangePassword(ctx, user.ID, testUserPassword, testUserPassword, testUserPassword)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	err = f.service.ChangePassword(ctx, user.ID, testUserPassword, `N3w!Password`, `N3w!Password`)
	require.NoError(t, err)

	// Old sessions die with the old password.
	_, _, err = f.service.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, _, err = f.service.Login(ctx, testUserEmail, testUserPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, _, err = f.service.Login(ctx, testUserEmail, `N3w!Password`)
	require.NoError(t, err)
}

var resetCodePattern = regexp.MustCompile(`\b(\d{6})\b`)

func TestPasswordResetEndToEnd(t *testing.T) {
	f := setupTestFixture(t)
	registerTestUser(t, f)
	ctx := context.Background()

	pair, _, err := f.service.Login(ctx, testUserEmail, testUserPassword)
	require.NoError(t, err)

	require.NoError(t, f.service.RequestPasswordReset(ctx, testUserEmail))
	f.mailer.waitForMail(t, 2) // verification mail + reset mail

	match := resetCodePattern.FindStringSubmatch(f.mailer.last().Body)
	require.NotNil(t, match)
	code := match[1]

	resetToken, err := f.service.CheckPasswordResetCode(ctx, testUserEmail, code)
	require.NoError(t, err)
	require.NotEmpty(t, resetToken)

	require.NoError(t, f.service.SubmitNewPassword(ctx, testUserEmail, resetToken, `R3set!Pass`, `R3set!Pass`))

	// The reset token is single use.
	err = f.service.SubmitNewPassword(ctx, testUserEmail, resetToken, `An0ther!Pass`, `An0ther!Pass`)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	// Live sessions were revoked and the old password no longer works.
	_, _, err = f.service.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	_, _, err = f.service.Login(ctx, testUserEmail, testUserPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, _, err = f.service.Login(ctx, testUserEmail, `R3set!Pass`)
	require.NoError(t, err)
}

func TestPasswordResetRejectsWrongCode(t *testing.T) {
	f := setupTestFixture(t)
	registerTestUser(t, f)
	ctx := context.Background()

	require.NoError(t, f.service.RequestPasswordReset(ctx, testUserEmail))
	f.mailer.waitForMail(t, 2)

	_, err := f.service.CheckPasswordResetCode(ctx, testUserEmail, "000000")
	if err == nil {
		t.Skip("generated code happened to be 000000")
	}
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.service.RequestPasswordReset(context.Background(), "nobody@example.com"))
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, f.mailer.count())
}

func TestPolicyFailureDoesNotBurnResetToken(t *testing.T) {
	f := setupTestFixture(t)
	registerTestUser(t, f)
	ctx := context.Background()

	require.NoError(t, f.service.RequestPasswordReset(ctx, testUserEmail))
	f.mailer.waitForMail(t, 2)

	match := resetCodePattern.FindStringSubmatch(f.mailer.last().Body)
	require.NotNil(t, match)

	resetToken, err := f.service.CheckPasswordResetCode(ctx, testUserEmail, match[1])
	require.NoError(t, err)

	err = f.service.SubmitNewPassword(ctx, testUserEmail, resetToken, "weak", "weak")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	// The token survives a rejected password.
	require.NoError(t, f.service.SubmitNewPassword(ctx, testUserEmail, resetToken, `R3set!Pass`, `R3set!Pass`))
}

var verifyLinkPattern = regexp.MustCompile(`verify-email\?token=([0-9a-f-]+)`)

func TestEmailVerificationEndToEnd(t *testing.T) {
	f := setupTestFixture(t)
	user := registerTestUser(t, f)
	ctx := context.Background()

	f.mailer.waitForMail(t, 1)
	match := verifyLinkPattern.FindStringSubmatch(f.mailer.last().Body)
	require.NotNil(t, match)
	verificationToken := match[1]

	require.NoError(t, f.service.VerifyEmail(ctx, verificationToken))

	stored, err := f.userRepo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, stored.EmailVerified)

	// The token is single use.
	err = f.service.VerifyEmail(ctx, verificationToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestVerifyEmailRejectsUnknownToken(t *testing.T) {
	f := setupTestFixture(t)

	err := f.service.VerifyEmail(context.Background(), "nope")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
