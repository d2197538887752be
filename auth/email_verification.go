package auth

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/iforddow/bizaudo-server/auth/verification"
	apperrors "github.com/iforddow/bizaudo-server/internal/errors"
	"github.com/iforddow/bizaudo-server/mail"
	"github.com/iforddow/bizaudo-server/users"
)

// RequestEmailVerification issues a fresh verification token for the address
// and mails a confirmation link. Unknown and already-verified addresses get
// the same silent success.
func (s *Service) RequestEmailVerification(ctx context.Context, email string) error {
	user, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "Service.RequestEmailVerification GetByEmail")
	}
	if user.EmailVerified {
		return nil
	}

	s.sendVerificationMail(ctx, user.Email)
	return nil
}

// VerifyEmail spends a verification token and marks the account it was
// mailed to as verified.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	email, err := s.stores.Verification.Consume(ctx, rawToken)
	if err != nil {
		if errors.Is(err, verification.ErrNotFound) {
			return apperrors.ErrInvalidToken
		}
		return errors.Wrap(err, "Service.VerifyEmail Consume")
	}

	user, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return apperrors.ErrInvalidToken
		}
		return errors.Wrap(err, "Service.VerifyEmail GetByEmail")
	}

	if err := s.repos.Users.SetEmailVerified(ctx, user.ID, true); err != nil {
		return errors.Wrap(err, "Service.VerifyEmail SetEmailVerified")
	}
	return nil
}

func (s *Service) sendVerificationMail(ctx context.Context, email string) {
	verificationToken, err := s.stores.Verification.Issue(ctx, email)
	if err != nil {
		log.Warn().Err(err).Msg("failed to issue email verification token")
		return
	}

	link := fmt.Sprintf("%s/verify-email?token=%s", s.frontendURL, verificationToken)
	body := fmt.Sprintf(
		"Please confirm your email address by opening the link below:\r\n\r\n%s\r\n\r\nThe link expires in 30 minutes.",
		link)
	mail.SendAsync(s.mailer, email, "Verify your email address", body)
}
