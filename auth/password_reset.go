package auth

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/iforddow/bizaudo-server/auth/reset"
	apperrors "github.com/iforddow/bizaudo-server/internal/errors"
	"github.com/iforddow/bizaudo-server/mail"
	"github.com/iforddow/bizaudo-server/password"
	"github.com/iforddow/bizaudo-server/users"
)

// RequestPasswordReset starts phase one of a reset: a short numeric code is
// generated for the account and mailed to it. An unknown address gets the
// same silent success as a known one, and a repeat request replaces any code
// still pending.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "Service.RequestPasswordReset GetByEmail")
	}

	code, err := s.stores.Reset.GenerateCode(ctx, user.ID)
	if err != nil {
		return errors.Wrap(err, "Service.RequestPasswordReset GenerateCode")
	}

	body := fmt.Sprintf(
		"Your password reset code is %s.\r\n\r\nIt expires in 10 minutes. If you did not request a reset, you can ignore this email.",
		code)
	mail.SendAsync(s.mailer, user.Email, "Your password reset code", body)
	return nil
}

// CheckPasswordResetCode spends the code and swaps it for a single-use reset
// token. The code is consumed whether or not the caller goes on to use the
// token; a wrong code leaves the stored one intact.
func (s *Service) CheckPasswordResetCode(ctx context.Context, email, code string) (string, error) {
	user, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return "", apperrors.ErrInvalidToken
		}
		return "", errors.Wrap(err, "Service.CheckPasswordResetCode GetByEmail")
	}

	if err := s.stores.Reset.ConsumeCode(ctx, user.ID, code); err != nil {
		if errors.Is(err, reset.ErrNotFound) {
			return "", apperrors.ErrInvalidToken
		}
		return "", errors.Wrap(err, "Service.CheckPasswordResetCode ConsumeCode")
	}

	resetToken, err := s.stores.Reset.IssueToken(ctx, user.ID)
	if err != nil {
		return "", errors.Wrap(err, "Service.CheckPasswordResetCode IssueToken")
	}
	return resetToken, nil
}

// SubmitNewPassword finishes the reset. All checks run against a live but
// unspent token, so a rejected password does not burn it; the token is only
// consumed once the replacement is acceptable, and exactly one of two
// concurrent submissions wins that consume. On success every live refresh
// token for the account is revoked.
func (s *Service) SubmitNewPassword(ctx context.Context, email, resetToken, newPassword, confirm string) error {
	ownerID, err := s.stores.Reset.LookupToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, reset.ErrNotFound) {
			return apperrors.ErrInvalidToken
		}
		return errors.Wrap(err, "Service.SubmitNewPassword LookupToken")
	}

	user, err := s.repos.Users.GetByID(ctx, ownerID)
	if err != nil {
		return apperrors.ErrInvalidToken
	}
	if email != "" && normalizeEmail(email) != user.Email {
		return apperrors.ErrInvalidToken
	}

	violations := password.ValidateChange(newPassword, confirm, func(candidate string) bool {
		return users.CheckPasswordHash(candidate, user.PasswordHash)
	})
	if len(violations) > 0 {
		return apperrors.NewValidation(violations)
	}

	if _, err := s.stores.Reset.ConsumeToken(ctx, resetToken); err != nil {
		if errors.Is(err, reset.ErrNotFound) {
			return apperrors.ErrInvalidToken
		}
		return errors.Wrap(err, "Service.SubmitNewPassword ConsumeToken")
	}

	hash, err := users.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return errors.Wrap(err, "Service.SubmitNewPassword HashPassword")
	}
	if err := s.repos.Users.UpdatePasswordHash(ctx, ownerID, hash); err != nil {
		return errors.Wrap(err, "Service.SubmitNewPassword UpdatePasswordHash")
	}

	if err := s.stores.RefreshTokens.RevokeAll(ctx, ownerID); err != nil {
		log.Warn().Err(err).Msg("failed to revoke refresh tokens after password reset")
	}
	return nil
}
