package auth

import (
	"regexp"
	"strings"

	"github.com/iforddow/bizaudo-server/password"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// validateRegistration collects every violation in a registration request so
// the client can surface them together.
func validateRegistration(req RegisterRequest) []string {
	var violations []string

	if !ValidEmail(req.Email) {
		violations = append(violations, "email address is not valid")
	}

	violations = append(violations, password.ValidateWithConfirmation(req.Password, req.ConfirmPassword)...)
	return violations
}

// ValidEmail reports whether the address has a plausible mailbox@domain
// shape. Real deliverability is proven by the verification mail, not here.
func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return false
	}
	return emailPattern.MatchString(email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
