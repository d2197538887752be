// Package password implements the password policy applied at registration,
// password change, and password reset.
package password

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	MinLength = 8
	MaxLength = 32
)

// specialChars is the punctuation set accepted as a "special character".
const specialChars = `!@#$%^&*(),.?":{}|<>`

// Validate checks a password against the policy and returns the list of
// violations, empty when the password passes. An empty password
// short-circuits with a single violation; callers treat any non-empty list
// as input rejection, not as a failure of the call itself.
func Validate(pw string) []string {
	var violations []string

	if pw == "" {
		return []string{"Password cannot be empty"}
	}

	if len(pw) < MinLength || len(pw) > MaxLength {
		violations = append(violations, fmt.Sprintf("Password must be between %d and %d characters long", MinLength, MaxLength))
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range pw {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case strings.ContainsRune(specialChars, char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		violations = append(violations, "Password must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "Password must contain at least one lowercase letter")
	}
	if !hasNumber {
		violations = append(violations, "Password must contain at least one digit")
	}
	if !hasSpecial {
		violations = append(violations, "Password must contain at least one special character")
	}

	return violations
}

// ValidateWithConfirmation validates pw and appends a mismatch violation
// when the confirmation differs.
func ValidateWithConfirmation(pw, confirm string) []string {
	violations := Validate(pw)
	if pw != confirm {
		violations = append(violations, "Passwords do not match")
	}
	return violations
}

// ValidateChange validates a password change. matchesCurrent reports whether
// a candidate equals the caller's current password; it is the same hash
// comparison used at login, so the old password is never compared in
// plaintext here.
func ValidateChange(pw, confirm string, matchesCurrent func(string) bool) []string {
	violations := ValidateWithConfirmation(pw, confirm)
	if matchesCurrent != nil && matchesCurrent(pw) {
		violations = append(violations, "New password cannot be the same as the old password")
	}
	return violations
}
