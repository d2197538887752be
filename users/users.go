package users

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Profile is the per-user profile row. Every user owns exactly one profile;
// the pair is created in a single transaction at registration.
type Profile struct {
	ID        uuid.UUID  `json:"id,omitempty"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type User struct {
	ID           uuid.UUID `json:"id,omitempty"`    // Unique identifier for the user
	Email        string    `json:"email,omitempty"` // User's email address
	PasswordHash string    `json:"-"`               // Hashed version of the user's password - never serialize
	CreatedAt    time.Time `json:"created_at,omitempty"`
	LastActive   time.Time `json:"last_active,omitempty"`

	Enabled       bool `json:"enabled"`        // Disabled users cannot log in
	EmailVerified bool `json:"email_verified"` // Set once the verification link is followed

	// Capability set computed once at load time from the role tables.
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	Profile *Profile `json:"profile,omitempty"`
}

// HasRole checks if the user carries a specific role code
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if the user carries a specific permission code
func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
