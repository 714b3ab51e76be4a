package users

import (
	"net/mail"
	"strings"
	"time"

	"github.com/wolfman30/diagnostic-booking-api/internal/auth"
)

// Status gates whether a user may act on the platform.
type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
)

// User is a registered patient or staff member.
type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Avatar    string    `json:"avatar,omitempty"`
	Role      auth.Role `json:"role"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user may call admin-guarded endpoints.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == auth.RoleAdmin && u.Status != StatusBlocked
}

// CreateUserRequest is the registration payload.
type CreateUserRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// Validate normalizes and validates the registration payload.
func (r *CreateUserRequest) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	if r.Email == "" {
		return ErrMissingEmail
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseStatus validates a status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusActive:
		return StatusActive, nil
	case StatusBlocked:
		return StatusBlocked, nil
	default:
		return "", ErrInvalidStatus
	}
}
