// Package models holds the user aggregate and its invariants.
package models

import (
	"net/mail"
	"strings"

	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
)

// Role classifies a user. The set is closed; anything else is rejected at
// the boundary.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
	RoleTech  Role = "TECH"
)

// ParseRole validates an incoming role string. Unknown values are a
// data-integrity error, never silently defaulted.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleUser, RoleTech:
		return Role(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// User is the aggregate root for an account. A user owns devices; deleting
// the user cascades to those devices and their repairs.
//
// Invariants:
//   - Username is 3-50 characters and globally unique
//   - Email is syntactically valid and globally unique
//   - Password is at least 6 characters (stored as given; hashing is out of scope)
type User struct {
	ID       id.UserID
	Username string
	Email    string
	Password string
	Role     Role
}

// View is the read model handed to transports. It never carries the
// password.
type View struct {
	ID       id.UserID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
}

// NewView projects a user into its transport shape.
func NewView(u *User) *View {
	return &View{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

// NewUser validates field invariants and builds a user without an ID; the
// store assigns one on first insert. Uniqueness is the store's concern.
func NewUser(username, email, password string, role Role) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	return &User{
		Username: username,
		Email:    email,
		Password: password,
		Role:     role,
	}, nil
}

func validateUsername(username string) error {
	if username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if len(username) < 3 || len(username) > 50 {
		return dErrors.New(dErrors.CodeValidation, "username must be between 3 and 50 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
	}
	return nil
}

// ValidatePassword is exported because updates accept an optional new
// password that must meet the same rule when supplied.
func ValidatePassword(password string) error {
	if password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	if len(password) < 6 {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 6 characters")
	}
	return nil
}
