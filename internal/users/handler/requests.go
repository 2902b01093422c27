package handler

import (
	"strings"

	dErrors "mobilefix/pkg/domain-errors"
)

// UserRequest is the HTTP request body for POST /users and PUT /users/{id}.
// On update a blank password keeps the stored one.
type UserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Validate checks the fields the handler can judge without stores. Length,
// format, and role rules live in the domain model; this only rejects
// obviously empty requests early.
func (r *UserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.Role = strings.TrimSpace(r.Role)

	if r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Role == "" {
		return dErrors.New(dErrors.CodeValidation, "role is required")
	}
	return nil
}
