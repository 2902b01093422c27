package handler

import (
	"strings"

	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
)

// DeviceRequest is the HTTP request body for POST /devices and
// PUT /devices/{id}.
type DeviceRequest struct {
	Brand   string `json:"brand"`
	Model   string `json:"model"`
	OwnerID string `json:"owner_id"`

	parsedOwnerID id.UserID
}

// Validate parses the owner reference; brand and model rules live in the
// domain model.
func (r *DeviceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Brand = strings.TrimSpace(r.Brand)
	r.Model = strings.TrimSpace(r.Model)

	ownerID, err := id.ParseUserID(r.OwnerID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "owner_id must be a valid id")
	}
	r.parsedOwnerID = ownerID
	return nil
}

// ParsedOwnerID returns the owner id populated by Validate.
func (r *DeviceRequest) ParsedOwnerID() id.UserID {
	return r.parsedOwnerID
}
