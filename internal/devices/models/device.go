// Package models holds the device aggregate and its invariants.
package models

import (
	"strings"

	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
)

// Device is a customer-owned unit brought in for repair. Every device
// belongs to exactly one owner; deleting the device cascades to its repairs.
//
// Invariants:
//   - Brand is non-blank, at most 50 characters
//   - Model is non-blank, at most 100 characters
//   - OwnerID resolves to an existing user
type Device struct {
	ID      id.DeviceID
	Brand   string
	Model   string
	OwnerID id.UserID
}

// View is the outward-facing shape of a device. The owner username is
// resolved by an explicit secondary lookup, never loaded implicitly.
type View struct {
	ID            id.DeviceID `json:"id"`
	Brand         string      `json:"brand"`
	Model         string      `json:"model"`
	OwnerID       id.UserID   `json:"owner_id"`
	OwnerUsername string      `json:"owner_username"`
}

// NewDevice validates field invariants; the owner reference is checked by
// the service against the user store.
func NewDevice(brand, model string, ownerID id.UserID) (*Device, error) {
	brand = strings.TrimSpace(brand)
	model = strings.TrimSpace(model)

	if err := ValidateFields(brand, model); err != nil {
		return nil, err
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owner id is required")
	}

	return &Device{Brand: brand, Model: model, OwnerID: ownerID}, nil
}

// ValidateFields checks brand and model constraints; updates reuse it since
// they replace both fields unconditionally.
func ValidateFields(brand, model string) error {
	if brand == "" {
		return dErrors.New(dErrors.CodeValidation, "brand is required")
	}
	if len(brand) > 50 {
		return dErrors.New(dErrors.CodeValidation, "brand must be at most 50 characters")
	}
	if model == "" {
		return dErrors.New(dErrors.CodeValidation, "model is required")
	}
	if len(model) > 100 {
		return dErrors.New(dErrors.CodeValidation, "model must be at most 100 characters")
	}
	return nil
}
