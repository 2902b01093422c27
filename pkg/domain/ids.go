// Package domain provides typed identifiers shared across bounded contexts.
//
// IDs are UUID-backed domain primitives. Parsing enforces the invariant that
// IDs are valid, non-empty, non-nil UUIDs at trust boundaries, so services
// never see a malformed identifier.
package domain

import (
	"github.com/google/uuid"

	dErrors "mobilefix/pkg/domain-errors"
)

// UserID identifies a user record.
type UserID uuid.UUID

// DeviceID identifies a device record.
type DeviceID uuid.UUID

// RepairID identifies a repair record.
type RepairID uuid.UUID

// NewUserID generates a fresh user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewDeviceID generates a fresh device ID.
func NewDeviceID() DeviceID { return DeviceID(uuid.New()) }

// NewRepairID generates a fresh repair ID.
func NewRepairID() RepairID { return RepairID(uuid.New()) }

func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id DeviceID) String() string { return uuid.UUID(id).String() }
func (id RepairID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DeviceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RepairID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs render as their canonical UUID string in JSON.
func (id UserID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id DeviceID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id RepairID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DeviceID) UnmarshalText(text []byte) error {
	parsed, err := ParseDeviceID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RepairID) UnmarshalText(text []byte) error {
	parsed, err := ParseRepairID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseUserID validates and converts an incoming ID string.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseDeviceID validates and converts an incoming ID string.
func ParseDeviceID(s string) (DeviceID, error) {
	u, err := parseUUID(s, "device id")
	return DeviceID(u), err
}

// ParseRepairID validates and converts an incoming ID string.
func ParseRepairID(s string) (RepairID, error) {
	u, err := parseUUID(s, "repair id")
	return RepairID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s is required", label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s is not a valid UUID", label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeBadRequest, "%s must not be the nil UUID", label)
	}
	return u, nil
}
