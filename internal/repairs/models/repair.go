// Package models holds the repair aggregate, its status workflow and its
// invariants.
package models

import (
	"strings"
	"time"

	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
)

// DateLayout is the wire format for repair dates; repairs track days, not
// instants.
const DateLayout = "2006-01-02"

// Status is the repair workflow state. The set is closed.
//
// PENDING is the initial state. The only state-aware transition anywhere is
// PENDING -> IN_PROGRESS as a side effect of assigning a technician;
// UpdateStatus is an unconstrained override, so COMPLETED and CANCELLED are
// not terminal.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// ParseStatus validates an incoming status string. Unknown values are a
// data-integrity error, never silently defaulted.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown status %q", s)
}

func (s Status) String() string { return string(s) }

// Repair is one unit of work on a device, optionally assigned to a
// technician.
//
// Invariants:
//   - Description is non-blank, at most 500 characters
//   - Cost is strictly positive
//   - RequestDate is stamped by the store at creation and never modified
//   - DeviceID resolves to an existing device
//   - TechnicianID, when set, resolves to an existing user (any role)
type Repair struct {
	ID            id.RepairID
	Description   string
	RequestDate   time.Time
	EstimatedDate *time.Time
	Status        Status
	Cost          float64
	DeviceID      id.DeviceID
	TechnicianID  *id.UserID
}

// Assigned reports whether a technician is set.
func (r *Repair) Assigned() bool {
	return r.TechnicianID != nil
}

// AssignTechnician sets the technician and, only when the repair is still
// PENDING, advances the status to IN_PROGRESS. In any other state only the
// assignment changes.
func (r *Repair) AssignTechnician(technicianID id.UserID) {
	r.TechnicianID = &technicianID
	if r.Status == StatusPending {
		r.Status = StatusInProgress
	}
}

// View is the outward-facing shape of a repair. Device and technician
// display fields are resolved by explicit secondary lookups.
type View struct {
	ID                 id.RepairID  `json:"id"`
	Description        string       `json:"description"`
	RequestDate        string       `json:"request_date"`
	EstimatedDate      *string      `json:"estimated_date,omitempty"`
	Status             Status       `json:"status"`
	Cost               float64      `json:"cost"`
	DeviceID           id.DeviceID  `json:"device_id"`
	DeviceBrand        string       `json:"device_brand"`
	DeviceModel        string       `json:"device_model"`
	TechnicianID       *id.UserID   `json:"technician_id,omitempty"`
	TechnicianUsername string       `json:"technician_username,omitempty"`
}

// NewRepair validates field invariants. Status defaults to PENDING when
// empty; RequestDate stays zero until the store stamps it at first insert.
func NewRepair(description string, estimatedDate *time.Time, status Status, cost float64, deviceID id.DeviceID) (*Repair, error) {
	description = strings.TrimSpace(description)

	if err := ValidateFields(description, cost); err != nil {
		return nil, err
	}
	if deviceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "device id is required")
	}
	if status == "" {
		status = StatusPending
	}

	return &Repair{
		Description:   description,
		EstimatedDate: estimatedDate,
		Status:        status,
		Cost:          cost,
		DeviceID:      deviceID,
	}, nil
}

// ValidateFields checks description and cost constraints; updates reuse it
// since they replace both fields unconditionally.
func ValidateFields(description string, cost float64) error {
	if description == "" {
		return dErrors.New(dErrors.CodeValidation, "description is required")
	}
	if len(description) > 500 {
		return dErrors.New(dErrors.CodeValidation, "description must be at most 500 characters")
	}
	if cost <= 0 {
		return dErrors.New(dErrors.CodeValidation, "cost must be greater than zero")
	}
	return nil
}
