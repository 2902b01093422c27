package handler

import (
	"strings"
	"time"

	"mobilefix/internal/repairs/models"
	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
)

// RepairRequest is the HTTP request body for POST /repairs and
// PUT /repairs/{id}. Dates travel as YYYY-MM-DD strings; request_date is
// never accepted from the client.
type RepairRequest struct {
	Description   string  `json:"description"`
	EstimatedDate string  `json:"estimated_date,omitempty"`
	Status        string  `json:"status,omitempty"`
	Cost          float64 `json:"cost"`
	DeviceID      string  `json:"device_id"`
	TechnicianID  string  `json:"technician_id,omitempty"`

	parsedEstimatedDate *time.Time
	parsedDeviceID      id.DeviceID
	parsedTechnicianID  *id.UserID
}

// Validate parses references and dates; description, cost, and status rules
// live in the domain model and service.
func (r *RepairRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Description = strings.TrimSpace(r.Description)
	r.Status = strings.TrimSpace(r.Status)

	deviceID, err := id.ParseDeviceID(r.DeviceID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "device_id must be a valid id")
	}
	r.parsedDeviceID = deviceID

	if r.TechnicianID != "" {
		technicianID, err := id.ParseUserID(r.TechnicianID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "technician_id must be a valid id")
		}
		r.parsedTechnicianID = &technicianID
	}

	if r.EstimatedDate != "" {
		estimated, err := time.Parse(models.DateLayout, r.EstimatedDate)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "estimated_date must be formatted as YYYY-MM-DD")
		}
		r.parsedEstimatedDate = &estimated
	}
	return nil
}

// ParsedDeviceID returns the device id populated by Validate.
func (r *RepairRequest) ParsedDeviceID() id.DeviceID {
	return r.parsedDeviceID
}

// ParsedTechnicianID returns the optional technician id populated by
// Validate; nil when absent.
func (r *RepairRequest) ParsedTechnicianID() *id.UserID {
	return r.parsedTechnicianID
}

// ParsedEstimatedDate returns the optional estimated date populated by
// Validate; nil when absent.
func (r *RepairRequest) ParsedEstimatedDate() *time.Time {
	return r.parsedEstimatedDate
}

// AssignTechnicianRequest is the body for PATCH /repairs/{id}/technician.
type AssignTechnicianRequest struct {
	TechnicianID string `json:"technician_id"`

	parsedTechnicianID id.UserID
}

func (r *AssignTechnicianRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	technicianID, err := id.ParseUserID(r.TechnicianID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "technician_id must be a valid id")
	}
	r.parsedTechnicianID = technicianID
	return nil
}

// ParsedTechnicianID returns the technician id populated by Validate.
func (r *AssignTechnicianRequest) ParsedTechnicianID() id.UserID {
	return r.parsedTechnicianID
}

// UpdateStatusRequest is the body for PATCH /repairs/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}
