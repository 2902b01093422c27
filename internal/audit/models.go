package audit

import "time"

// Actions recorded by the shop. Values are stable identifiers, not display text.
const (
	ActionUserCreated        = "user.created"
	ActionUserUpdated        = "user.updated"
	ActionUserDeleted        = "user.deleted"
	ActionDeviceCreated      = "device.created"
	ActionDeviceUpdated      = "device.updated"
	ActionDeviceDeleted      = "device.deleted"
	ActionRepairCreated      = "repair.created"
	ActionRepairUpdated      = "repair.updated"
	ActionRepairDeleted      = "repair.deleted"
	ActionTechnicianAssigned = "repair.technician_assigned"
	ActionStatusChanged      = "repair.status_changed"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	RequestID string
	Action    string
	Entity    string
	EntityID  string
	Detail    string
}
