// Package service orchestrates the repair workflow: intake against a
// registered device, optional technician assignment, status changes, and
// the cost roll-up per device.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mobilefix/internal/audit"
	devicemodels "mobilefix/internal/devices/models"
	"mobilefix/internal/platform/metrics"
	"mobilefix/internal/repairs/models"
	usermodels "mobilefix/internal/users/models"
	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
	"mobilefix/pkg/platform/sentinel"
)

// RepairStore is the persistence contract the service needs.
type RepairStore interface {
	Create(ctx context.Context, repair *models.Repair) error
	Update(ctx context.Context, repair *models.Repair) error
	FindByID(ctx context.Context, repairID id.RepairID) (*models.Repair, error)
	ListAll(ctx context.Context) ([]*models.Repair, error)
	ListAllOrderedByCostDesc(ctx context.Context) ([]*models.Repair, error)
	ListByDeviceID(ctx context.Context, deviceID id.DeviceID) ([]*models.Repair, error)
	ListByDeviceOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.Repair, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Repair, error)
	ListByStatusOrderedByRequestDateDesc(ctx context.Context, status models.Status) ([]*models.Repair, error)
	ListByTechnicianID(ctx context.Context, technicianID id.UserID) ([]*models.Repair, error)
	ListByStatusAndTechnician(ctx context.Context, status models.Status, technicianID id.UserID) ([]*models.Repair, error)
	ListByRequestDateRange(ctx context.Context, from, to time.Time) ([]*models.Repair, error)
	ListUnassigned(ctx context.Context) ([]*models.Repair, error)
	ListAssigned(ctx context.Context) ([]*models.Repair, error)
	CountByTechnicianAndStatus(ctx context.Context, technicianID id.UserID, status models.Status) (int64, error)
	TotalCompletedCostByDevice(ctx context.Context, deviceID id.DeviceID) (float64, error)
	Delete(ctx context.Context, repairID id.RepairID) error
}

// DeviceResolver validates device references and supplies display fields
// for views.
type DeviceResolver interface {
	FindByID(ctx context.Context, deviceID id.DeviceID) (*devicemodels.Device, error)
}

// UserResolver validates technician and owner references.
type UserResolver interface {
	FindByID(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	ExistsByID(ctx context.Context, userID id.UserID) (bool, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service owns the repair workflow rules.
type Service struct {
	repairs        RepairStore
	devices        DeviceResolver
	users          UserResolver
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(repairs RepairStore, devices DeviceResolver, users UserResolver, opts ...Option) *Service {
	s := &Service{repairs: repairs, devices: devices, users: users}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the writable fields of a repair. Status may be
// empty, in which case the repair starts PENDING.
type CreateParams struct {
	Description   string
	EstimatedDate *time.Time
	Status        string
	Cost          float64
	DeviceID      id.DeviceID
	TechnicianID  *id.UserID
}

// Create registers a repair for an existing device. The request date is
// stamped by the store, never taken from the caller.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.View, error) {
	status, err := s.parseOptionalStatus(p.Status)
	if err != nil {
		return nil, err
	}

	repair, err := models.NewRepair(p.Description, p.EstimatedDate, status, p.Cost, p.DeviceID)
	if err != nil {
		return nil, err
	}

	device, err := s.resolveDevice(ctx, p.DeviceID)
	if err != nil {
		return nil, err
	}

	var technician *usermodels.User
	if p.TechnicianID != nil {
		technician, err = s.resolveTechnician(ctx, *p.TechnicianID)
		if err != nil {
			return nil, err
		}
		repair.TechnicianID = p.TechnicianID
	}

	if err := s.repairs.Create(ctx, repair); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create repair")
	}

	s.logAudit(ctx, audit.ActionRepairCreated, repair.ID.String(), string(repair.Status))
	s.metrics.IncrementRepairsCreated()
	if repair.Status == models.StatusCompleted {
		s.metrics.IncrementRepairsCompleted()
	}

	return s.view(repair, device, technician), nil
}

// GetByID returns a single repair with display fields resolved.
func (s *Service) GetByID(ctx context.Context, repairID id.RepairID) (*models.View, error) {
	repair, err := s.findByID(ctx, repairID)
	if err != nil {
		return nil, err
	}
	return s.resolveView(ctx, repair)
}

// ListAll returns every repair, optionally ordered by cost descending.
func (s *Service) ListAll(ctx context.Context, orderedByCostDesc bool) ([]*models.View, error) {
	var (
		repairs []*models.Repair
		err     error
	)
	if orderedByCostDesc {
		repairs, err = s.repairs.ListAllOrderedByCostDesc(ctx)
	} else {
		repairs, err = s.repairs.ListAll(ctx)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list repairs")
	}
	return s.resolveViews(ctx, repairs)
}

// ListByDeviceID returns the device's repairs. The device must exist even
// when the result is empty.
func (s *Service) ListByDeviceID(ctx context.Context, deviceID id.DeviceID) ([]*models.View, error) {
	if _, err := s.resolveDevice(ctx, deviceID); err != nil {
		return nil, err
	}
	repairs, err := s.repairs.ListByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list repairs")
	}
	return s.resolveViews(ctx, repairs)
}

// ListByStatus filters by workflow state, optionally newest first.
func (s *Service) ListByStatus(ctx context.Context, status string, orderedByDateDesc bool) ([]*models.View, error) {
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	var repairs []*models.Repair
	if orderedByDateDesc {
		repairs, err = s.repairs.ListByStatusOrderedByRequestDateDesc(ctx, parsed)
	} else {
		repairs, err = s.repairs.ListByStatus(ctx, parsed)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list repairs")
	}
	return s.resolveViews(ctx, repairs)
}

// ListByStatusAndTechnician filters by state and assignee together.
func (s *Service) ListByStatusAndTechnician(ctx context.Context, status string, technicianID id.UserID) ([]*models.View, error) {
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolveTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	repairs, err := s.repairs.ListByStatusAndTechnician(ctx, parsed, technicianID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list repairs")
	}
	return s.resolveViews(ctx, repairs)
}

// ListByTechnicianID returns the technician's workload. The technician must
// exist even when the result is empty.
func (s *Service) ListByTechnicianID(ctx context.Context, technicianID id.UserID) ([]*models.View, error) {
	if _, err := s.resolveTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	repairs, err := s.repairs.ListByTechnicianID(ctx, technicianID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list repairs")
	}
	return s.resolveViews(ctx, repairs)
}

// ListByOwnerID collects repairs across all of the owner's devices in a
// single store query joining through the devices table.
func (s *Service) ListByOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.View, error) {
	exists, err := s.users.ExistsByID(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve owner")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "owner not found")
	}

	repairs, err := s.repairs.ListByDeviceOwnerID(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list repairs")
	}
	return s.resolveViews(ctx, repairs)
}

// ListUnassigned returns repairs waiting for a technician.
func (s *Service) ListUnassigned(ctx context.Context) ([]*models.View, error) {
	repairs, err := s.repairs.ListUnassigned(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list repairs")
	}
	return s.resolveViews(ctx, repairs)
}

// ListAssigned returns repairs that have a technician.
func (s *Service) ListAssigned(ctx context.Context) ([]*models.View, error) {
	repairs, err := s.repairs.ListAssigned(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list repairs")
	}
	return s.resolveViews(ctx, repairs)
}

// ListByDateRange returns repairs requested between from and to, both
// inclusive.
func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time) ([]*models.View, error) {
	if from.After(to) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "from must not be after to")
	}
	repairs, err := s.repairs.ListByRequestDateRange(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list repairs")
	}
	return s.resolveViews(ctx, repairs)
}

// CountByTechnicianAndStatus counts the technician's repairs in a state.
// The technician must exist.
func (s *Service) CountByTechnicianAndStatus(ctx context.Context, technicianID id.UserID, status string) (int64, error) {
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return 0, err
	}
	if _, err := s.resolveTechnician(ctx, technicianID); err != nil {
		return 0, err
	}
	count, err := s.repairs.CountByTechnicianAndStatus(ctx, technicianID, parsed)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count repairs")
	}
	return count, nil
}

// TotalCostByDevice sums the cost of the device's COMPLETED repairs; zero
// when there are none. The device must exist.
func (s *Service) TotalCostByDevice(ctx context.Context, deviceID id.DeviceID) (float64, error) {
	if _, err := s.resolveDevice(ctx, deviceID); err != nil {
		return 0, err
	}
	total, err := s.repairs.TotalCompletedCostByDevice(ctx, deviceID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to total repairs")
	}
	return total, nil
}

// UpdateParams carries a full replacement of a repair's writable fields. A
// nil TechnicianID clears the assignment; the status is taken as provided.
type UpdateParams struct {
	Description   string
	EstimatedDate *time.Time
	Status        string
	Cost          float64
	DeviceID      id.DeviceID
	TechnicianID  *id.UserID
}

// Update replaces the repair's writable fields. The device reference is
// re-resolved only when it changes; the request date is never touched.
func (s *Service) Update(ctx context.Context, repairID id.RepairID, p UpdateParams) (*models.View, error) {
	existing, err := s.findByID(ctx, repairID)
	if err != nil {
		return nil, err
	}

	status, err := s.parseOptionalStatus(p.Status)
	if err != nil {
		return nil, err
	}

	updated, err := models.NewRepair(p.Description, p.EstimatedDate, status, p.Cost, p.DeviceID)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.RequestDate = existing.RequestDate
	updated.TechnicianID = p.TechnicianID

	if p.DeviceID != existing.DeviceID {
		if _, err := s.resolveDevice(ctx, p.DeviceID); err != nil {
			return nil, err
		}
	}
	if p.TechnicianID != nil {
		if _, err := s.resolveTechnician(ctx, *p.TechnicianID); err != nil {
			return nil, err
		}
	}

	if err := s.repairs.Update(ctx, updated); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "repair not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update repair")
	}

	s.logAudit(ctx, audit.ActionRepairUpdated, updated.ID.String(), string(updated.Status))
	s.recordCompletion(existing.Status, updated.Status)

	return s.resolveView(ctx, updated)
}

// AssignTechnician sets the repair's technician. When the repair is still
// PENDING the assignment also moves it to IN_PROGRESS; any other state is
// left alone.
func (s *Service) AssignTechnician(ctx context.Context, repairID id.RepairID, technicianID id.UserID) (*models.View, error) {
	repair, err := s.findByID(ctx, repairID)
	if err != nil {
		return nil, err
	}
	technician, err := s.resolveTechnician(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	repair.AssignTechnician(technicianID)

	if err := s.repairs.Update(ctx, repair); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign technician")
	}

	s.logAudit(ctx, audit.ActionTechnicianAssigned, repair.ID.String(), technician.Username)

	device, err := s.resolveDevice(ctx, repair.DeviceID)
	if err != nil {
		return nil, err
	}
	return s.view(repair, device, technician), nil
}

// UpdateStatus overrides the workflow state. Any known status is accepted
// from any current state.
func (s *Service) UpdateStatus(ctx context.Context, repairID id.RepairID, status string) (*models.View, error) {
	parsed, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	repair, err := s.findByID(ctx, repairID)
	if err != nil {
		return nil, err
	}

	previous := repair.Status
	repair.Status = parsed

	if err := s.repairs.Update(ctx, repair); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update status")
	}

	s.logAudit(ctx, audit.ActionStatusChanged, repair.ID.String(), string(previous)+" -> "+string(parsed))
	s.recordCompletion(previous, parsed)

	return s.resolveView(ctx, repair)
}

// Delete removes the repair.
func (s *Service) Delete(ctx context.Context, repairID id.RepairID) error {
	if err := s.repairs.Delete(ctx, repairID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "repair not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete repair")
	}

	s.logAudit(ctx, audit.ActionRepairDeleted, repairID.String(), "")
	return nil
}

func (s *Service) parseOptionalStatus(status string) (models.Status, error) {
	if status == "" {
		return "", nil
	}
	return models.ParseStatus(status)
}

func (s *Service) findByID(ctx context.Context, repairID id.RepairID) (*models.Repair, error) {
	repair, err := s.repairs.FindByID(ctx, repairID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "repair not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get repair")
	}
	return repair, nil
}

func (s *Service) resolveDevice(ctx context.Context, deviceID id.DeviceID) (*devicemodels.Device, error) {
	device, err := s.devices.FindByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "device not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve device")
	}
	return device, nil
}

func (s *Service) resolveTechnician(ctx context.Context, technicianID id.UserID) (*usermodels.User, error) {
	technician, err := s.users.FindByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "technician not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve technician")
	}
	return technician, nil
}

func (s *Service) recordCompletion(previous, current models.Status) {
	if current == models.StatusCompleted && previous != models.StatusCompleted {
		s.metrics.IncrementRepairsCompleted()
	}
}

func (s *Service) view(repair *models.Repair, device *devicemodels.Device, technician *usermodels.User) *models.View {
	v := &models.View{
		ID:          repair.ID,
		Description: repair.Description,
		RequestDate: repair.RequestDate.Format(models.DateLayout),
		Status:      repair.Status,
		Cost:        repair.Cost,
		DeviceID:    repair.DeviceID,
		DeviceBrand: device.Brand,
		DeviceModel: device.Model,
	}
	if repair.EstimatedDate != nil {
		estimated := repair.EstimatedDate.Format(models.DateLayout)
		v.EstimatedDate = &estimated
	}
	if repair.TechnicianID != nil {
		v.TechnicianID = repair.TechnicianID
		if technician != nil {
			v.TechnicianUsername = technician.Username
		}
	}
	return v
}

func (s *Service) resolveView(ctx context.Context, repair *models.Repair) (*models.View, error) {
	device, err := s.resolveDevice(ctx, repair.DeviceID)
	if err != nil {
		return nil, err
	}
	var technician *usermodels.User
	if repair.TechnicianID != nil {
		technician, err = s.resolveTechnician(ctx, *repair.TechnicianID)
		if err != nil {
			return nil, err
		}
	}
	return s.view(repair, device, technician), nil
}

// resolveViews caches device and technician lookups across one listing.
func (s *Service) resolveViews(ctx context.Context, repairs []*models.Repair) ([]*models.View, error) {
	devices := make(map[id.DeviceID]*devicemodels.Device)
	technicians := make(map[id.UserID]*usermodels.User)

	out := make([]*models.View, 0, len(repairs))
	for _, repair := range repairs {
		device, ok := devices[repair.DeviceID]
		if !ok {
			var err error
			device, err = s.resolveDevice(ctx, repair.DeviceID)
			if err != nil {
				return nil, err
			}
			devices[repair.DeviceID] = device
		}

		var technician *usermodels.User
		if repair.TechnicianID != nil {
			technician, ok = technicians[*repair.TechnicianID]
			if !ok {
				var err error
				technician, err = s.resolveTechnician(ctx, *repair.TechnicianID)
				if err != nil {
					return nil, err
				}
				technicians[*repair.TechnicianID] = technician
			}
		}

		out = append(out, s.view(repair, device, technician))
	}
	return out, nil
}

func (s *Service) logAudit(ctx context.Context, action, entityID, detail string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"entity", "repair",
			"entity_id", entityID,
			"detail", detail,
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, audit.Event{
		Action:   action,
		Entity:   "repair",
		EntityID: entityID,
		Detail:   detail,
	})
}
