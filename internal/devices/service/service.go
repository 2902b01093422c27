// Package service manages the device registry: devices always belong to a
// resolvable owner, and removing one takes its repairs with it.
package service

import (
	"context"
	"errors"
	"log/slog"

	"mobilefix/internal/audit"
	"mobilefix/internal/devices/models"
	"mobilefix/internal/platform/metrics"
	usermodels "mobilefix/internal/users/models"
	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
	"mobilefix/pkg/platform/sentinel"
)

// DeviceStore is the persistence contract the service needs.
type DeviceStore interface {
	Create(ctx context.Context, device *models.Device) error
	Update(ctx context.Context, device *models.Device) error
	FindByID(ctx context.Context, deviceID id.DeviceID) (*models.Device, error)
	ListAll(ctx context.Context) ([]*models.Device, error)
	ListByOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.Device, error)
	ListByBrand(ctx context.Context, brand string) ([]*models.Device, error)
	ListByBrandAndModel(ctx context.Context, brand, model string) ([]*models.Device, error)
	CountByOwnerID(ctx context.Context, ownerID id.UserID) (int64, error)
	ExistsByID(ctx context.Context, deviceID id.DeviceID) (bool, error)
	Delete(ctx context.Context, deviceID id.DeviceID) error
}

// OwnerResolver looks up users so views can carry the owner's username and
// owner references can be validated before writes.
type OwnerResolver interface {
	FindByID(ctx context.Context, userID id.UserID) (*usermodels.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service owns device lifecycle rules.
type Service struct {
	devices        DeviceStore
	owners         OwnerResolver
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
func New(devices DeviceStore, owners OwnerResolver, opts ...Option) *Service {
	s := &Service{devices: devices, owners: owners}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a device under an existing owner.
func (s *Service) Create(ctx context.Context, brand, model string, ownerID id.UserID) (*models.View, error) {
	device, err := models.NewDevice(brand, model, ownerID)
	if err != nil {
		return nil, err
	}

	owner, err := s.resolveOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if err := s.devices.Create(ctx, device); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create device")
	}

	s.logAudit(ctx, audit.ActionDeviceCreated, device.ID.String(), device.Brand+" "+device.Model)
	s.metrics.IncrementDevicesCreated()

	return s.view(device, owner), nil
}

// GetByID returns a single device with its owner resolved.
func (s *Service) GetByID(ctx context.Context, deviceID id.DeviceID) (*models.View, error) {
	device, err := s.findByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	owner, err := s.resolveOwner(ctx, device.OwnerID)
	if err != nil {
		return nil, err
	}
	return s.view(device, owner), nil
}

// ListAll returns every registered device.
func (s *Service) ListAll(ctx context.Context) ([]*models.View, error) {
	devices, err := s.devices.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list devices")
	}
	return s.views(ctx, devices)
}

// ListByOwnerID returns the owner's devices. The owner must exist even when
// the result is empty.
func (s *Service) ListByOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.View, error) {
	owner, err := s.resolveOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	devices, err := s.devices.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list devices")
	}
	out := make([]*models.View, 0, len(devices))
	for _, d := range devices {
		out = append(out, s.view(d, owner))
	}
	return out, nil
}

// ListByBrand filters devices by exact brand.
func (s *Service) ListByBrand(ctx context.Context, brand string) ([]*models.View, error) {
	devices, err := s.devices.ListByBrand(ctx, brand)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list devices")
	}
	return s.views(ctx, devices)
}

// ListByBrandAndModel filters devices by exact brand and model.
func (s *Service) ListByBrandAndModel(ctx context.Context, brand, model string) ([]*models.View, error) {
	devices, err := s.devices.ListByBrandAndModel(ctx, brand, model)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list devices")
	}
	return s.views(ctx, devices)
}

// CountByOwnerID counts the owner's devices. The owner must exist.
func (s *Service) CountByOwnerID(ctx context.Context, ownerID id.UserID) (int64, error) {
	if _, err := s.resolveOwner(ctx, ownerID); err != nil {
		return 0, err
	}
	count, err := s.devices.CountByOwnerID(ctx, ownerID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count devices")
	}
	return count, nil
}

// Update replaces the device's fields. The owner reference is re-resolved
// only when it actually changes.
func (s *Service) Update(ctx context.Context, deviceID id.DeviceID, brand, model string, ownerID id.UserID) (*models.View, error) {
	existing, err := s.findByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	updated, err := models.NewDevice(brand, model, ownerID)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID

	if ownerID != existing.OwnerID {
		if _, err := s.resolveOwner(ctx, ownerID); err != nil {
			return nil, err
		}
	}

	if err := s.devices.Update(ctx, updated); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "device not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update device")
	}

	s.logAudit(ctx, audit.ActionDeviceUpdated, updated.ID.String(), updated.Brand+" "+updated.Model)

	owner, err := s.resolveOwner(ctx, updated.OwnerID)
	if err != nil {
		return nil, err
	}
	return s.view(updated, owner), nil
}

// Delete removes the device and all of its repairs.
func (s *Service) Delete(ctx context.Context, deviceID id.DeviceID) error {
	if err := s.devices.Delete(ctx, deviceID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "device not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete device")
	}

	s.logAudit(ctx, audit.ActionDeviceDeleted, deviceID.String(), "")
	return nil
}

func (s *Service) findByID(ctx context.Context, deviceID id.DeviceID) (*models.Device, error) {
	device, err := s.devices.FindByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "device not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get device")
	}
	return device, nil
}

func (s *Service) resolveOwner(ctx context.Context, ownerID id.UserID) (*usermodels.User, error) {
	owner, err := s.owners.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "owner not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve owner")
	}
	return owner, nil
}

func (s *Service) view(device *models.Device, owner *usermodels.User) *models.View {
	return &models.View{
		ID:            device.ID,
		Brand:         device.Brand,
		Model:         device.Model,
		OwnerID:       device.OwnerID,
		OwnerUsername: owner.Username,
	}
}

// views resolves owners with a small per-call cache since brand listings
// often repeat the same owner.
func (s *Service) views(ctx context.Context, devices []*models.Device) ([]*models.View, error) {
	owners := make(map[id.UserID]*usermodels.User)
	out := make([]*models.View, 0, len(devices))
	for _, d := range devices {
		owner, ok := owners[d.OwnerID]
		if !ok {
			var err error
			owner, err = s.resolveOwner(ctx, d.OwnerID)
			if err != nil {
				return nil, err
			}
			owners[d.OwnerID] = owner
		}
		out = append(out, s.view(d, owner))
	}
	return out, nil
}

func (s *Service) logAudit(ctx context.Context, action, entityID, detail string) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"entity", "device",
			"entity_id", entityID,
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	s.auditPublisher.Emit(ctx, audit.Event{
		Action:   action,
		Entity:   "device",
		EntityID: entityID,
		Detail:   detail,
	})
}
