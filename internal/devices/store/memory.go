// Package store provides the device persistence implementations: an
// in-memory store for tests and single-node use, and a Postgres store.
package store

import (
	"context"
	"sync"

	"mobilefix/internal/devices/models"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/platform/sentinel"
)

// RepairCascade deletes all repairs referencing a device. The device store
// drives it so a device delete never strands repair records.
type RepairCascade interface {
	DeleteByDeviceID(ctx context.Context, deviceID id.DeviceID) error
}

// Memory keeps devices in a map guarded by a mutex.
type Memory struct {
	mu      sync.RWMutex
	devices map[id.DeviceID]models.Device
	repairs RepairCascade
}

// NewMemory builds an in-memory device store. The repair cascade comes from
// the composition root; it may be nil in narrow tests.
func NewMemory(repairs RepairCascade) *Memory {
	return &Memory{
		devices: make(map[id.DeviceID]models.Device),
		repairs: repairs,
	}
}

// Create assigns an ID and inserts the device. Owner resolution is the
// service's concern.
func (s *Memory) Create(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	device.ID = id.NewDeviceID()
	s.devices[device.ID] = *device
	return nil
}

// Update replaces the stored record.
func (s *Memory) Update(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[device.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.devices[device.ID] = *device
	return nil
}

func (s *Memory) FindByID(ctx context.Context, deviceID id.DeviceID) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if device, ok := s.devices[deviceID]; ok {
		return &device, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) ListAll(ctx context.Context) ([]*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Device, 0, len(s.devices))
	for _, device := range s.devices {
		d := device
		result = append(result, &d)
	}
	return result, nil
}

func (s *Memory) ListByOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Device, 0)
	for _, device := range s.devices {
		if device.OwnerID == ownerID {
			d := device
			result = append(result, &d)
		}
	}
	return result, nil
}

func (s *Memory) ListByBrand(ctx context.Context, brand string) ([]*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Device, 0)
	for _, device := range s.devices {
		if device.Brand == brand {
			d := device
			result = append(result, &d)
		}
	}
	return result, nil
}

func (s *Memory) ListByBrandAndModel(ctx context.Context, brand, model string) ([]*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Device, 0)
	for _, device := range s.devices {
		if device.Brand == brand && device.Model == model {
			d := device
			result = append(result, &d)
		}
	}
	return result, nil
}

func (s *Memory) CountByOwnerID(ctx context.Context, ownerID id.UserID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, device := range s.devices {
		if device.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (s *Memory) ExistsByID(ctx context.Context, deviceID id.DeviceID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.devices[deviceID]
	return ok, nil
}

// Delete removes the device after recursively deleting its repairs.
func (s *Memory) Delete(ctx context.Context, deviceID id.DeviceID) error {
	s.mu.Lock()
	_, ok := s.devices[deviceID]
	s.mu.Unlock()
	if !ok {
		return sentinel.ErrNotFound
	}

	if s.repairs != nil {
		if err := s.repairs.DeleteByDeviceID(ctx, deviceID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.devices, deviceID)
	s.mu.Unlock()
	return nil
}

// DeleteByOwnerID removes every device owned by a user, cascading each
// device's repairs first. Deleting zero devices is not an error.
func (s *Memory) DeleteByOwnerID(ctx context.Context, ownerID id.UserID) error {
	s.mu.RLock()
	var owned []id.DeviceID
	for deviceID, device := range s.devices {
		if device.OwnerID == ownerID {
			owned = append(owned, deviceID)
		}
	}
	s.mu.RUnlock()

	for _, deviceID := range owned {
		if s.repairs != nil {
			if err := s.repairs.DeleteByDeviceID(ctx, deviceID); err != nil {
				return err
			}
		}
		s.mu.Lock()
		delete(s.devices, deviceID)
		s.mu.Unlock()
	}
	return nil
}
