// Package store provides the repair persistence implementations: an
// in-memory store for tests and single-node use, and a Postgres store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	devicemodels "mobilefix/internal/devices/models"
	"mobilefix/internal/repairs/models"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/platform/sentinel"
	"mobilefix/pkg/requestcontext"
)

// DeviceOwnerIndex resolves which devices an owner holds, backing the
// owner join against the in-memory dataset.
type DeviceOwnerIndex interface {
	ListByOwnerID(ctx context.Context, ownerID id.UserID) ([]*devicemodels.Device, error)
}

// Memory keeps repairs in a map guarded by a mutex.
type Memory struct {
	mu      sync.RWMutex
	repairs map[id.RepairID]models.Repair
	devices DeviceOwnerIndex
}

// NewMemory builds an in-memory repair store.
func NewMemory() *Memory {
	return &Memory{repairs: make(map[id.RepairID]models.Repair)}
}

// BindDeviceIndex wires the device lookup used by ListByDeviceOwnerID. The
// device store takes this store at construction for its delete cascade, so
// the reverse edge is bound after both stores exist.
func (s *Memory) BindDeviceIndex(devices DeviceOwnerIndex) {
	s.devices = devices
}

// Create assigns an ID, stamps the request date from the request-scoped
// clock and inserts the repair. Status defaults to PENDING when unset.
func (s *Memory) Create(ctx context.Context, repair *models.Repair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repair.ID = id.NewRepairID()
	if repair.RequestDate.IsZero() {
		repair.RequestDate = dateOf(requestcontext.Now(ctx))
	}
	if repair.Status == "" {
		repair.Status = models.StatusPending
	}
	s.repairs[repair.ID] = *repair
	return nil
}

// Update replaces the stored record except for RequestDate, which is
// immutable after creation and always kept from the stored row.
func (s *Memory) Update(ctx context.Context, repair *models.Repair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.repairs[repair.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	repair.RequestDate = stored.RequestDate
	s.repairs[repair.ID] = *repair
	return nil
}

func (s *Memory) FindByID(ctx context.Context, repairID id.RepairID) (*models.Repair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if repair, ok := s.repairs[repairID]; ok {
		return &repair, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) ExistsByID(ctx context.Context, repairID id.RepairID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.repairs[repairID]
	return ok, nil
}

func (s *Memory) ListAll(ctx context.Context) ([]*models.Repair, error) {
	return s.filter(func(models.Repair) bool { return true }), nil
}

func (s *Memory) ListByDeviceID(ctx context.Context, deviceID id.DeviceID) ([]*models.Repair, error) {
	return s.filter(func(r models.Repair) bool { return r.DeviceID == deviceID }), nil
}

// ListByDeviceOwnerID returns repairs across every device the owner holds,
// the in-memory counterpart of the SQL join through the devices table.
func (s *Memory) ListByDeviceOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.Repair, error) {
	if s.devices == nil {
		return nil, sentinel.ErrUnavailable
	}
	devices, err := s.devices.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	owned := make(map[id.DeviceID]struct{}, len(devices))
	for _, device := range devices {
		owned[device.ID] = struct{}{}
	}
	return s.filter(func(r models.Repair) bool {
		_, ok := owned[r.DeviceID]
		return ok
	}), nil
}

func (s *Memory) ListByStatus(ctx context.Context, status models.Status) ([]*models.Repair, error) {
	return s.filter(func(r models.Repair) bool { return r.Status == status }), nil
}

func (s *Memory) ListByTechnicianID(ctx context.Context, technicianID id.UserID) ([]*models.Repair, error) {
	return s.filter(func(r models.Repair) bool {
		return r.TechnicianID != nil && *r.TechnicianID == technicianID
	}), nil
}

func (s *Memory) ListByStatusAndTechnician(ctx context.Context, status models.Status, technicianID id.UserID) ([]*models.Repair, error) {
	return s.filter(func(r models.Repair) bool {
		return r.Status == status && r.TechnicianID != nil && *r.TechnicianID == technicianID
	}), nil
}

// ListByRequestDateRange returns repairs requested between from and to,
// bounds inclusive.
func (s *Memory) ListByRequestDateRange(ctx context.Context, from, to time.Time) ([]*models.Repair, error) {
	from, to = dateOf(from), dateOf(to)
	return s.filter(func(r models.Repair) bool {
		d := dateOf(r.RequestDate)
		return !d.Before(from) && !d.After(to)
	}), nil
}

func (s *Memory) ListUnassigned(ctx context.Context) ([]*models.Repair, error) {
	return s.filter(func(r models.Repair) bool { return r.TechnicianID == nil }), nil
}

func (s *Memory) ListAssigned(ctx context.Context) ([]*models.Repair, error) {
	return s.filter(func(r models.Repair) bool { return r.TechnicianID != nil }), nil
}

func (s *Memory) CountByTechnicianAndStatus(ctx context.Context, technicianID id.UserID, status models.Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, repair := range s.repairs {
		if repair.Status == status && repair.TechnicianID != nil && *repair.TechnicianID == technicianID {
			count++
		}
	}
	return count, nil
}

func (s *Memory) ListByStatusOrderedByRequestDateDesc(ctx context.Context, status models.Status) ([]*models.Repair, error) {
	result := s.filter(func(r models.Repair) bool { return r.Status == status })
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestDate.After(result[j].RequestDate)
	})
	return result, nil
}

func (s *Memory) ListAllOrderedByCostDesc(ctx context.Context) ([]*models.Repair, error) {
	result := s.filter(func(models.Repair) bool { return true })
	sort.Slice(result, func(i, j int) bool {
		return result[i].Cost > result[j].Cost
	})
	return result, nil
}

// TotalCompletedCostByDevice sums the cost of COMPLETED repairs on a
// device, zero when there are none.
func (s *Memory) TotalCompletedCostByDevice(ctx context.Context, deviceID id.DeviceID) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, repair := range s.repairs {
		if repair.DeviceID == deviceID && repair.Status == models.StatusCompleted {
			total += repair.Cost
		}
	}
	return total, nil
}

func (s *Memory) Delete(ctx context.Context, repairID id.RepairID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.repairs[repairID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.repairs, repairID)
	return nil
}

// DeleteByDeviceID removes every repair on a device. Deleting zero repairs
// is not an error; this is a cascade helper, not a caller-facing delete.
func (s *Memory) DeleteByDeviceID(ctx context.Context, deviceID id.DeviceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for repairID, repair := range s.repairs {
		if repair.DeviceID == deviceID {
			delete(s.repairs, repairID)
		}
	}
	return nil
}

// ClearTechnician unassigns the technician from every repair that
// references them, preserving referential integrity when the user is
// deleted.
func (s *Memory) ClearTechnician(ctx context.Context, technicianID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for repairID, repair := range s.repairs {
		if repair.TechnicianID != nil && *repair.TechnicianID == technicianID {
			repair.TechnicianID = nil
			s.repairs[repairID] = repair
		}
	}
	return nil
}

func (s *Memory) filter(keep func(models.Repair) bool) []*models.Repair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Repair, 0)
	for _, repair := range s.repairs {
		if keep(repair) {
			r := repair
			result = append(result, &r)
		}
	}
	return result
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
