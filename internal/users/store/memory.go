// Package store provides the user persistence implementations: an in-memory
// store for tests and single-node use, and a Postgres store.
package store

import (
	"context"
	"sync"

	"mobilefix/internal/users/models"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/platform/sentinel"
)

// DeviceCascade deletes all devices owned by a user, including their
// repairs. The user store drives it so a user delete removes the whole
// ownership subtree before the user record goes away.
type DeviceCascade interface {
	DeleteByOwnerID(ctx context.Context, ownerID id.UserID) error
}

// TechnicianUnassigner clears technician references held by repairs on
// other owners' devices, so deleting a technician never leaves a dangling
// reference.
type TechnicianUnassigner interface {
	ClearTechnician(ctx context.Context, technicianID id.UserID) error
}

// Memory keeps users in a map guarded by a mutex. It favors clarity over
// performance.
type Memory struct {
	mu      sync.RWMutex
	users   map[id.UserID]models.User
	devices DeviceCascade
	repairs TechnicianUnassigner
}

// NewMemory builds an in-memory user store. The cascade collaborators come
// from the composition root; either may be nil in narrow tests.
func NewMemory(devices DeviceCascade, repairs TechnicianUnassigner) *Memory {
	return &Memory{
		users:   make(map[id.UserID]models.User),
		devices: devices,
		repairs: repairs,
	}
}

// Create assigns an ID and inserts the user. Username and email uniqueness
// are enforced here as the final authority even though the service checks
// first.
func (s *Memory) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return sentinel.ErrConflict
		}
	}

	user.ID = id.NewUserID()
	s.users[user.ID] = *user
	return nil
}

// Update replaces the stored record. Unique fields may not collide with
// another user's.
func (s *Memory) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for uid, existing := range s.users {
		if uid == user.ID {
			continue
		}
		if existing.Username == user.Username || existing.Email == user.Email {
			return sentinel.ErrConflict
		}
	}

	s.users[user.ID] = *user
	return nil
}

func (s *Memory) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if user, ok := s.users[userID]; ok {
		return &user, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Memory) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.User, 0)
	for _, user := range s.users {
		if user.Role == role {
			u := user
			result = append(result, &u)
		}
	}
	return result, nil
}

func (s *Memory) ListAll(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		u := user
		result = append(result, &u)
	}
	return result, nil
}

func (s *Memory) ExistsByID(ctx context.Context, userID id.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[userID]
	return ok, nil
}

func (s *Memory) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *Memory) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes the user after recursively deleting owned devices (and
// their repairs) and clearing technician assignments held by the user.
func (s *Memory) Delete(ctx context.Context, userID id.UserID) error {
	s.mu.Lock()
	_, ok := s.users[userID]
	s.mu.Unlock()
	if !ok {
		return sentinel.ErrNotFound
	}

	if s.repairs != nil {
		if err := s.repairs.ClearTechnician(ctx, userID); err != nil {
			return err
		}
	}
	if s.devices != nil {
		if err := s.devices.DeleteByOwnerID(ctx, userID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.users, userID)
	s.mu.Unlock()
	return nil
}
