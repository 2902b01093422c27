//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	devicemodels "mobilefix/internal/devices/models"
	devicestore "mobilefix/internal/devices/store"
	repairmodels "mobilefix/internal/repairs/models"
	repairstore "mobilefix/internal/repairs/store"
	"mobilefix/internal/users/models"
	"mobilefix/internal/users/store"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/platform/sentinel"
	"mobilefix/pkg/testutil/containers"
)

type PostgresUserStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	users    *store.Postgres
	devices  *devicestore.Postgres
	repairs  *repairstore.Postgres
}

func TestPostgresUserStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresUserStoreSuite))
}

func (s *PostgresUserStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.users = store.NewPostgres(s.postgres.DB)
	s.devices = devicestore.NewPostgres(s.postgres.DB)
	s.repairs = repairstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresUserStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx, "repairs", "devices", "users")
	s.Require().NoError(err)
}

func newTestUser(username, email string) *models.User {
	return &models.User{
		Username: username,
		Email:    email,
		Password: "secret1",
		Role:     models.RoleUser,
	}
}

func (s *PostgresUserStoreSuite) TestCreateAndFind() {
	ctx := context.Background()

	user := newTestUser("alice", "alice@example.com")
	s.Require().NoError(s.users.Create(ctx, user))
	s.False(user.ID.IsNil())

	found, err := s.users.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("alice", found.Username)
	s.Equal(models.RoleUser, found.Role)

	found, err = s.users.FindByUsername(ctx, "alice")
	s.Require().NoError(err)
	s.Equal(user.ID, found.ID)

	found, err = s.users.FindByEmail(ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(user.ID, found.ID)

	_, err = s.users.FindByID(ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresUserStoreSuite) TestConcurrentUniqueUsernameViolation() {
	ctx := context.Background()
	username := "race-" + uuid.NewString()[:8]
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			u := newTestUser(username, uuid.NewString()+"@example.com")
			err := s.users.Create(ctx, u)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	// Exactly one should win the insert
	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get conflict error")
}

func (s *PostgresUserStoreSuite) TestUniqueEmail() {
	ctx := context.Background()

	s.Require().NoError(s.users.Create(ctx, newTestUser("alice", "shared@example.com")))

	err := s.users.Create(ctx, newTestUser("bob", "shared@example.com"))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresUserStoreSuite) TestUpdate() {
	ctx := context.Background()

	user := newTestUser("alice", "alice@example.com")
	s.Require().NoError(s.users.Create(ctx, user))

	user.Email = "alice2@example.com"
	user.Role = models.RoleTech
	s.Require().NoError(s.users.Update(ctx, user))

	found, err := s.users.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("alice2@example.com", found.Email)
	s.Equal(models.RoleTech, found.Role)

	ghost := newTestUser("ghost", "ghost@example.com")
	ghost.ID = id.NewUserID()
	s.ErrorIs(s.users.Update(ctx, ghost), sentinel.ErrNotFound)
}

func (s *PostgresUserStoreSuite) TestListByRole() {
	ctx := context.Background()

	tech := newTestUser("tech1", "tech1@example.com")
	tech.Role = models.RoleTech
	s.Require().NoError(s.users.Create(ctx, tech))
	s.Require().NoError(s.users.Create(ctx, newTestUser("user1", "user1@example.com")))

	techs, err := s.users.ListByRole(ctx, models.RoleTech)
	s.Require().NoError(err)
	s.Require().Len(techs, 1)
	s.Equal("tech1", techs[0].Username)

	all, err := s.users.ListAll(ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *PostgresUserStoreSuite) TestDeleteCascades() {
	ctx := context.Background()

	owner := newTestUser("owner", "owner@example.com")
	tech := newTestUser("tech", "tech@example.com")
	tech.Role = models.RoleTech
	s.Require().NoError(s.users.Create(ctx, owner))
	s.Require().NoError(s.users.Create(ctx, tech))

	device := &devicemodels.Device{Brand: "Samsung", Model: "Galaxy S21", OwnerID: owner.ID}
	s.Require().NoError(s.devices.Create(ctx, device))

	techID := tech.ID
	repair := &repairmodels.Repair{
		Description:  "Cracked screen",
		Cost:         120,
		DeviceID:     device.ID,
		Status:       repairmodels.StatusInProgress,
		TechnicianID: &techID,
	}
	s.Require().NoError(s.repairs.Create(ctx, repair))

	s.Run("deleting the technician unassigns their repairs", func() {
		s.Require().NoError(s.users.Delete(ctx, tech.ID))

		found, err := s.repairs.FindByID(ctx, repair.ID)
		s.Require().NoError(err)
		s.Nil(found.TechnicianID)
	})

	s.Run("deleting the owner removes devices and repairs", func() {
		s.Require().NoError(s.users.Delete(ctx, owner.ID))

		_, err := s.devices.FindByID(ctx, device.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.repairs.FindByID(ctx, repair.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("deleting an unknown user reports not found", func() {
		s.ErrorIs(s.users.Delete(ctx, id.NewUserID()), sentinel.ErrNotFound)
	})
}
