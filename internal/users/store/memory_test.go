package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	devicemodels "mobilefix/internal/devices/models"
	devicestore "mobilefix/internal/devices/store"
	repairmodels "mobilefix/internal/repairs/models"
	repairstore "mobilefix/internal/repairs/store"
	"mobilefix/internal/users/models"
	"mobilefix/internal/users/store"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/platform/sentinel"
)

type MemoryUserStoreSuite struct {
	suite.Suite
	users   *store.Memory
	devices *devicestore.Memory
	repairs *repairstore.Memory
	ctx     context.Context
}

func (s *MemoryUserStoreSuite) SetupTest() {
	s.repairs = repairstore.NewMemory()
	s.devices = devicestore.NewMemory(s.repairs)
	s.repairs.BindDeviceIndex(s.devices)
	s.users = store.NewMemory(s.devices, s.repairs)
	s.ctx = context.Background()
}

func TestMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryUserStoreSuite))
}

func (s *MemoryUserStoreSuite) newUser(username, email string) *models.User {
	return &models.User{Username: username, Email: email, Password: "secret1", Role: models.RoleUser}
}

func (s *MemoryUserStoreSuite) TestCreationAndLookups() {
	s.Run("assigns id and finds by id, username and email", func() {
		user := s.newUser("alice", "a@x.com")
		s.Require().NoError(s.users.Create(s.ctx, user))
		s.False(user.ID.IsNil())

		found, err := s.users.FindByID(s.ctx, user.ID)
		s.Require().NoError(err)
		s.Equal("alice", found.Username)

		found, err = s.users.FindByUsername(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)

		found, err = s.users.FindByEmail(s.ctx, "a@x.com")
		s.Require().NoError(err)
		s.Equal(user.ID, found.ID)
	})

	s.Run("returns ErrNotFound for unknown lookups", func() {
		_, err := s.users.FindByID(s.ctx, id.NewUserID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.users.FindByUsername(s.ctx, "ghost")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("lists by role", func() {
		tech := s.newUser("bob", "b@x.com")
		tech.Role = models.RoleTech
		s.Require().NoError(s.users.Create(s.ctx, tech))

		techs, err := s.users.ListByRole(s.ctx, models.RoleTech)
		s.Require().NoError(err)
		s.Len(techs, 1)
		s.Equal("bob", techs[0].Username)

		admins, err := s.users.ListByRole(s.ctx, models.RoleAdmin)
		s.Require().NoError(err)
		s.Empty(admins)
	})
}

func (s *MemoryUserStoreSuite) TestUniqueness() {
	s.Run("rejects duplicate username", func() {
		s.Require().NoError(s.users.Create(s.ctx, s.newUser("alice", "a@x.com")))

		err := s.users.Create(s.ctx, s.newUser("alice", "other@x.com"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("rejects duplicate email", func() {
		err := s.users.Create(s.ctx, s.newUser("carol", "a@x.com"))
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("update may not steal another user's username", func() {
		second := s.newUser("carol", "c@x.com")
		s.Require().NoError(s.users.Create(s.ctx, second))

		second.Username = "alice"
		s.Require().ErrorIs(s.users.Update(s.ctx, second), sentinel.ErrConflict)
	})

	s.Run("update keeping own unique fields succeeds", func() {
		found, err := s.users.FindByUsername(s.ctx, "carol")
		s.Require().NoError(err)

		found.Password = "newsecret"
		s.Require().NoError(s.users.Update(s.ctx, found))
	})
}

func (s *MemoryUserStoreSuite) TestExistenceChecks() {
	s.Require().NoError(s.users.Create(s.ctx, s.newUser("alice", "a@x.com")))

	exists, err := s.users.ExistsByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.users.ExistsByUsername(s.ctx, "ghost")
	s.Require().NoError(err)
	s.False(exists)

	exists, err = s.users.ExistsByEmail(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *MemoryUserStoreSuite) TestDeleteCascades() {
	s.Run("returns ErrNotFound for unknown id", func() {
		s.Require().ErrorIs(s.users.Delete(s.ctx, id.NewUserID()), sentinel.ErrNotFound)
	})

	s.Run("removes owned devices and their repairs, leaves others", func() {
		alice := s.newUser("alice", "a@x.com")
		bob := s.newUser("bob", "b@x.com")
		s.Require().NoError(s.users.Create(s.ctx, alice))
		s.Require().NoError(s.users.Create(s.ctx, bob))

		aliceDevice := &devicemodels.Device{Brand: "Samsung", Model: "S21", OwnerID: alice.ID}
		bobDevice := &devicemodels.Device{Brand: "Apple", Model: "iPhone 12", OwnerID: bob.ID}
		s.Require().NoError(s.devices.Create(s.ctx, aliceDevice))
		s.Require().NoError(s.devices.Create(s.ctx, bobDevice))

		aliceRepair := &repairmodels.Repair{Description: "Cracked screen", Cost: 50, DeviceID: aliceDevice.ID}
		bobRepair := &repairmodels.Repair{Description: "Battery", Cost: 30, DeviceID: bobDevice.ID}
		s.Require().NoError(s.repairs.Create(s.ctx, aliceRepair))
		s.Require().NoError(s.repairs.Create(s.ctx, bobRepair))

		s.Require().NoError(s.users.Delete(s.ctx, alice.ID))

		_, err := s.users.FindByID(s.ctx, alice.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.devices.FindByID(s.ctx, aliceDevice.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.repairs.FindByID(s.ctx, aliceRepair.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		// Bob's subtree is untouched.
		_, err = s.devices.FindByID(s.ctx, bobDevice.ID)
		s.Require().NoError(err)
		_, err = s.repairs.FindByID(s.ctx, bobRepair.ID)
		s.Require().NoError(err)
	})

	s.Run("unassigns repairs where the deleted user was technician", func() {
		owner := s.newUser("carol", "c@x.com")
		tech := s.newUser("dave", "d@x.com")
		tech.Role = models.RoleTech
		s.Require().NoError(s.users.Create(s.ctx, owner))
		s.Require().NoError(s.users.Create(s.ctx, tech))

		device := &devicemodels.Device{Brand: "Google", Model: "Pixel 8", OwnerID: owner.ID}
		s.Require().NoError(s.devices.Create(s.ctx, device))

		techID := tech.ID
		repair := &repairmodels.Repair{Description: "Camera", Cost: 80, DeviceID: device.ID, TechnicianID: &techID}
		s.Require().NoError(s.repairs.Create(s.ctx, repair))

		s.Require().NoError(s.users.Delete(s.ctx, tech.ID))

		found, err := s.repairs.FindByID(s.ctx, repair.ID)
		s.Require().NoError(err)
		s.Nil(found.TechnicianID, "technician reference must not dangle")
	})
}
