package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
)

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"PENDING", "IN_PROGRESS", "COMPLETED", "CANCELLED"} {
		status, err := ParseStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, status.String())
	}

	_, err := ParseStatus("DONE")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestNewRepair(t *testing.T) {
	deviceID := id.NewDeviceID()

	t.Run("defaults status to PENDING", func(t *testing.T) {
		repair, err := NewRepair("Cracked screen", nil, "", 50, deviceID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, repair.Status)
		assert.True(t, repair.RequestDate.IsZero(), "request date is stamped by the store")
	})

	t.Run("keeps explicit status", func(t *testing.T) {
		repair, err := NewRepair("Battery swap", nil, StatusInProgress, 30, deviceID)
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, repair.Status)
	})

	t.Run("rejects non-positive cost", func(t *testing.T) {
		_, err := NewRepair("Cracked screen", nil, "", 0, deviceID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = NewRepair("Cracked screen", nil, "", -5, deviceID)
		require.Error(t, err)
	})

	t.Run("rejects blank description", func(t *testing.T) {
		_, err := NewRepair("   ", nil, "", 50, deviceID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestAssignTechnician(t *testing.T) {
	techID := id.NewUserID()

	t.Run("pending repair advances to IN_PROGRESS", func(t *testing.T) {
		repair := &Repair{Status: StatusPending}
		repair.AssignTechnician(techID)
		assert.Equal(t, StatusInProgress, repair.Status)
		require.True(t, repair.Assigned())
		assert.Equal(t, techID, *repair.TechnicianID)
	})

	t.Run("non-pending repair keeps its status", func(t *testing.T) {
		for _, status := range []Status{StatusInProgress, StatusCompleted, StatusCancelled} {
			repair := &Repair{Status: status}
			repair.AssignTechnician(techID)
			assert.Equal(t, status, repair.Status)
			assert.True(t, repair.Assigned())
		}
	})
}
