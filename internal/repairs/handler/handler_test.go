package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	devicemodels "mobilefix/internal/devices/models"
	devicestore "mobilefix/internal/devices/store"
	"mobilefix/internal/repairs/handler"
	"mobilefix/internal/repairs/models"
	"mobilefix/internal/repairs/service"
	repairstore "mobilefix/internal/repairs/store"
	usermodels "mobilefix/internal/users/models"
	userstore "mobilefix/internal/users/store"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/testutil"
)

type fixture struct {
	router chi.Router
	device id.DeviceID
	tech   id.UserID
	owner  id.UserID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	repairs := repairstore.NewMemory()
	devices := devicestore.NewMemory(repairs)
	repairs.BindDeviceIndex(devices)
	users := userstore.NewMemory(devices, repairs)

	owner := &usermodels.User{Username: "owner", Email: "owner@example.com", Password: "secret1", Role: usermodels.RoleUser}
	require.NoError(t, users.Create(ctx, owner))
	tech := &usermodels.User{Username: "tech", Email: "tech@example.com", Password: "secret1", Role: usermodels.RoleTech}
	require.NoError(t, users.Create(ctx, tech))

	device := &devicemodels.Device{Brand: "Samsung", Model: "Galaxy S21", OwnerID: owner.ID}
	require.NoError(t, devices.Create(ctx, device))

	r := chi.NewRouter()
	handler.New(service.New(repairs, devices, users), nil).Register(r)

	return &fixture{router: r, device: device.ID, tech: tech.ID, owner: owner.ID}
}

func (f *fixture) createRepair(t *testing.T, body map[string]any) *models.View {
	t.Helper()

	if _, ok := body["device_id"]; !ok {
		body["device_id"] = f.device.String()
	}
	req := testutil.NewJSONRequest(t, http.MethodPost, "/repairs", body)
	rr := testutil.DoRequest(f.router, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[models.View](t, rr)
}

func TestCreateRepair(t *testing.T) {
	f := newFixture(t)

	t.Run("defaults to pending and stamps the request date", func(t *testing.T) {
		view := f.createRepair(t, map[string]any{"description": "Cracked screen", "cost": 120})
		assert.Equal(t, models.StatusPending, view.Status)
		assert.NotEmpty(t, view.RequestDate)
		assert.Equal(t, "Samsung", view.DeviceBrand)
	})

	t.Run("accepts estimated date and technician", func(t *testing.T) {
		view := f.createRepair(t, map[string]any{
			"description":    "Battery swap",
			"cost":           60,
			"estimated_date": "2024-12-24",
			"technician_id":  f.tech.String(),
		})
		require.NotNil(t, view.EstimatedDate)
		assert.Equal(t, "2024-12-24", *view.EstimatedDate)
		assert.Equal(t, "tech", view.TechnicianUsername)
	})

	t.Run("bad estimated date returns 400", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/repairs", map[string]any{
			"description":    "x",
			"cost":           1,
			"device_id":      f.device.String(),
			"estimated_date": "24/12/2024",
		})
		rr := testutil.DoRequest(f.router, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown device returns 404", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/repairs", map[string]any{
			"description": "x",
			"cost":        1,
			"device_id":   id.NewDeviceID().String(),
		})
		rr := testutil.DoRequest(f.router, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("zero cost returns 400", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/repairs", map[string]any{
			"description": "x",
			"cost":        0,
			"device_id":   f.device.String(),
		})
		rr := testutil.DoRequest(f.router, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "validation_error", testutil.ErrorCode(t, rr))
	})
}

func TestListRepairs(t *testing.T) {
	f := newFixture(t)
	f.createRepair(t, map[string]any{"description": "Screen", "cost": 120})
	f.createRepair(t, map[string]any{"description": "Battery", "cost": 60, "status": "COMPLETED", "technician_id": f.tech.String()})

	t.Run("all", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 2)
	})

	t.Run("sorted by cost", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs?sort=cost_desc", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		require.Len(t, *views, 2)
		assert.Equal(t, 120.0, (*views)[0].Cost)
	})

	t.Run("by status", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/status/PENDING", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 1)
	})

	t.Run("by status narrowed by technician", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/status/COMPLETED?technician="+f.tech.String(), nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 1)
	})

	t.Run("unknown status returns 400", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/status/BROKEN", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("by device", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/device/"+f.device.String(), nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 2)
	})

	t.Run("by technician", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/technician/"+f.tech.String(), nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 1)
	})

	t.Run("technician count by status", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/technician/"+f.tech.String()+"/count?status=COMPLETED", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[map[string]int64](t, rr)
		assert.EqualValues(t, 1, (*body)["count"])

		rr = testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/technician/"+f.tech.String()+"/count", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("by owner", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/owner/"+f.owner.String(), nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 2)
	})

	t.Run("assignment listings", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/unassigned", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 1)

		rr = testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/assigned", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views = testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 1)
	})

	t.Run("date range validates bounds", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/date-range?from=2000-01-01&to=2100-01-01", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 2)

		rr = testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/date-range?from=oops&to=2100-01-01", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTotalCost(t *testing.T) {
	f := newFixture(t)
	f.createRepair(t, map[string]any{"description": "a", "cost": 50, "status": "COMPLETED"})
	f.createRepair(t, map[string]any{"description": "b", "cost": 25.5, "status": "COMPLETED"})
	f.createRepair(t, map[string]any{"description": "c", "cost": 99})

	rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/device/"+f.device.String()+"/total-cost", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := testutil.UnmarshalResponse[map[string]float64](t, rr)
	assert.Equal(t, 75.5, (*body)["total_cost"])
}

func TestAssignTechnician(t *testing.T) {
	f := newFixture(t)
	created := f.createRepair(t, map[string]any{"description": "Screen", "cost": 120})

	t.Run("pending moves to in progress", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPatch, "/repairs/"+created.ID.String()+"/technician", map[string]string{
			"technician_id": f.tech.String(),
		})
		rr := testutil.DoRequest(f.router, req)
		require.Equal(t, http.StatusOK, rr.Code)
		view := testutil.UnmarshalResponse[models.View](t, rr)
		assert.Equal(t, models.StatusInProgress, view.Status)
		assert.Equal(t, "tech", view.TechnicianUsername)
	})

	t.Run("unknown technician returns 404", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPatch, "/repairs/"+created.ID.String()+"/technician", map[string]string{
			"technician_id": id.NewUserID().String(),
		})
		rr := testutil.DoRequest(f.router, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("malformed technician id returns 400", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPatch, "/repairs/"+created.ID.String()+"/technician", map[string]string{
			"technician_id": "nope",
		})
		rr := testutil.DoRequest(f.router, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	created := f.createRepair(t, map[string]any{"description": "Screen", "cost": 120})

	req := testutil.NewJSONRequest(t, http.MethodPatch, "/repairs/"+created.ID.String()+"/status", map[string]string{"status": "CANCELLED"})
	rr := testutil.DoRequest(f.router, req)
	require.Equal(t, http.StatusOK, rr.Code)
	view := testutil.UnmarshalResponse[models.View](t, rr)
	assert.Equal(t, models.StatusCancelled, view.Status)

	req = testutil.NewJSONRequest(t, http.MethodPatch, "/repairs/"+created.ID.String()+"/status", map[string]string{"status": "DONE"})
	assert.Equal(t, http.StatusBadRequest, testutil.DoRequest(f.router, req).Code)
}

func TestUpdateRepair(t *testing.T) {
	f := newFixture(t)
	created := f.createRepair(t, map[string]any{"description": "Screen", "cost": 120, "technician_id": f.tech.String()})

	t.Run("full replace clears an omitted technician", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/repairs/"+created.ID.String(), map[string]any{
			"description": "Screen and digitizer",
			"cost":        150,
			"status":      "IN_PROGRESS",
			"device_id":   f.device.String(),
		})
		rr := testutil.DoRequest(f.router, req)
		require.Equal(t, http.StatusOK, rr.Code)
		view := testutil.UnmarshalResponse[models.View](t, rr)
		assert.Equal(t, "Screen and digitizer", view.Description)
		assert.Nil(t, view.TechnicianID)
		assert.Equal(t, created.RequestDate, view.RequestDate)
	})

	t.Run("unknown repair returns 404", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/repairs/"+id.NewRepairID().String(), map[string]any{
			"description": "x",
			"cost":        1,
			"device_id":   f.device.String(),
		})
		assert.Equal(t, http.StatusNotFound, testutil.DoRequest(f.router, req).Code)
	})
}

func TestDeleteRepair(t *testing.T) {
	f := newFixture(t)
	created := f.createRepair(t, map[string]any{"description": "Screen", "cost": 120})

	rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodDelete, "/repairs/"+created.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/repairs/"+created.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
