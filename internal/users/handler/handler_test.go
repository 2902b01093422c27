package handler_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	devicestore "mobilefix/internal/devices/store"
	repairstore "mobilefix/internal/repairs/store"
	"mobilefix/internal/users/handler"
	"mobilefix/internal/users/models"
	"mobilefix/internal/users/service"
	"mobilefix/internal/users/store"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/testutil"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()

	repairs := repairstore.NewMemory()
	devices := devicestore.NewMemory(repairs)
	repairs.BindDeviceIndex(devices)
	users := store.NewMemory(devices, repairs)
	svc := service.New(users)

	r := chi.NewRouter()
	handler.New(svc, nil).Register(r)
	return r
}

func createUser(t *testing.T, router chi.Router, username, email string) *models.View {
	t.Helper()

	req := testutil.NewJSONRequest(t, http.MethodPost, "/users", map[string]string{
		"username": username,
		"email":    email,
		"password": "secret1",
		"role":     "USER",
	})
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	return testutil.UnmarshalResponse[models.View](t, rr)
}

func TestCreateUser(t *testing.T) {
	router := newRouter(t)

	t.Run("creates and returns the view without password", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/users", map[string]string{
			"username": "alice",
			"email":    "alice@example.com",
			"password": "secret1",
			"role":     "ADMIN",
		})
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.NotContains(t, rr.Body.String(), "password")

		view := testutil.UnmarshalResponse[models.View](t, rr)
		assert.Equal(t, "alice", view.Username)
		assert.Equal(t, models.RoleAdmin, view.Role)
		assert.False(t, view.ID.IsNil())
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/users", map[string]string{"username": "bob"})
		rr := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "validation_error", testutil.ErrorCode(t, rr))
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/users", nil)
		rr := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("duplicate username returns 409", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/users", map[string]string{
			"username": "alice",
			"email":    "other@example.com",
			"password": "secret1",
			"role":     "USER",
		})
		rr := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "conflict", testutil.ErrorCode(t, rr))
	})
}

func TestGetUser(t *testing.T) {
	router := newRouter(t)
	created := createUser(t, router, "alice", "alice@example.com")

	t.Run("by id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users/"+created.ID.String(), nil))
		require.Equal(t, http.StatusOK, rr.Code)
		view := testutil.UnmarshalResponse[models.View](t, rr)
		assert.Equal(t, created.ID, view.ID)
	})

	t.Run("by username", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users/username/alice", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("by email", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users/email/alice@example.com", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users/"+id.NewUserID().String(), nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not_found", testutil.ErrorCode(t, rr))
	})

	t.Run("malformed id returns 400", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestListUsers(t *testing.T) {
	router := newRouter(t)
	createUser(t, router, "alice", "alice@example.com")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/users", map[string]string{
		"username": "tech1",
		"email":    "tech1@example.com",
		"password": "secret1",
		"role":     "TECH",
	})
	require.Equal(t, http.StatusCreated, testutil.DoRequest(router, req).Code)

	t.Run("all", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 2)
	})

	t.Run("filtered by role", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users?role=TECH", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		views := testutil.UnmarshalResponse[[]models.View](t, rr)
		assert.Len(t, *views, 1)
	})

	t.Run("unknown role returns 400", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users?role=WIZARD", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUserExists(t *testing.T) {
	router := newRouter(t)
	createUser(t, router, "alice", "alice@example.com")

	t.Run("taken username", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users/exists?username=alice", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[map[string]bool](t, rr)
		assert.True(t, (*body)["exists"])
	})

	t.Run("free email", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users/exists?email=free@example.com", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		body := testutil.UnmarshalResponse[map[string]bool](t, rr)
		assert.False(t, (*body)["exists"])
	})

	t.Run("no parameter returns 400", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users/exists", nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUpdateUser(t *testing.T) {
	router := newRouter(t)
	created := createUser(t, router, "alice", "alice@example.com")

	t.Run("updates fields", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/users/"+created.ID.String(), map[string]string{
			"username": "alice",
			"email":    "alice@example.com",
			"role":     "TECH",
		})
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rr.Code)
		view := testutil.UnmarshalResponse[models.View](t, rr)
		assert.Equal(t, models.RoleTech, view.Role)
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/users/"+id.NewUserID().String(), map[string]string{
			"username": "ghost",
			"email":    "ghost@example.com",
			"role":     "USER",
		})
		rr := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDeleteUser(t *testing.T) {
	router := newRouter(t)
	created := createUser(t, router, "alice", "alice@example.com")

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodDelete, "/users/"+created.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/users/"+created.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodDelete, "/users/"+created.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
