// Package handler exposes the device registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mobilefix/internal/devices/models"
	id "mobilefix/pkg/domain"
	"mobilefix/pkg/platform/httputil"
	"mobilefix/pkg/requestcontext"
)

// Service defines the device operations the handler needs.
type Service interface {
	Create(ctx context.Context, brand, model string, ownerID id.UserID) (*models.View, error)
	GetByID(ctx context.Context, deviceID id.DeviceID) (*models.View, error)
	ListAll(ctx context.Context) ([]*models.View, error)
	ListByOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.View, error)
	ListByBrand(ctx context.Context, brand string) ([]*models.View, error)
	ListByBrandAndModel(ctx context.Context, brand, model string) ([]*models.View, error)
	CountByOwnerID(ctx context.Context, ownerID id.UserID) (int64, error)
	Update(ctx context.Context, deviceID id.DeviceID, brand, model string, ownerID id.UserID) (*models.View, error)
	Delete(ctx context.Context, deviceID id.DeviceID) error
}

// Handler wires device endpoints to the device service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a device handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts device endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/devices", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/owner/{ownerId}", h.HandleListByOwner)
		r.Get("/owner/{ownerId}/count", h.HandleCountByOwner)
		r.Get("/{id}", h.HandleGetByID)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleCreate handles POST /devices.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DeviceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Create(ctx, req.Brand, req.Model, req.ParsedOwnerID())
	if err != nil {
		h.logError(ctx, "device creation failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, view)
}

// HandleList handles GET /devices, optionally filtered by ?brand= and
// ?model= (model narrows the brand filter, alone it is ignored).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand := r.URL.Query().Get("brand")
	model := r.URL.Query().Get("model")

	var (
		views []*models.View
		err   error
	)
	switch {
	case brand != "" && model != "":
		views, err = h.service.ListByBrandAndModel(ctx, brand, model)
	case brand != "":
		views, err = h.service.ListByBrand(ctx, brand)
	default:
		views, err = h.service.ListAll(ctx)
	}
	if err != nil {
		h.logError(ctx, "device listing failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleListByOwner handles GET /devices/owner/{ownerId}.
func (h *Handler) HandleListByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := id.ParseUserID(chi.URLParam(r, "ownerId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views, err := h.service.ListByOwnerID(r.Context(), ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleCountByOwner handles GET /devices/owner/{ownerId}/count.
func (h *Handler) HandleCountByOwner(w http.ResponseWriter, r *http.Request) {
	ownerID, err := id.ParseUserID(chi.URLParam(r, "ownerId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	count, err := h.service.CountByOwnerID(r.Context(), ownerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// HandleGetByID handles GET /devices/{id}.
func (h *Handler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	deviceID, err := id.ParseDeviceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.GetByID(r.Context(), deviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleUpdate handles PUT /devices/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	deviceID, err := id.ParseDeviceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[DeviceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Update(ctx, deviceID, req.Brand, req.Model, req.ParsedOwnerID())
	if err != nil {
		h.logError(ctx, "device update failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleDelete handles DELETE /devices/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID, err := id.ParseDeviceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, deviceID); err != nil {
		h.logError(ctx, "device deletion failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg, requestID string, err error) {
	if h.logger == nil {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestID,
		"error", err,
	)
}
