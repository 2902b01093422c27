// Package handler exposes the repair workflow over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"mobilefix/internal/repairs/models"
	"mobilefix/internal/repairs/service"
	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
	"mobilefix/pkg/platform/httputil"
	"mobilefix/pkg/requestcontext"
)

// Service defines the repair operations the handler needs.
type Service interface {
	Create(ctx context.Context, p service.CreateParams) (*models.View, error)
	GetByID(ctx context.Context, repairID id.RepairID) (*models.View, error)
	ListAll(ctx context.Context, orderedByCostDesc bool) ([]*models.View, error)
	ListByDeviceID(ctx context.Context, deviceID id.DeviceID) ([]*models.View, error)
	ListByStatus(ctx context.Context, status string, orderedByDateDesc bool) ([]*models.View, error)
	ListByStatusAndTechnician(ctx context.Context, status string, technicianID id.UserID) ([]*models.View, error)
	ListByTechnicianID(ctx context.Context, technicianID id.UserID) ([]*models.View, error)
	ListByOwnerID(ctx context.Context, ownerID id.UserID) ([]*models.View, error)
	ListUnassigned(ctx context.Context) ([]*models.View, error)
	ListAssigned(ctx context.Context) ([]*models.View, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]*models.View, error)
	CountByTechnicianAndStatus(ctx context.Context, technicianID id.UserID, status string) (int64, error)
	TotalCostByDevice(ctx context.Context, deviceID id.DeviceID) (float64, error)
	Update(ctx context.Context, repairID id.RepairID, p service.UpdateParams) (*models.View, error)
	AssignTechnician(ctx context.Context, repairID id.RepairID, technicianID id.UserID) (*models.View, error)
	UpdateStatus(ctx context.Context, repairID id.RepairID, status string) (*models.View, error)
	Delete(ctx context.Context, repairID id.RepairID) error
}

// Handler wires repair endpoints to the repair service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a repair handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts repair endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/repairs", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/unassigned", h.HandleListUnassigned)
		r.Get("/assigned", h.HandleListAssigned)
		r.Get("/date-range", h.HandleListByDateRange)
		r.Get("/device/{deviceId}", h.HandleListByDevice)
		r.Get("/device/{deviceId}/total-cost", h.HandleTotalCostByDevice)
		r.Get("/status/{status}", h.HandleListByStatus)
		r.Get("/technician/{technicianId}", h.HandleListByTechnician)
		r.Get("/technician/{technicianId}/count", h.HandleCountByTechnician)
		r.Get("/owner/{ownerId}", h.HandleListByOwner)
		r.Get("/{id}", h.HandleGetByID)
		r.Put("/{id}", h.HandleUpdate)
		r.Patch("/{id}/technician", h.HandleAssignTechnician)
		r.Patch("/{id}/status", h.HandleUpdateStatus)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleCreate handles POST /repairs.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RepairRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Create(ctx, service.CreateParams{
		Description:   req.Description,
		EstimatedDate: req.ParsedEstimatedDate(),
		Status:        req.Status,
		Cost:          req.Cost,
		DeviceID:      req.ParsedDeviceID(),
		TechnicianID:  req.ParsedTechnicianID(),
	})
	if err != nil {
		h.logError(ctx, "repair creation failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, view)
}

// HandleList handles GET /repairs, optionally ordered with ?sort=cost_desc.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	views, err := h.service.ListAll(ctx, r.URL.Query().Get("sort") == "cost_desc")
	if err != nil {
		h.logError(ctx, "repair listing failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleListUnassigned handles GET /repairs/unassigned.
func (h *Handler) HandleListUnassigned(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListUnassigned(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleListAssigned handles GET /repairs/assigned.
func (h *Handler) HandleListAssigned(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListAssigned(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleListByDateRange handles GET /repairs/date-range?from=&to=, both
// bounds inclusive.
func (h *Handler) HandleListByDateRange(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(models.DateLayout, r.URL.Query().Get("from"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "from must be formatted as YYYY-MM-DD"))
		return
	}
	to, err := time.Parse(models.DateLayout, r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "to must be formatted as YYYY-MM-DD"))
		return
	}

	views, err := h.service.ListByDateRange(r.Context(), from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleListByDevice handles GET /repairs/device/{deviceId}.
func (h *Handler) HandleListByDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := id.ParseDeviceID(chi.URLParam(r, "deviceId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views, err := h.service.ListByDeviceID(r.Context(), deviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleTotalCostByDevice handles GET /repairs/device/{deviceId}/total-cost.
func (h *Handler) HandleTotalCostByDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, err := id.ParseDeviceID(chi.URLParam(r, "deviceId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	total, err := h.service.TotalCostByDevice(r.Context(), deviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]float64{"total_cost": total})
}

// HandleListByStatus handles GET /repairs/status/{status}. Supports
// ?sort=date_desc and ?technician= to narrow by assignee.
func (h *Handler) HandleListByStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := chi.URLParam(r, "status")

	if technician := r.URL.Query().Get("technician"); technician != "" {
		technicianID, err := id.ParseUserID(technician)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		views, err := h.service.ListByStatusAndTechnician(ctx, status, technicianID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, views)
		return
	}

	views, err := h.service.ListByStatus(ctx, status, r.URL.Query().Get("sort") == "date_desc")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleListByTechnician handles GET /repairs/technician/{technicianId}.
func (h *Handler) HandleListByTechnician(w http.ResponseWriter, r *http.Request) {
	technicianID, err := id.ParseUserID(chi.URLParam(r, "technicianId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views, err := h.service.ListByTechnicianID(r.Context(), technicianID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleCountByTechnician handles
// GET /repairs/technician/{technicianId}/count?status=.
func (h *Handler) HandleCountByTechnician(w http.ResponseWriter, r *http.Request) {
	technicianID, err := id.ParseUserID(chi.URLParam(r, "technicianId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "status query parameter is required"))
		return
	}

	count, err := h.service.CountByTechnicianAndStatus(r.Context(), technicianID, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// HandleListByOwner handles GET /repairs/owner/{ownerId}.
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

// HandleGetByID handles GET /repairs/{id}.
func (h *Handler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	repairID, err := id.ParseRepairID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.GetByID(r.Context(), repairID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleUpdate handles PUT /repairs/{id}. The body is a full replacement;
// omitting the technician clears the assignment.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	repairID, err := id.ParseRepairID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RepairRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Update(ctx, repairID, service.UpdateParams{
		Description:   req.Description,
		EstimatedDate: req.ParsedEstimatedDate(),
		Status:        req.Status,
		Cost:          req.Cost,
		DeviceID:      req.ParsedDeviceID(),
		TechnicianID:  req.ParsedTechnicianID(),
	})
	if err != nil {
		h.logError(ctx, "repair update failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleAssignTechnician handles PATCH /repairs/{id}/technician.
func (h *Handler) HandleAssignTechnician(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	repairID, err := id.ParseRepairID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AssignTechnicianRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.AssignTechnician(ctx, repairID, req.ParsedTechnicianID())
	if err != nil {
		h.logError(ctx, "technician assignment failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleUpdateStatus handles PATCH /repairs/{id}/status.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	repairID, err := id.ParseRepairID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.UpdateStatus(ctx, repairID, req.Status)
	if err != nil {
		h.logError(ctx, "status update failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleDelete handles DELETE /repairs/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	repairID, err := id.ParseRepairID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, repairID); err != nil {
		h.logError(ctx, "repair deletion failed", requestcontext.RequestID(ctx), err)
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
