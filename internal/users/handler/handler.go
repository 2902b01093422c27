// Package handler exposes user management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mobilefix/internal/users/models"
	id "mobilefix/pkg/domain"
	dErrors "mobilefix/pkg/domain-errors"
	"mobilefix/pkg/platform/httputil"
	"mobilefix/pkg/requestcontext"
)

// Service defines the user operations the handler needs.
type Service interface {
	Create(ctx context.Context, username, email, password, role string) (*models.View, error)
	GetByID(ctx context.Context, userID id.UserID) (*models.View, error)
	GetByUsername(ctx context.Context, username string) (*models.View, error)
	GetByEmail(ctx context.Context, email string) (*models.View, error)
	ListByRole(ctx context.Context, role string) ([]*models.View, error)
	ListAll(ctx context.Context) ([]*models.View, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, userID id.UserID, username, email, password, role string) (*models.View, error)
	Delete(ctx context.Context, userID id.UserID) error
}

// Handler wires user endpoints to the user service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a user handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts user endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/exists", h.HandleExists)
		r.Get("/username/{username}", h.HandleGetByUsername)
		r.Get("/email/{email}", h.HandleGetByEmail)
		r.Get("/{id}", h.HandleGetByID)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleCreate handles POST /users.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Create(ctx, req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		h.logError(ctx, "user creation failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, view)
}

// HandleList handles GET /users, optionally filtered by ?role=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		views []*models.View
		err   error
	)
	if role := r.URL.Query().Get("role"); role != "" {
		views, err = h.service.ListByRole(ctx, role)
	} else {
		views, err = h.service.ListAll(ctx)
	}
	if err != nil {
		h.logError(ctx, "user listing failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, views)
}

// HandleExists handles GET /users/exists?username=|email=.
func (h *Handler) HandleExists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		exists bool
		err    error
	)
	switch {
	case r.URL.Query().Get("username") != "":
		exists, err = h.service.ExistsByUsername(ctx, r.URL.Query().Get("username"))
	case r.URL.Query().Get("email") != "":
		exists, err = h.service.ExistsByEmail(ctx, r.URL.Query().Get("email"))
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "username or email query parameter is required"))
		return
	}
	if err != nil {
		h.logError(ctx, "existence check failed", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// HandleGetByID handles GET /users/{id}.
func (h *Handler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.GetByID(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleGetByUsername handles GET /users/username/{username}.
func (h *Handler) HandleGetByUsername(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleGetByEmail handles GET /users/email/{email}.
func (h *Handler) HandleGetByEmail(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleUpdate handles PUT /users/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Update(ctx, userID, req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		h.logError(ctx, "user update failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleDelete handles DELETE /users/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, userID); err != nil {
		h.logError(ctx, "user deletion failed", requestcontext.RequestID(ctx), err)
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
