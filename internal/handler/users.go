package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taskloop/authd/internal/model"
	"github.com/taskloop/authd/internal/server/middleware"
	"github.com/taskloop/authd/internal/service"
)

// UsersHandler exposes the admin-only user management surface. Every route
// runs behind Authenticate + RequireAdmin, so handlers can assume an actor
// is present in the context.
type UsersHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func NewUsersHandler(svc *service.AuthService, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{svc: svc, logger: logger}
}

// List returns every account.
// GET /api/users
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		mapError(h.logger, w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Get returns one account by id.
// GET /api/users/{id}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	user, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		mapError(h.logger, w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type createUserRequest struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role,omitempty"`
}

// Create creates an account on behalf of the acting administrator.
// POST /api/users
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role != "" && req.Role != model.RoleAdmin && req.Role != model.RoleUser {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}

	actor := middleware.GetActor(r.Context())
	user, err := h.svc.CreateUser(r.Context(), actor, req.Name, req.Email, req.Password, req.Role, requestMeta(r))
	if err != nil {
		mapError(h.logger, w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Name     *string     `json:"name"`
	Email    *string     `json:"email"`
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
}

// Update applies a partial update to an account.
// PUT /api/users/{id}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role != nil && *req.Role != model.RoleAdmin && *req.Role != model.RoleUser {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}

	actor := middleware.GetActor(r.Context())
	upd := service.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}
	user, err := h.svc.UpdateUser(r.Context(), actor, id, upd, requestMeta(r))
	if err != nil {
		mapError(h.logger, w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete removes an account. Admin accounts are refused with 403.
// DELETE /api/users/{id}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	actor := middleware.GetActor(r.Context())
	if err := h.svc.DeleteUser(r.Context(), actor, id, requestMeta(r)); err != nil {
		mapError(h.logger, w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User deleted",
	})
}

// Stats returns the administrative overview.
// GET /api/users/stats/overview
func (h *UsersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		mapError(h.logger, w, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return 0, false
	}
	return id, true
}
