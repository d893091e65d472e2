package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-io/gatehouse/internal/authz"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Guard authorizes a request, writing the failure response itself.
type Guard interface {
	Check(w http.ResponseWriter, r *http.Request, action authz.Action, recordID string) (authz.Decision, bool)
}

var (
	actionList          = authz.NewAction(authz.EntityUser, authz.OpList)
	actionRead          = authz.NewAction(authz.EntityUser, authz.OpRead)
	actionUpdate        = authz.NewAction(authz.EntityUser, authz.OpUpdate)
	actionDelete        = authz.NewAction(authz.EntityUser, authz.OpDelete)
	actionProfileRead   = authz.NewAction(authz.EntityProfile, authz.OpRead)
	actionProfileUpdate = authz.NewAction(authz.EntityProfile, authz.OpUpdate)
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     Guard
	validator *shared.Validator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validator: shared.NewValidator()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/profile", h.getProfile)
	r.Put("/profile", h.updateProfile)
	r.Get("/", h.listUsers)
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
}

type updateUserRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
	Role  *string `json:"role" validate:"omitempty,oneof=member moderator admin"`
}

type updateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.guard.Check(w, r, actionList, ""); !ok {
		return
	}
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, "list users", "", err)
		return
	}
	httpx.List(w, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.guard.Check(w, r, actionRead, id); !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get user", id, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.guard.Check(w, r, actionUpdate, id); !ok {
		return
	}
	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := UpdateInput{Name: req.Name, Email: req.Email}
	if req.Role != nil {
		role := authz.Role(*req.Role)
		in.Role = &role
	}
	user, err := h.service.UpdateUser(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, "update user", id, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.guard.Check(w, r, actionDelete, id); !ok {
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, r, "delete user", id, err)
		return
	}
	httpx.OK(w, http.StatusOK, struct{}{})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.guard.Check(w, r, actionProfileRead, "")
	if !ok {
		return
	}
	user, err := h.service.GetUser(r.Context(), decision.Principal.ID)
	if err != nil {
		h.fail(w, r, "get profile", decision.Principal.ID, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.guard.Check(w, r, actionProfileUpdate, "")
	if !ok {
		return
	}
	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), decision.Principal, UpdateInput{Name: req.Name, Email: req.Email})
	if err != nil {
		h.fail(w, r, "update profile", decision.Principal.ID, err)
		return
	}
	httpx.OK(w, http.StatusOK, user)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", rbac.NotFoundMessage(authz.EntityUser, id))
	case errors.Is(err, shared.ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), op, slog.String("user", id), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return false
	}
	fields, err := h.validator.Struct(dst)
	if err != nil {
		h.logger.Error("validate request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return false
	}
	if fields != nil {
		httpx.ValidationProblem(w, fields)
		return false
	}
	return true
}
