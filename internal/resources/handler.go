package resources

import (
	"encoding/json"
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
	actionList   = authz.NewAction(authz.EntityResource, authz.OpList)
	actionRead   = authz.NewAction(authz.EntityResource, authz.OpRead)
	actionCreate = authz.NewAction(authz.EntityResource, authz.OpCreate)
	actionUpdate = authz.NewAction(authz.EntityResource, authz.OpUpdate)
	actionDelete = authz.NewAction(authz.EntityResource, authz.OpDelete)
)

// Handler serves the resource endpoints.
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

// MountRoutes registers resource routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

// createRequest accepts owner and createdBy so older clients keep working;
// both are ignored and the caller always becomes the owner.
type createRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	Owner       json.RawMessage `json:"owner,omitempty"`
	CreatedBy   json.RawMessage `json:"createdBy,omitempty"`
}

type updateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.guard.Check(w, r, actionList, "")
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), decision.Scope)
	if err != nil {
		h.fail(w, r, "list resources", "", err)
		return
	}
	httpx.List(w, items)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	decision, ok := h.guard.Check(w, r, actionCreate, "")
	if !ok {
		return
	}
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Create(r.Context(), decision.Principal, CreateInput{Name: req.Name, Description: req.Description})
	if err != nil {
		h.fail(w, r, "create resource", "", err)
		return
	}
	httpx.OK(w, http.StatusCreated, res)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.guard.Check(w, r, actionRead, id); !ok {
		return
	}
	res, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get resource", id, err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.guard.Check(w, r, actionUpdate, id); !ok {
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Update(r.Context(), id, UpdateInput{Name: req.Name, Description: req.Description})
	if err != nil {
		h.fail(w, r, "update resource", id, err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.guard.Check(w, r, actionDelete, id); !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete resource", id, err)
		return
	}
	httpx.OK(w, http.StatusOK, struct{}{})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", rbac.NotFoundMessage(authz.EntityResource, id))
		return
	}
	h.logger.ErrorContext(r.Context(), op, slog.String("resource", id), slog.Any("error", err))
	httpx.RespondError(w, err)
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
