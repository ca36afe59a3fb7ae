package devices

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/weighline/weighline/internal/platform/httpx"
)

// RepositoryPort abstracts the registry store for the handler.
type RepositoryPort interface {
	List(ctx context.Context) ([]Device, error)
	Create(ctx context.Context, input Input) (Device, error)
	Update(ctx context.Context, id int64, input Input) (Device, error)
	Delete(ctx context.Context, id int64) error
}

// Handler exposes device registry CRUD. The registry is plain bookkeeping,
// thin enough that the handler talks to the repository directly.
type Handler struct {
	logger    *slog.Logger
	repo      RepositoryPort
	validator *validator.Validate
}

// NewHandler constructs the devices handler.
func NewHandler(logger *slog.Logger, repo RepositoryPort) *Handler {
	return &Handler{logger: logger, repo: repo, validator: validator.New()}
}

// MountRoutes registers device routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	devices, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list devices failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	device, err := h.repo.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create device failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, device)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	device, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, device)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Input, bool) {
	var input Input
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", "malformed JSON body")
		return Input{}, false
	}
	if err := h.validator.Struct(input); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", "name and address are required")
		return Input{}, false
	}
	return input, true
}

func (h *Handler) deviceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", "device id must be a positive integer")
		return 0, false
	}
	return id, true
}
