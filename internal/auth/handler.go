package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/weighline/weighline/internal/platform/httpx"
)

// Handler wires the badge login endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the auth handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/role", h.handleRole)
}

type loginRequest struct {
	BadgeID string `json:"badgeId" validate:"required,max=50"`
}

type roleRequest struct {
	UserID string `json:"userId" validate:"required,max=50"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", "badgeId is required")
		return
	}
	account, err := h.service.Login(r.Context(), req.BadgeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) handleRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", "userId is required")
		return
	}
	role, err := h.service.CheckRole(r.Context(), req.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"role": role})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnknownBadge) {
		httpx.ProblemCode(w, http.StatusNotFound, "NOT_FOUND", "badge not recognised")
		return
	}
	h.logger.Error("badge lookup failed", slog.Any("error", err))
	httpx.ProblemCode(w, http.StatusInternalServerError, "INTERNAL", "internal failure during login")
}
