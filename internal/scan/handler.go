package scan

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weighline/weighline/internal/platform/httpx"
)

// Handler exposes the scan endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the scan handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers scan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{code}", h.handleScan)
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	view, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrPackageNotFound) {
			httpx.ProblemCode(w, http.StatusNotFound, "NOT_FOUND", "package not found")
			return
		}
		h.logger.Error("scan resolve failed", slog.String("package_code", code), slog.Any("error", err))
		httpx.ProblemCode(w, http.StatusInternalServerError, "INTERNAL", "internal failure while resolving scan")
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}
