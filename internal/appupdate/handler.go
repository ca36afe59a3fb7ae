package appupdate

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weighline/weighline/internal/platform/httpx"
)

// Handler serves the terminal self-update endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the appupdate handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers app update routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check", h.handleCheck)
	r.Get("/download", h.handleDownload)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Check(r.URL.Query().Get("version"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, err := h.service.APKPath()
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.android.package-archive")
	http.ServeFile(w, r, path)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNoUpdate) {
		httpx.ProblemCode(w, http.StatusNotFound, "NOT_FOUND", "no update published")
		return
	}
	h.logger.Error("app update lookup failed", slog.Any("error", err))
	httpx.ProblemCode(w, http.StatusInternalServerError, "INTERNAL", "internal failure while checking updates")
}
