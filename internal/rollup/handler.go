package rollup

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weighline/weighline/internal/platform/httpx"
)

// Handler exposes the rollup read endpoints used by office dashboards and the
// handheld terminals.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the rollup handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers rollup routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders/{ref}/summary", h.handleOrderSummary)
	r.Route("/unweighed", func(r chi.Router) {
		r.Get("/summary", h.handleUnfinishedSummary)
		r.Get("/details/{ref}", h.handleUnfinishedDetails)
	})
	r.Route("/warehouse", func(r chi.Router) {
		r.Get("/summary", h.handleWarehouseSummary)
		r.Get("/details/{ref}", h.handleWarehouseDetails)
	})
}

func (h *Handler) handleOrderSummary(w http.ResponseWriter, r *http.Request) {
	rollup, err := h.service.OrderSummary(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rollup)
}

func (h *Handler) handleUnfinishedSummary(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.UnfinishedSummary(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) handleUnfinishedDetails(w http.ResponseWriter, r *http.Request) {
	packages, err := h.service.UnfinishedDetails(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"packages": packages})
}

func (h *Handler) handleWarehouseSummary(w http.ResponseWriter, r *http.Request) {
	stock, err := h.service.WarehouseSummary(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": stock})
}

func (h *Handler) handleWarehouseDetails(w http.ResponseWriter, r *http.Request) {
	packages, err := h.service.WarehouseDetails(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"packages": packages})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrOrderNotFound) {
		httpx.ProblemCode(w, http.StatusNotFound, "NOT_FOUND", "order not found")
		return
	}
	h.logger.Error("rollup query failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.ProblemCode(w, http.StatusInternalServerError, "INTERNAL", "internal failure while reading rollups")
}
