package sync

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weighline/weighline/internal/auth"
	"github.com/weighline/weighline/internal/devices"
	"github.com/weighline/weighline/internal/platform/httpx"
)

// DumpPort abstracts the package dump for the handler.
type DumpPort interface {
	UnweighedDump(ctx context.Context) ([]PackageRow, error)
}

// OperatorPort serves the operator dump.
type OperatorPort interface {
	ListOperators(ctx context.Context) ([]auth.Operator, error)
}

// DevicePort serves the device dump.
type DevicePort interface {
	List(ctx context.Context) ([]devices.Device, error)
}

// Handler exposes the bulk dumps consumed by offline handheld terminals.
type Handler struct {
	logger    *slog.Logger
	dump      DumpPort
	operators OperatorPort
	devices   DevicePort
}

// NewHandler constructs the sync handler.
func NewHandler(logger *slog.Logger, dump DumpPort, operators OperatorPort, devicePort DevicePort) *Handler {
	return &Handler{logger: logger, dump: dump, operators: operators, devices: devicePort}
}

// MountRoutes registers sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/unweighed", h.handleUnweighed)
	r.Get("/persons", h.handlePersons)
	r.Get("/devices", h.handleDevices)
}

func (h *Handler) handleUnweighed(w http.ResponseWriter, r *http.Request) {
	packages, err := h.dump.UnweighedDump(r.Context())
	if err != nil {
		h.fail(w, "unweighed dump failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"packages": packages})
}

func (h *Handler) handlePersons(w http.ResponseWriter, r *http.Request) {
	operators, err := h.operators.ListOperators(r.Context())
	if err != nil {
		h.fail(w, "operator dump failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"persons": operators})
}

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	list, err := h.devices.List(r.Context())
	if err != nil {
		h.fail(w, "device dump failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"devices": list})
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.ProblemCode(w, http.StatusInternalServerError, "INTERNAL", "internal failure during sync")
}
