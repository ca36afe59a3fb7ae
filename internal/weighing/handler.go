package weighing

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/weighline/weighline/internal/observability"
	"github.com/weighline/weighline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the weigh ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs the weighing handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validator: validator.New()}
}

// MountRoutes registers weighing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleSubmit)
	r.Post("/reweigh", h.handleReweigh)
}

type weighRequest struct {
	PackageCode string  `json:"packageCode" validate:"required,max=20"`
	Kind        string  `json:"kind" validate:"required,oneof=intake outtake"`
	Weight      float64 `json:"weight" validate:"required,gt=0"`
	WeighedAt   string  `json:"weighedAt" validate:"required"`
	OperatorID  string  `json:"operatorId" validate:"required,max=50"`
	DeviceID    string  `json:"deviceId" validate:"omitempty,max=100"`
}

type weighResponse struct {
	Message   string       `json:"message"`
	EventRef  string       `json:"eventRef"`
	Remaining float64      `json:"remaining"`
	Summary   OrderSummary `json:"summary"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	result, err := h.service.SubmitWeighEvent(r.Context(), input)
	if err != nil {
		h.respondError(w, input, err)
		return
	}
	h.metrics.ObserveWeighEvent(string(input.Kind), "accepted")
	httpx.JSON(w, http.StatusCreated, weighResponse{
		Message:   "weigh event recorded",
		EventRef:  result.EventRef,
		Remaining: result.Remaining,
		Summary:   result.Summary,
	})
}

func (h *Handler) handleReweigh(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	result, err := h.service.Reweigh(r.Context(), input)
	if err != nil {
		h.respondError(w, input, err)
		return
	}
	h.metrics.ObserveWeighEvent(string(input.Kind), "corrected")
	httpx.JSON(w, http.StatusOK, weighResponse{
		Message:   "reweigh recorded",
		EventRef:  result.EventRef,
		Remaining: result.Remaining,
		Summary:   result.Summary,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (SubmitInput, bool) {
	var req weighRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", "malformed JSON body")
		return SubmitInput{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", validationDetail(err))
		return SubmitInput{}, false
	}
	weighedAt, err := time.Parse(time.RFC3339, req.WeighedAt)
	if err != nil {
		httpx.ProblemCode(w, http.StatusBadRequest, "INVALID_INPUT", "weighedAt must be RFC3339")
		return SubmitInput{}, false
	}
	return SubmitInput{
		PackageCode: req.PackageCode,
		Kind:        EventKind(req.Kind),
		Weight:      req.Weight,
		WeighedAt:   weighedAt,
		OperatorID:  req.OperatorID,
		DeviceID:    req.DeviceID,
	}, true
}

func (h *Handler) respondError(w http.ResponseWriter, input SubmitInput, err error) {
	code := ErrorCode(err)
	h.metrics.ObserveWeighEvent(string(input.Kind), code)
	status, ok := statusByCode[code]
	if !ok {
		h.logger.Error("weigh submission failed",
			slog.String("package_code", input.PackageCode),
			slog.String("kind", string(input.Kind)),
			slog.Float64("weight", input.Weight),
			slog.Any("error", err))
		httpx.ProblemCode(w, http.StatusInternalServerError, "INTERNAL", "internal failure while recording weigh event")
		return
	}
	httpx.ProblemCode(w, status, code, err.Error())
}

// statusByCode maps the stable rejection codes onto HTTP statuses. INTERNAL
// is absent on purpose: unexpected store failures are logged and masked.
var statusByCode = map[string]int{
	"NOT_FOUND":          http.StatusNotFound,
	"ALREADY_INTAKEN":    http.StatusConflict,
	"NOT_YET_INTAKEN":    http.StatusConflict,
	"NOTHING_TO_CORRECT": http.StatusConflict,
	"OVER_EXPORT":        http.StatusUnprocessableEntity,
	"TRANSIENT":          http.StatusServiceUnavailable,
	"INVALID_INPUT":      http.StatusBadRequest,
}

func validationDetail(err error) string {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return "invalid field: " + fields[0].Field()
	}
	return "validation failed"
}
