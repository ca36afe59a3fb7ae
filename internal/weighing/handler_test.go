package weighing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/weighline/weighline/internal/observability"
	_ "github.com/weighline/weighline/testing"
)

func newTestRouter(t *testing.T) (chi.Router, *memoryLedger) {
	t.Helper()
	svc, repo := newTestService(t)
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, observability.NewMetrics())
	r := chi.NewRouter()
	r.Route("/api/weighings", handler.MountRoutes)
	return r, repo
}

func postJSON(t *testing.T, r chi.Router, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	return res
}

func weighBody(code, kind string, weight float64) string {
	return fmt.Sprintf(`{"packageCode":%q,"kind":%q,"weight":%v,"weighedAt":%q,"operatorId":"OP01","deviceId":"SCALE-02"}`,
		code, kind, weight, time.Now().Format(time.RFC3339))
}

func TestHandlerSubmitCreated(t *testing.T) {
	r, repo := newTestRouter(t)

	res := postJSON(t, r, "/api/weighings", weighBody("PKG001", "intake", 100))
	require.Equal(t, http.StatusCreated, res.Code)

	var payload weighResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.EventRef)
	require.InDelta(t, 100, payload.Remaining, 0.0001)
	require.Equal(t, "OV2024120", payload.Summary.OrderRef)
	require.InDelta(t, 100, repo.packages["PKG001"].RemainingQty, 0.0001)
}

func TestHandlerRejectionStatuses(t *testing.T) {
	r, _ := newTestRouter(t)

	// Outtake before any intake.
	res := postJSON(t, r, "/api/weighings", weighBody("PKG001", "outtake", 10))
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "NOT_YET_INTAKEN", problemCode(t, res))

	res = postJSON(t, r, "/api/weighings", weighBody("PKG001", "intake", 100))
	require.Equal(t, http.StatusCreated, res.Code)

	// Second intake on the same package.
	res = postJSON(t, r, "/api/weighings", weighBody("PKG001", "intake", 90))
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "ALREADY_INTAKEN", problemCode(t, res))

	// Export beyond the remaining balance.
	res = postJSON(t, r, "/api/weighings", weighBody("PKG001", "outtake", 101))
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	require.Equal(t, "OVER_EXPORT", problemCode(t, res))

	// Unknown package.
	res = postJSON(t, r, "/api/weighings", weighBody("NOPE", "intake", 5))
	require.Equal(t, http.StatusNotFound, res.Code)
	require.Equal(t, "NOT_FOUND", problemCode(t, res))
}

func TestHandlerReweigh(t *testing.T) {
	r, _ := newTestRouter(t)

	res := postJSON(t, r, "/api/weighings/reweigh", weighBody("PKG001", "intake", 50))
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "NOTHING_TO_CORRECT", problemCode(t, res))

	res = postJSON(t, r, "/api/weighings", weighBody("PKG001", "intake", 100))
	require.Equal(t, http.StatusCreated, res.Code)

	res = postJSON(t, r, "/api/weighings/reweigh", weighBody("PKG001", "intake", 50))
	require.Equal(t, http.StatusOK, res.Code)

	var payload weighResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.InDelta(t, 50, payload.Remaining, 0.0001)
}

func TestHandlerValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	res := postJSON(t, r, "/api/weighings", `{not json`)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = postJSON(t, r, "/api/weighings", weighBody("PKG001", "transfer", 10))
	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Equal(t, "INVALID_INPUT", problemCode(t, res))

	res = postJSON(t, r, "/api/weighings", weighBody("PKG001", "intake", -5))
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = postJSON(t, r, "/api/weighings", `{"packageCode":"PKG001","kind":"intake","weight":10,"weighedAt":"yesterday","operatorId":"OP01"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func problemCode(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var problem struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &problem))
	return problem.Code
}
