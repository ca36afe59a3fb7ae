package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/weighline/weighline/internal/platform/httpx"
)

type memoryRegistry struct {
	devices map[int64]Device
	nextID  int64
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{devices: make(map[int64]Device)}
}

func (m *memoryRegistry) List(ctx context.Context) ([]Device, error) {
	list := []Device{}
	for id := int64(1); id <= m.nextID; id++ {
		if device, ok := m.devices[id]; ok {
			list = append(list, device)
		}
	}
	return list, nil
}

func (m *memoryRegistry) Create(ctx context.Context, input Input) (Device, error) {
	m.nextID++
	device := Device{ID: m.nextID, Name: input.Name, Address: input.Address, Kind: input.Kind}
	m.devices[device.ID] = device
	return device, nil
}

func (m *memoryRegistry) Update(ctx context.Context, id int64, input Input) (Device, error) {
	if _, ok := m.devices[id]; !ok {
		return Device{}, httpx.ErrNotFound
	}
	device := Device{ID: id, Name: input.Name, Address: input.Address, Kind: input.Kind}
	m.devices[id] = device
	return device, nil
}

func (m *memoryRegistry) Delete(ctx context.Context, id int64) error {
	if _, ok := m.devices[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.devices, id)
	return nil
}

func newTestRouter(t *testing.T) (chi.Router, *memoryRegistry) {
	t.Helper()
	repo := newMemoryRegistry()
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)
	r := chi.NewRouter()
	r.Route("/api/devices", handler.MountRoutes)
	return r, repo
}

func TestDeviceLifecycle(t *testing.T) {
	r, repo := newTestRouter(t)

	body := `{"name":"Scale 2","address":"192.168.1.20","kind":"scale"}`
	req := httptest.NewRequest(http.MethodPost, "/api/devices/", bytes.NewBufferString(body))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusCreated, res.Code)

	var created Device
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	require.Equal(t, int64(1), created.ID)

	req = httptest.NewRequest(http.MethodPut, "/api/devices/1", bytes.NewBufferString(`{"name":"Scale 2b","address":"192.168.1.21"}`))
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "Scale 2b", repo.devices[1].Name)

	req = httptest.NewRequest(http.MethodDelete, "/api/devices/1", nil)
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Empty(t, repo.devices)
}

func TestDeviceNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/devices/99", bytes.NewBufferString(`{"name":"x","address":"y"}`))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusNotFound, res.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/devices/99", nil)
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestDeviceValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/devices/", bytes.NewBufferString(`{"name":""}`))
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/devices/abc", bytes.NewBufferString(`{"name":"x","address":"y"}`))
	res = httptest.NewRecorder()
	r.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
}
