// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func ok(context.Context) error { return nil }

func get(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReadiness(t *testing.T) {
	h := NewHandler(
		Dependency{Name: "database", Checker: pingFunc(ok)},
		Dependency{Name: "redis", Checker: pingFunc(ok)},
	)

	rec := get(t, h, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	var res ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "ok", res.Status)
	require.Len(t, res.Checks, 2)
	assert.Equal(t, "database", res.Checks[0].Name)
	assert.Equal(t, "redis", res.Checks[1].Name)
}

func TestReadiness_Degraded(t *testing.T) {
	h := NewHandler(
		Dependency{Name: "database", Checker: pingFunc(ok)},
		Dependency{Name: "redis", Checker: pingFunc(func(context.Context) error {
			return errors.New("connection refused")
		})},
		Dependency{Name: "broker"},
	)

	rec := get(t, h, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var res ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "degraded", res.Status)
	assert.False(t, res.Checks[1].Healthy)
	assert.Equal(t, "ping failed", res.Checks[1].Message)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Equal(t, "not configured", res.Checks[2].Message)
}

func TestShutdownFailsProbes(t *testing.T) {
	h := NewHandler()
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)

	h.SetShutdown(true)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)
}
