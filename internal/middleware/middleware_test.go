// AngelaMos | 2026
// middleware_test.go

package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/carterperez-dev/templates/marketplace-auth/internal/config"
	"github.com/carterperez-dev/templates/marketplace-auth/internal/core"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\nwith newline")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Len(t, seen, 36)
	assert.NotContains(t, seen, " ")
}

func TestMaskTokenPath(t *testing.T) {
	token := strings.Repeat("ab", 32)

	assert.Equal(t,
		"/v1/auth/users/verify-email/***",
		maskTokenPath("/v1/auth/users/verify-email/"+token))
	assert.Equal(t,
		"/v1/auth/admins/reset-password/***",
		maskTokenPath("/v1/auth/admins/reset-password/"+token))
	assert.Equal(t,
		"/v1/auth/users/verify-email/resend",
		maskTokenPath("/v1/auth/users/verify-email/resend"))
	assert.Equal(t, "/v1/auth/users/login", maskTokenPath("/v1/auth/users/login"))
}

func TestLogger_NeverWritesTokens(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	token := strings.Repeat("cd", 32)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/users/verify-email/"+token, nil)
	Logger(logger)(noContent).ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "status=204")
	assert.NotContains(t, buf.String(), token)
}

func TestCORS(t *testing.T) {
	h := CORS(config.CORSConfig{
		AllowedOrigins:   []string{"https://shop.example"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})(noContent)

	req := httptest.NewRequest(http.MethodOptions, "/v1/auth/users/login", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "GET, POST", rec.Header().Get("Access-Control-Allow-Methods"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/auth/users/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(true)(noContent).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	SecurityHeaders(false)(noContent).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestNormalizeEndpoint_CollapsesTokens(t *testing.T) {
	token := strings.Repeat("0f", 32)
	a := normalizeEndpoint("/v1/auth/users/reset-password/" + token)
	b := normalizeEndpoint("/v1/auth/users/reset-password/" + strings.Repeat("1e", 32))
	assert.Equal(t, a, b)
	assert.NotContains(t, a, token)
}

func TestTrace_NamesSpanByRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := chi.NewRouter()
	r.Use(Trace)

	var traceID string
	r.Get("/v1/auth/users/verify-email/{token}", func(w http.ResponseWriter, r *http.Request) {
		traceID = core.TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	token := strings.Repeat("ab", 32)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/auth/users/verify-email/"+token, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, traceID)

	spans := recorder.Ended()
	if assert.Len(t, spans, 1) {
		assert.Equal(t, "GET /v1/auth/users/verify-email/{token}", spans[0].Name())
		assert.NotContains(t, spans[0].Name(), token)
	}
}
