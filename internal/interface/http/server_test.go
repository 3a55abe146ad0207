package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esat-hub/skills-hub/config"
	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/memory"
	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/seed"
	"github.com/esat-hub/skills-hub/internal/interface/http/handlers"
)

func newTestServer(t *testing.T, cfg Config, checker handlers.HealthChecker) *Server {
	t.Helper()
	deps := newDeps(memory.NewDemoStore(), config.LoadFeatureFlags(nil))
	deps.HealthChecker = checker
	return NewServer(cfg, deps)
}

func serve(s *Server, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	failing := func(context.Context) error { return errors.New("connection refused") }
	passing := func(context.Context) error { return nil }

	tests := []struct {
		name       string
		setup      func(c *handlers.CompositeHealthChecker)
		wantHealth int
		wantReady  int
	}{
		{
			name:       "all checks pass",
			setup:      func(c *handlers.CompositeHealthChecker) { c.AddCheck("database", passing) },
			wantHealth: http.StatusOK,
			wantReady:  http.StatusOK,
		},
		{
			name: "cache down only degrades",
			setup: func(c *handlers.CompositeHealthChecker) {
				c.AddCheck("database", passing)
				c.AddOptionalCheck("cache", failing)
			},
			wantHealth: http.StatusOK,
			wantReady:  http.StatusOK,
		},
		{
			name:       "database down",
			setup:      func(c *handlers.CompositeHealthChecker) { c.AddCheck("database", failing) },
			wantHealth: http.StatusServiceUnavailable,
			wantReady:  http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := handlers.NewCompositeHealthChecker("test")
			tt.setup(checker)
			s := newTestServer(t, DefaultConfig(), checker)

			assert.Equal(t, tt.wantHealth, serve(s, http.MethodGet, "/health", nil).Code)
			assert.Equal(t, tt.wantReady, serve(s, http.MethodGet, "/ready", nil).Code)
		})
	}
}

func TestCompositeHealthChecker_Degraded(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("1.2.3")
	checker.AddCheck("database", func(context.Context) error { return nil })
	checker.AddOptionalCheck("cache", func(context.Context) error { return errors.New("timeout") })

	status := checker.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "Degraded: cache", status.Message)
	assert.Equal(t, "1.2.3", status.Version)
	require.Contains(t, status.Checks, "cache")
	assert.True(t, status.Checks["cache"].Optional)
	assert.Equal(t, "timeout", status.Checks["cache"].Message)
}

func TestAPIKeyGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKeys = []string{"gateway-secret"}
	s := newTestServer(t, cfg, nil)

	admin := map[string]string{HeaderUserID: adminID, HeaderUserRole: "ADMIN"}

	rec := serve(s, http.MethodGet, "/api/validations", admin)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	admin["X-API-Key"] = "wrong"
	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/api/validations", admin).Code)

	admin["X-API-Key"] = "gateway-secret"
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/validations", admin).Code)

	// Health checks stay open.
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/health", nil).Code)
}

func TestRequestIDAndHeaders(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	rec := serve(s, http.MethodGet, "/api/my-skills", map[string]string{HeaderUserID: marieID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	rec = serve(s, http.MethodGet, "/health", map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestBodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 16
	s := newTestServer(t, cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/my-skills/"+seed.Skills()[0].ID,
		strings.NewReader(`{"status":"PENDING_VALIDATION","padding":"`+strings.Repeat("x", 64)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderUserID, marieID)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
}

func TestCORS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://app.example.org"}
	s := newTestServer(t, cfg, nil)

	rec := serve(s, http.MethodOptions, "/api/my-skills", map[string]string{
		"Origin":                        "https://app.example.org",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(s, http.MethodGet, "/health", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOpenAPIDocumentListsOperations(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), nil)

	paths := s.API().OpenAPI().Paths
	for _, p := range []string{
		"/api/my-skills",
		"/api/my-skills/{skillId}",
		"/api/my-skills/{skillId}/restart",
		"/api/users/{userId}/skills",
		"/api/validations",
		"/api/validations/{userSkillId}/approve",
		"/api/validations/{userSkillId}/reject",
	} {
		assert.Contains(t, paths, p)
	}
}
