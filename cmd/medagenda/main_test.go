package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medagenda/medagenda/internal/config"
	"github.com/medagenda/medagenda/internal/platform/auth"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "development",
		LogLevel:           "info",
		DBMaxConns:         10,
		DBMinConns:         2,
		UpstreamTimeout:    time.Second,
		RequestTimeout:     5 * time.Second,
		CORSOrigins:        []string{"http://localhost:3000"},
		RateLimitRPS:       100,
		RateLimitBurst:     100,
		JoinCodeTTL:        7 * 24 * time.Hour,
		InviteTTL:          3 * time.Hour,
		JoinCodeUses:       1,
		DoctorTeamRedirect: "/doctor/dashboard",
		SecretaryRedirect:  "/secretary/dashboard",
		GuardMaxAttempts:   5,
		GuardWindow:        15 * time.Minute,
		FrontendURL:        "http://localhost:3000",
		SweepSchedule:      "@every 15m",
		SeedFixtures:       true,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *server {
	t.Helper()
	s, err := newServer(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func serve(s *server, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(s, http.MethodGet, "/health/db", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "memory")

	rec = serve(s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "medagenda_http_requests_total")
}

func TestServer_CheckInFlow(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, http.MethodGet, "/api/appointments/apt-001/check-in", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "cpf")

	body := `{"fullName":"ana oliveira","cpf":"123.456.789-01","birthDate":"1990-05-12","motherName":"Beatriz Oliveira","sex":"F","address":"Rua das Flores, 100"}`
	rec = serve(s, http.MethodPost, "/api/appointments/apt-001/confirm-presence", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)
}

func TestServer_TeamFlowInDevelopment(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := serve(s, http.MethodPost, "/api/team/join-codes", `{"fullName":"Maria Souza","email":"maria@clinic.example"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(s, http.MethodGet, "/api/team", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "maria@clinic.example")

	n, err := s.team.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestServer_TeamRequiresTokenInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	cfg.AuthSigningKey = "test-signing-key"
	s := newTestServer(t, cfg)

	rec := serve(s, http.MethodGet, "/api/team", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	jwtCfg := auth.JWTConfig{SigningKey: []byte(cfg.AuthSigningKey)}
	secretary, err := auth.IssueToken(jwtCfg, auth.Identity{UserID: "u-2", Roles: []string{auth.RoleSecretary}}, time.Hour, time.Now())
	require.NoError(t, err)
	rec = serve(s, http.MethodGet, "/api/team", "", http.Header{"Authorization": {"Bearer " + secretary}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	doctor, err := auth.IssueToken(jwtCfg, auth.Identity{UserID: "u-1", Roles: []string{auth.RoleDoctor}}, time.Hour, time.Now())
	require.NoError(t, err)
	rec = serve(s, http.MethodGet, "/api/team", "", http.Header{"Authorization": {"Bearer " + doctor}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ProxiesEverythingElse(t *testing.T) {
	rec := serve(newTestServer(t, testConfig()), http.MethodGet, "/api/doctors", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"backend API URL is not configured"}`, rec.Body.String())

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	}))
	defer backend.Close()

	cfg := testConfig()
	cfg.BackendAPIURL = backend.URL
	rec = serve(newTestServer(t, cfg), http.MethodGet, "/api/doctors?specialty=cardio", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"path":"/doctors"}`, rec.Body.String())
}

func TestServer_RedisGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.GuardMaxAttempts = 1
	s := newTestServer(t, cfg)

	body := `{"fullName":"Someone Else","cpf":"000","birthDate":"1990-01-01","motherName":"M","sex":"F","address":"A"}`
	rec := serve(s, http.MethodPost, "/api/appointments/apt-002/confirm-presence", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(s, http.MethodPost, "/api/appointments/apt-002/confirm-presence", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, mr.Keys())
	assert.NotContains(t, s.scheduler.Names(), "prune-attempt-counters")
}

func TestServer_MaintenanceJobs(t *testing.T) {
	s := newTestServer(t, testConfig())
	assert.Equal(t, []string{"expire-join-codes", "prune-rate-limiters", "prune-attempt-counters"}, s.scheduler.Names())
}

func TestNewServer_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	_, err := newServer(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.SweepSchedule = "whenever"
	_, err = newServer(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", "cli-key")
	t.Setenv("ENV", "development")

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--sub", "doc-1", "--role", "doctor"})
	require.NoError(t, cmd.Execute())

	tok := strings.TrimSpace(out.String())
	assert.Equal(t, 2, strings.Count(tok, "."))
}

func TestNewLogger_Level(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "DEBUG"
	assert.Equal(t, zerolog.DebugLevel, newLogger(cfg).GetLevel())

	cfg.LogLevel = "bogus"
	assert.Equal(t, zerolog.InfoLevel, newLogger(cfg).GetLevel())
}
