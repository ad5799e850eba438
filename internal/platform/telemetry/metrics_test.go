package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CodeCreated("join")
	m.CodeCreated("join")
	m.CodeCreated("invite")
	m.JoinAttempt("redeemed")
	m.CodesSwept(3)
	m.CodesSwept(0)
	m.PresenceConfirmation("mismatch")
	m.ObserveUpstream("2xx", 0.12)
	m.GuardBlocked("confirm")
	m.ObserveHTTP(http.MethodGet, "/api/team", http.StatusOK, 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.codesCreated.WithLabelValues("join")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.codesCreated.WithLabelValues("invite")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.codesSwept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/team", "200")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.CodeCreated("join")
	m.JoinAttempt("invalid")
	m.CodesSwept(1)
	m.PresenceConfirmation("confirmed")
	m.ObserveUpstream("5xx", 1)
	m.GuardBlocked("join")
	m.ObserveHTTP(http.MethodPost, "/api/team/join", http.StatusBadRequest, 0.2)
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := NewRegistry()
	m := NewMetrics(reg)
	m.CodeCreated("join")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, Handler(reg)(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `medagenda_team_codes_created_total{kind="join"} 1`))
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(204))
	assert.Equal(t, "3xx", StatusClass(302))
	assert.Equal(t, "4xx", StatusClass(404))
	assert.Equal(t, "5xx", StatusClass(502))
}
