package team

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medagenda/medagenda/internal/platform/apperr"
	"github.com/medagenda/medagenda/internal/platform/auth"
	"github.com/medagenda/medagenda/internal/platform/guard"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	g := guard.New(guard.NewMemoryStore(), guard.Config{Scope: "join", MaxAttempts: 2, Window: time.Minute}, zerolog.Nop(), nil)
	h := NewHandler(svc, g)
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	return h, e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_CreateJoinCode(t *testing.T) {
	h, e := newTestHandler()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/team/join-codes", `{"fullName":"Maria Souza","email":"maria@clinic.example"}`), rec)

	if err := h.CreateJoinCode(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	for _, k := range []string{"id", "code", "expiresAt", "usesLeft", "status", "secretaryName", "secretaryEmail"} {
		if _, ok := body[k]; !ok {
			t.Errorf("response missing %q: %s", k, rec.Body.String())
		}
	}
	if body["status"] != "active" {
		t.Errorf("expected active status, got %v", body["status"])
	}
}

func TestHandler_CreateJoinCode_BadRequest(t *testing.T) {
	h, e := newTestHandler()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/team/join-codes", `{"fullName":"Maria"}`), rec)

	err := h.CreateJoinCode(c)
	if !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	e.HTTPErrorHandler(err, c)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"message":"full name and email are required"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateInvite(t *testing.T) {
	h, e := newTestHandler()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/api/team/invites",
		`{"maxUses":2,"secretaryFullName":"Carla Lima","secretaryCorporateEmail":"carla@clinic.example"}`), rec)

	if err := h.CreateInvite(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var inv Invite
	json.Unmarshal(rec.Body.Bytes(), &inv)
	if inv.Status != "ACTIVE" || inv.UsesRemaining != 2 || inv.InviteID == "" {
		t.Errorf("unexpected invite %+v", inv)
	}
	if inv.SecretaryCorporateEmail != "carla@clinic.example" {
		t.Errorf("unexpected email %q", inv.SecretaryCorporateEmail)
	}
}

func TestHandler_RevokeAndRemove_NoContent(t *testing.T) {
	h, e := newTestHandler()

	tests := []struct {
		name    string
		param   string
		handler echo.HandlerFunc
	}{
		{"revoke join code", "id", h.RevokeJoinCode},
		{"revoke invite", "code", h.RevokeInvite},
		{"remove member", "userId", h.RemoveMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
			c.SetParamNames(tt.param)
			c.SetParamValues("unknown")

			if err := tt.handler(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != http.StatusNoContent {
				t.Errorf("expected 204, got %d", rec.Code)
			}
		})
	}
}

func TestHandler_List(t *testing.T) {
	h, e := newTestHandler()
	h.svc.Create(context.Background(), CreateCodeRequest{FullName: "Ana", Email: "ana@clinic.example"})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/team", nil), rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var snap Snapshot
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if len(snap.Codes) != 1 || len(snap.Members) != 0 {
		t.Errorf("unexpected snapshot %s", rec.Body.String())
	}
}

func joinContext(e *echo.Echo, body string, id auth.Identity) (echo.Context, *httptest.ResponseRecorder) {
	req := jsonRequest(http.MethodPost, "/api/team/join", body)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, id.UserID))
	req = req.WithContext(context.WithValue(req.Context(), auth.UserNameKey, id.Name))
	req = req.WithContext(context.WithValue(req.Context(), auth.UserEmailKey, id.Email))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_Join(t *testing.T) {
	h, e := newTestHandler()
	code, _ := h.svc.Create(context.Background(), CreateCodeRequest{FullName: "Ana", Email: "ana@clinic.example"})

	c, rec := joinContext(e, `{"code":"`+strings.ToLower(code.Code)+`","acceptTerms":true}`,
		auth.Identity{UserID: "sec-1", Name: "Ana Paula", Email: "ana.paula@clinic.example"})
	if err := h.Join(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"redirectTo":"/secretary/dashboard"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Join_GuardBlocksAfterFailures(t *testing.T) {
	h, e := newTestHandler()
	id := auth.Identity{UserID: "sec-1"}

	for i := 0; i < 2; i++ {
		c, _ := joinContext(e, `{"code":"ZZZZ-ZZZZ","acceptTerms":true}`, id)
		if err := h.Join(c); !apperr.Is(err, apperr.Validation) {
			t.Fatalf("attempt %d: expected validation error, got %v", i+1, err)
		}
	}

	c, rec := joinContext(e, `{"code":"ZZZZ-ZZZZ","acceptTerms":true}`, id)
	err := h.Join(c)
	if !apperr.Is(err, apperr.TooManyAttempts) {
		t.Fatalf("expected too many attempts, got %v", err)
	}
	e.HTTPErrorHandler(err, c)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

func TestHandler_Join_ConcurrentGuesses(t *testing.T) {
	h, e := newTestHandler()
	id := auth.Identity{UserID: "sec-2"}

	const workers = 32
	var (
		mu      sync.Mutex
		blocked int
		wrong   int
		wg      sync.WaitGroup
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, _ := joinContext(e, `{"code":"ZZZZ-ZZZZ","acceptTerms":true}`, id)
			<-start
			err := h.Join(c)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case apperr.Is(err, apperr.TooManyAttempts):
				blocked++
			case apperr.Is(err, apperr.Validation):
				wrong++
			}
		}()
	}
	close(start)
	wg.Wait()

	if wrong != 2 || blocked != workers-2 {
		t.Errorf("expected 2 codes checked and %d blocked, got %d and %d", workers-2, wrong, blocked)
	}
}

func TestHandler_Routes(t *testing.T) {
	h, e := newTestHandler()
	g := e.Group("/api/team", auth.DevAuthMiddleware(auth.JWTConfig{}))
	h.RegisterRoutes(g)

	req := httptest.NewRequest(http.MethodGet, "/api/team", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/team expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/team/join-codes/abc/revoke", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("PATCH revoke expected 204, got %d", rec.Code)
	}

	req = jsonRequest(http.MethodPost, "/api/team/join", `{"code":"","acceptTerms":true}`)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "join code is required") {
		t.Errorf("POST join expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Routes_SecretaryForbidden(t *testing.T) {
	h, e := newTestHandler()
	cfg := auth.JWTConfig{SigningKey: []byte("k")}
	g := e.Group("/api/team", auth.JWTMiddleware(cfg))
	h.RegisterRoutes(g)

	tok, err := auth.IssueToken(cfg, auth.Identity{UserID: "s", Roles: []string{auth.RoleSecretary}}, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/team", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for secretary, got %d", rec.Code)
	}
}
