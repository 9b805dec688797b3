package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/service"
)

const testCookie = "clinic_session"

type stubRevocations struct {
	revoked bool
	err     error
}

func (s *stubRevocations) PublishVersion(context.Context, string, int64) error      { return nil }
func (s *stubRevocations) RevokeToken(context.Context, string, time.Time) error     { return nil }
func (s *stubRevocations) IsRevoked(context.Context, *domain.Session) (bool, error) { return s.revoked, s.err }

func newSessions(tm *service.TokenManager) *Sessions {
	return &Sessions{
		Verifier:    tm,
		CookieName:  testCookie,
		LoginPath:   "/login",
		LandingPath: "/dashboard",
		Exempt:      DefaultExempt,
	}
}

func issue(t *testing.T, tm *service.TokenManager, role domain.RoleName) string {
	t.Helper()
	token, _, err := tm.Issue(domain.Session{
		UserID:   "u-" + string(role),
		Username: string(role),
		Role:     domain.Role{ID: "r-" + string(role), Name: role},
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

// serve runs the gate in front of a handler that records whether it ran.
func serve(t *testing.T, s *Sessions, req *http.Request) (*httptest.ResponseRecorder, bool, *domain.Session) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var (
		called bool
		seen   *domain.Session
	)
	h := s.Gate()(func(c echo.Context) error {
		called = true
		seen = SessionFrom(c)
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, called, seen
}

func TestGate_ProtectedAPIWithoutSession(t *testing.T) {
	s := newSessions(service.NewTokenManager("secret", time.Hour))
	rec, called, _ := serve(t, s, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

	if called {
		t.Fatalf("handler must not run without a session")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGate_ProtectedPageRedirectsToLoginOnce(t *testing.T) {
	s := newSessions(service.NewTokenManager("secret", time.Hour))

	rec, called, _ := serve(t, s, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if called {
		t.Fatalf("handler must not run without a session")
	}
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/login" {
		t.Fatalf("expected 302 to /login, got %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}

	// Following the redirect must land on the login page, not loop.
	rec, called, _ = serve(t, s, httptest.NewRequest(http.MethodGet, "/login", nil))
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("login page should render for anonymous callers, got %d", rec.Code)
	}
}

func TestGate_LoginPageRedirectsAuthenticated(t *testing.T) {
	tm := service.NewTokenManager("secret", time.Hour)
	s := newSessions(tm)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: issue(t, tm, domain.RoleCaja)})
	rec, called, _ := serve(t, s, req)

	if called {
		t.Fatalf("login page should not render for authenticated callers")
	}
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != "/dashboard" {
		t.Fatalf("expected 302 to /dashboard, got %d %q", rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
}

func TestGate_ExemptPathsSkipVerification(t *testing.T) {
	s := newSessions(service.NewTokenManager("secret", time.Hour))

	for _, path := range []string{"/api/auth/login", "/static/app.css", "/assets/logo.png", "/health", "/metrics", "/favicon.ico"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
			_, called, _ := serve(t, s, req)
			if !called {
				t.Fatalf("expected %s to pass through", path)
			}
		})
	}
}

func TestGate_ExemptMatchingIsCaseSensitive(t *testing.T) {
	s := newSessions(service.NewTokenManager("secret", time.Hour))
	rec, called, _ := serve(t, s, httptest.NewRequest(http.MethodGet, "/Static/app.css", nil))
	if called || rec.Code != http.StatusFound {
		t.Fatalf("expected /Static to be protected, got %d", rec.Code)
	}
}

func TestGate_ValidCookieAndBearer(t *testing.T) {
	tm := service.NewTokenManager("secret", time.Hour)
	s := newSessions(tm)
	token := issue(t, tm, domain.RoleRecepcion)

	cookieReq := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	cookieReq.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	_, called, seen := serve(t, s, cookieReq)
	if !called || seen == nil || seen.Role.Name != domain.RoleRecepcion {
		t.Fatalf("cookie session not accepted: %+v", seen)
	}

	bearerReq := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	bearerReq.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	_, called, seen = serve(t, s, bearerReq)
	if !called || seen == nil || seen.Username != "recepcion" {
		t.Fatalf("bearer session not accepted: %+v", seen)
	}
}

func TestGate_StaleCookieFallsBackToBearer(t *testing.T) {
	tm := service.NewTokenManager("secret", time.Hour)
	s := newSessions(tm)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "stale.cookie.value"})
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+issue(t, tm, domain.RoleCaja))
	rec, called, seen := serve(t, s, req)
	if !called || seen == nil || seen.Role.Name != domain.RoleCaja {
		t.Fatalf("expected bearer session after stale cookie, got %d", rec.Code)
	}

	both := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	both.AddCookie(&http.Cookie{Name: testCookie, Value: "stale.cookie.value"})
	both.Header.Set(echo.HeaderAuthorization, "Bearer also-garbage")
	if rec, called, _ := serve(t, s, both); called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when neither token verifies, got %d", rec.Code)
	}
}

func TestGate_ExpiredTokenTreatedAsAbsent(t *testing.T) {
	tm := service.NewTokenManager("secret", time.Millisecond)
	s := newSessions(tm)
	token := issue(t, tm, domain.RoleAdmin)
	time.Sleep(1100 * time.Millisecond)

	apiReq := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	apiReq.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	rec, called, _ := serve(t, s, apiReq)
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", rec.Code)
	}

	pageReq := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	pageReq.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	rec, called, _ = serve(t, s, pageReq)
	if called || rec.Code != http.StatusFound {
		t.Fatalf("expected redirect for expired token, got %d", rec.Code)
	}

	loginReq := httptest.NewRequest(http.MethodGet, "/login", nil)
	loginReq.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	_, called, _ = serve(t, s, loginReq)
	if !called {
		t.Fatalf("expired token must not bounce the login page")
	}
}

func TestGate_RevokedSession(t *testing.T) {
	tm := service.NewTokenManager("secret", time.Hour)
	s := newSessions(tm)
	s.Revocations = &stubRevocations{revoked: true}

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+issue(t, tm, domain.RoleAdmin))
	rec, called, _ := serve(t, s, req)
	if called || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session, got %d", rec.Code)
	}
}

func TestGate_RevocationStoreFailure(t *testing.T) {
	tm := service.NewTokenManager("secret", time.Hour)
	s := newSessions(tm)
	s.Revocations = &stubRevocations{err: domain.ErrStoreUnavailable}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+issue(t, tm, domain.RoleAdmin))
	c := e.NewContext(req, httptest.NewRecorder())

	err := s.Gate()(func(echo.Context) error {
		t.Fatalf("should not reach next")
		return nil
	})(c)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRequire(t *testing.T) {
	tm := service.NewTokenManager("secret", time.Hour)
	s := newSessions(tm)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := s.Require()(func(echo.Context) error { return nil })(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: issue(t, tm, domain.RoleCaja)})
	c = e.NewContext(req, httptest.NewRecorder())
	called := false
	if err := s.Require()(func(c echo.Context) error {
		called = SessionFrom(c) != nil
		return nil
	})(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatalf("expected session in context")
	}
}
