package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

const sessionKey = "session"

// DefaultExempt lists the path prefixes that bypass the session gate.
var DefaultExempt = []string{
	"/login",
	"/api/auth/",
	"/static/",
	"/assets/",
	"/public/",
	"/favicon.ico",
	"/health",
	"/metrics",
	"/swagger/",
}

// Sessions decodes session tokens from cookies or bearer headers and gates
// requests on them.
type Sessions struct {
	Verifier    ports.SessionVerifier
	Revocations ports.SessionRevoker // optional
	CookieName  string
	LoginPath   string
	LandingPath string
	Exempt      []string
}

// SessionFrom returns the session the gate stored on c, if any.
func SessionFrom(c echo.Context) *domain.Session {
	s, _ := c.Get(sessionKey).(*domain.Session)
	return s
}

// SetSession stores s on c for downstream handlers.
func SetSession(c echo.Context, s *domain.Session) {
	c.Set(sessionKey, s)
}

// Gate is the path-level gate applied to every request.
//
//   - the login page redirects an authenticated caller to the landing page;
//   - exempt prefixes pass without token verification;
//   - anything else needs a valid session: API paths answer 401, pages
//     redirect to the login page.
func (s *Sessions) Gate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if path == s.LoginPath {
				session, err := s.resolve(c)
				if err == nil && session != nil {
					return c.Redirect(http.StatusFound, s.LandingPath)
				}
				if err != nil && !errors.Is(err, domain.ErrUnauthenticated) {
					return err
				}
				return next(c)
			}

			if s.exempt(path) {
				return next(c)
			}

			session, err := s.resolve(c)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthenticated) {
					return err
				}
				if isAPIPath(path) {
					return echo.NewHTTPError(http.StatusUnauthorized, "not authorized")
				}
				return c.Redirect(http.StatusFound, s.LoginPath)
			}

			SetSession(c, session)
			return next(c)
		}
	}
}

// Require is the route-level form used inside exempt namespaces for
// endpoints that still need a session. Failures always answer 401.
func (s *Sessions) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if SessionFrom(c) != nil {
				return next(c)
			}
			session, err := s.resolve(c)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					return echo.NewHTTPError(http.StatusUnauthorized, "not authorized")
				}
				return err
			}
			SetSession(c, session)
			return next(c)
		}
	}
}

// resolve verifies the session cookie, then the bearer header, and returns
// the first session that is valid and not revoked. Absent, invalid, expired
// and revoked tokens all unwrap to domain.ErrUnauthenticated; revocation
// store failures are returned as is.
func (s *Sessions) resolve(c echo.Context) (*domain.Session, error) {
	err := domain.ErrUnauthenticated
	for _, raw := range s.tokens(c) {
		var session *domain.Session
		session, err = s.verify(c, raw)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, domain.ErrUnauthenticated) {
			return nil, err
		}
	}
	return nil, err
}

func (s *Sessions) verify(c echo.Context, raw string) (*domain.Session, error) {
	session, err := s.Verifier.Verify(raw)
	if err != nil {
		return nil, err
	}

	if s.Revocations != nil {
		revoked, err := s.Revocations.IsRevoked(c.Request().Context(), session)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, domain.ErrUnauthenticated
		}
	}
	return session, nil
}

// tokens lists the candidate tokens in precedence order: cookie, then bearer.
func (s *Sessions) tokens(c echo.Context) []string {
	var out []string
	if s.CookieName != "" {
		if ck, err := c.Cookie(s.CookieName); err == nil && ck.Value != "" {
			out = append(out, ck.Value)
		}
	}

	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		if raw := strings.TrimSpace(parts[1]); raw != "" && (len(out) == 0 || out[0] != raw) {
			out = append(out, raw)
		}
	}
	return out
}

func (s *Sessions) exempt(path string) bool {
	for _, prefix := range s.Exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}
