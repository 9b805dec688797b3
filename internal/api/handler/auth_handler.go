package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicalcenter/clinic-system/internal/api/metrics"
	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

// CookieConfig describes the session cookie set on login and refresh.
type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	authService ports.AuthService
	cookie      CookieConfig
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, cookie CookieConfig, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, cookie: cookie, log: log}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type sessionView struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Name      string   `json:"name"`
	Role      refView  `json:"role"`
	Specialty *refView `json:"specialty,omitempty"`
}

type loginResponse struct {
	OK        bool         `json:"ok"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	User      *sessionView `json:"user,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func toSessionView(s *domain.Session) *sessionView {
	v := &sessionView{
		ID:       s.UserID,
		Username: s.Username,
		Name:     s.Name,
		Role:     refView{ID: s.Role.ID, Name: string(s.Role.Name)},
	}
	if s.Specialty != nil {
		v.Specialty = &refView{ID: s.Specialty.ID, Name: s.Specialty.Name}
	}
	return v
}

// Login authenticates a user and returns a signed session token, also set as
// an HttpOnly cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  loginResponse
// @Failure      401   {object}  loginResponse
// @Failure      500   {object}  map[string]string
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, loginResponse{Error: "invalid payload"})
	}

	res, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			h.log.Warn().Str("username", req.Username).Str("ip", c.RealIP()).Msg("login failed")
			return c.JSON(http.StatusUnauthorized, loginResponse{Error: "invalid username or password"})
		}
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	h.log.Info().
		Str("username", res.Session.Username).
		Str("role", string(res.Session.Role.Name)).
		Msg("login succeeded")
	return h.respondWithSession(c, res)
}

// Logout revokes the caller's session and clears the cookie.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  loginResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}
	if err := h.authService.Logout(c.Request().Context(), session); err != nil {
		return err
	}

	metrics.SessionsRevokedTotal.WithLabelValues("logout").Inc()
	h.clearCookie(c)
	return c.JSON(http.StatusOK, loginResponse{OK: true})
}

// Me returns the caller's session snapshot.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  loginResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}
	exp := session.ExpiresAt
	return c.JSON(http.StatusOK, loginResponse{OK: true, ExpiresAt: &exp, User: toSessionView(session)})
}

// Refresh re-reads the caller from the credential store and issues a new
// token carrying the current role.
//
// @Summary      Refresh session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  loginResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	session, err := ctxSession(c)
	if err != nil {
		return err
	}

	res, err := h.authService.Refresh(c.Request().Context(), session)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			h.clearCookie(c)
		}
		return err
	}

	metrics.SessionsRevokedTotal.WithLabelValues("refresh").Inc()
	return h.respondWithSession(c, res)
}

func (h *AuthHandler) respondWithSession(c echo.Context, res *ports.LoginResult) error {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	exp := res.ExpiresAt
	return c.JSON(http.StatusOK, loginResponse{
		OK:        true,
		Token:     res.Token,
		ExpiresAt: &exp,
		User:      toSessionView(&res.Session),
	})
}

func (h *AuthHandler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
