package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medicalcenter/clinic-system/internal/api/metrics"
	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

// UserHandler serves the admin user administration endpoints.
type UserHandler struct {
	authService ports.AuthService
}

func NewUserHandler(authService ports.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Password    string `json:"password" validate:"required,min=8"`
	Name        string `json:"name" validate:"required,max=128"`
	Role        string `json:"role" validate:"required,role"`
	SpecialtyID string `json:"specialty_id,omitempty"`
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type resetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Create adds a staff account.
//
// @Summary      Create a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "New user"
// @Success      201   {object}  domain.User
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	actor, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.CreateUser(c.Request().Context(), actor, ports.CreateUserInput{
		Username:    req.Username,
		Password:    req.Password,
		Name:        req.Name,
		Role:        req.Role,
		SpecialtyID: req.SpecialtyID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// List returns every account. Password hashes are never serialized.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.User
// @Failure      403  {object}  map[string]string
// @Router       /api/users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.authService.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	if users == nil {
		users = []*domain.User{}
	}
	return c.JSON(http.StatusOK, users)
}

// ChangeRole reassigns a user's role and revokes the user's live sessions.
//
// @Summary      Change a user's role
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User ID"
// @Param        body  body      changeRoleRequest  true  "New role"
// @Success      200   {object}  domain.User
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/users/{id}/role [patch]
func (h *UserHandler) ChangeRole(c echo.Context) error {
	actor, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req changeRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.authService.ChangeRole(c.Request().Context(), actor, c.Param("id"), req.Role)
	if err != nil {
		return err
	}
	metrics.SessionsRevokedTotal.WithLabelValues("role_changed").Inc()
	return c.JSON(http.StatusOK, user)
}

// ResetPassword sets a new password and revokes the user's live sessions.
//
// @Summary      Reset a user's password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "User ID"
// @Param        body  body      resetPasswordRequest  true  "New password"
// @Success      200   {object}  okResponse
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/users/{id}/password [put]
func (h *UserHandler) ResetPassword(c echo.Context) error {
	actor, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ResetPassword(c.Request().Context(), actor, c.Param("id"), req.Password); err != nil {
		return err
	}
	metrics.SessionsRevokedTotal.WithLabelValues("password_reset").Inc()
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

// Specialties lists the read-only specialty catalog.
//
// @Summary      List specialties
// @Tags         catalog
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Specialty
// @Router       /api/specialties [get]
func (h *UserHandler) Specialties(c echo.Context) error {
	specs, err := h.authService.ListSpecialties(c.Request().Context())
	if err != nil {
		return err
	}
	if specs == nil {
		specs = []domain.Specialty{}
	}
	return c.JSON(http.StatusOK, specs)
}
