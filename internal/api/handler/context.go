package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medicalcenter/clinic-system/internal/api/middleware"
	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

// ctxSession returns the session stored by the session gate and fails fast
// when a handler is reached without one. It also covers routes mounted
// without the gate by mistake.
func ctxSession(c echo.Context) (*domain.Session, error) {
	s := middleware.SessionFrom(c)
	if s == nil || s.UserID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authorized")
	}
	return s, nil
}

// bindAndValidate binds the request body into req and runs the registered
// validator. Bind failures are 400, validation failures 422.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}
