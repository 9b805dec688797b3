package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicalcenter/clinic-system/internal/api/metrics"
	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

// Guard enforces the per-route permission table. It must run after the
// session gate. Routes absent from the table are denied.
func Guard(table *domain.PermissionTable, audit ports.AuditSink, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := SessionFrom(c)
			if session == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authorized")
			}

			route := domain.Route{Method: c.Request().Method, Path: c.Path()}
			allowed, _ := table.Allowed(route)

			decision := domain.Authorize(allowed, session)
			metrics.AuthzDecisionsTotal.WithLabelValues(route.String(), decision.String()).Inc()

			if decision == domain.Permitted {
				return next(c)
			}

			log.Warn().
				Str("username", session.Username).
				Str("role", string(session.Role.Name)).
				Str("route", route.String()).
				Msg("access forbidden")
			if audit != nil {
				audit.Enqueue(domain.AuditEvent{
					Type:     domain.AuditAccessForbidden,
					Username: session.Username,
					UserID:   session.UserID,
					Role:     session.Role.Name,
					Detail:   route.String(),
				})
			}
			return &domain.ForbiddenError{Route: route, Role: session.Role.Name, Allowed: allowed}
		}
	}
}
