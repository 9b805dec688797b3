package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

func TestHTTPErrorHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"echo error", echo.NewHTTPError(http.StatusUnauthorized, "not authorized"), http.StatusUnauthorized, "not authorized"},
		{"bad credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid username or password"},
		{"unauthenticated", fmt.Errorf("%w: token expired", domain.ErrUnauthenticated), http.StatusUnauthorized, domain.ErrUnauthenticated.Error()},
		{"forbidden", &domain.ForbiddenError{Allowed: domain.NewRoleSet(domain.RoleAdmin)}, http.StatusForbidden, "access forbidden: admin only"},
		{"user missing", domain.ErrUserNotFound, http.StatusNotFound, domain.ErrUserNotFound.Error()},
		{"duplicate tag", domain.ErrTagExists, http.StatusConflict, domain.ErrTagExists.Error()},
		{"unknown role", domain.ErrRoleNotFound, http.StatusUnprocessableEntity, domain.ErrRoleNotFound.Error()},
		{"bad input", domain.ErrInvalidInput, http.StatusBadRequest, domain.ErrInvalidInput.Error()},
		{"store down hides driver detail", fmt.Errorf("%w: find user: %w", domain.ErrStoreUnavailable, errors.New("dial tcp: refused")), http.StatusInternalServerError, "internal server error"},
		{"store error wrapping not found", fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, domain.ErrUserNotFound), http.StatusInternalServerError, "internal server error"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	h := NewHTTPErrorHandler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/x", nil), rec)

			h(tt.err, c)

			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.Error != tt.message {
				t.Fatalf("expected %q, got %q", tt.message, body.Error)
			}
		})
	}
}

func TestHTTPErrorHandler_HeadHasNoBody(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodHead, "/api/x", nil), rec)

	NewHTTPErrorHandler(zerolog.Nop())(domain.ErrUserNotFound, c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
}

func TestDefaultPermissions_UnlistedRouteDenied(t *testing.T) {
	table := DefaultPermissions()

	if _, ok := table.Allowed(domain.Route{Method: http.MethodDelete, Path: "/api/tags"}); ok {
		t.Fatal("unlisted route must not be present")
	}
	allowed, ok := table.Allowed(domain.Route{Method: http.MethodGet, Path: "/api/radiology/seal"})
	if !ok || !allowed.Has(domain.RoleRadiologo) || allowed.Has(domain.RoleCaja) {
		t.Fatalf("unexpected seal roles: %v", allowed)
	}
	for _, r := range table.Routes() {
		if r.Path == "/api/users" {
			a, _ := table.Allowed(r)
			if a.Len() != 1 || !a.Has(domain.RoleAdmin) {
				t.Fatalf("%s must be admin only, got %v", r, a)
			}
		}
	}
}
