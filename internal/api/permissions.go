package api

import (
	"net/http"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
)

// DefaultPermissions returns the route permission table the server starts
// with. Any /api route not listed here is denied to every role.
func DefaultPermissions() *domain.PermissionTable {
	t := domain.NewPermissionTable()
	all := domain.AllRoles()

	t.Set(http.MethodGet, "/api/tags", all...)
	t.Set(http.MethodGet, "/api/rooms", all...)
	t.Set(http.MethodGet, "/api/specialties", all...)

	t.Set(http.MethodPost, "/api/tags", domain.RoleAdmin)

	t.Set(http.MethodPost, "/api/rooms", domain.RoleAdmin, domain.RoleRecepcion)
	t.Set(http.MethodPut, "/api/rooms/:id", domain.RoleAdmin, domain.RoleRecepcion)

	t.Set(http.MethodGet, "/api/radiology/seal", domain.RoleAdmin, domain.RoleRadiologo)

	t.Set(http.MethodGet, "/api/users", domain.RoleAdmin)
	t.Set(http.MethodPost, "/api/users", domain.RoleAdmin)
	t.Set(http.MethodPatch, "/api/users/:id/role", domain.RoleAdmin)
	t.Set(http.MethodPut, "/api/users/:id/password", domain.RoleAdmin)
	t.Set(http.MethodGet, "/api/audit", domain.RoleAdmin)
	t.Set(http.MethodGet, "/api/permissions", domain.RoleAdmin)

	return t
}
