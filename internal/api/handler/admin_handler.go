package handler

import (
	"net/http"
	"os"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
)

// RadiologyHandler serves the radiology seal image.
type RadiologyHandler struct {
	sealPath string
}

func NewRadiologyHandler(sealPath string) *RadiologyHandler {
	return &RadiologyHandler{sealPath: sealPath}
}

// Seal streams the configured seal PNG.
//
// @Summary      Radiology seal
// @Tags         radiology
// @Produce      png
// @Security     BearerAuth
// @Success      200  {file}    binary
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/radiology/seal [get]
func (h *RadiologyHandler) Seal(c echo.Context) error {
	info, err := os.Stat(h.sealPath)
	if err != nil || info.IsDir() {
		return echo.NewHTTPError(http.StatusNotFound, "seal not found")
	}

	f, err := os.Open(h.sealPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "seal not found")
	}
	defer f.Close()

	c.Response().Header().Set(echo.HeaderCacheControl, "private, no-store")
	return c.Stream(http.StatusOK, "image/png", f)
}

// AuditHandler exposes the authentication audit trail.
type AuditHandler struct {
	audit ports.AuditService
}

func NewAuditHandler(audit ports.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Latest returns the most recent audit events, newest first.
//
// @Summary      Latest audit events
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Maximum number of events (default 50, max 200)"
// @Success      200    {array}   domain.AuditEvent
// @Failure      400    {object}  map[string]string
// @Failure      403    {object}  map[string]string
// @Router       /api/audit [get]
func (h *AuditHandler) Latest(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	events, err := h.audit.Latest(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

// PermissionHandler exposes the live route permission table.
type PermissionHandler struct {
	table *domain.PermissionTable
}

func NewPermissionHandler(table *domain.PermissionTable) *PermissionHandler {
	return &PermissionHandler{table: table}
}

type permissionView struct {
	Method string   `json:"method"`
	Path   string   `json:"path"`
	Roles  []string `json:"roles"`
}

// List returns every configured route with its allowed roles.
//
// @Summary      Route permissions
// @Tags         audit
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   permissionView
// @Failure      403  {object}  map[string]string
// @Router       /api/permissions [get]
func (h *PermissionHandler) List(c echo.Context) error {
	routes := h.table.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	out := make([]permissionView, 0, len(routes))
	for _, r := range routes {
		allowed, _ := h.table.Allowed(r)
		out = append(out, permissionView{Method: r.Method, Path: r.Path, Roles: allowed.Names()})
	}
	return c.JSON(http.StatusOK, out)
}
