package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/medicalcenter/clinic-system/docs"
	"github.com/medicalcenter/clinic-system/internal/api/handler"
	"github.com/medicalcenter/clinic-system/internal/api/middleware"
	"github.com/medicalcenter/clinic-system/internal/core/domain"
	"github.com/medicalcenter/clinic-system/internal/core/ports"
	"github.com/medicalcenter/clinic-system/internal/infrastructure/http/handlers"
)

// Deps carries everything the router wires into handlers and middleware.
type Deps struct {
	Log zerolog.Logger

	Auth        ports.AuthService
	Verifier    ports.SessionVerifier
	Revocations ports.SessionRevoker // optional
	Tags        ports.TagService
	Rooms       ports.RoomService
	Audit       ports.AuditService
	AuditSink   ports.AuditSink // optional

	// Permissions defaults to DefaultPermissions().
	Permissions *domain.PermissionTable
	// Checks are the readiness probes served at /health/ready.
	Checks map[string]handlers.Check

	Cookie      handler.CookieConfig
	LoginPath   string
	LandingPath string
	SealPath    string

	// MetricsRegisterer and MetricsGatherer default to the global
	// Prometheus registry.
	MetricsRegisterer prometheus.Registerer
	MetricsGatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	if d.Permissions == nil {
		d.Permissions = DefaultPermissions()
	}
	if d.MetricsRegisterer == nil {
		d.MetricsRegisterer = prometheus.DefaultRegisterer
	}
	if d.MetricsGatherer == nil {
		d.MetricsGatherer = prometheus.DefaultGatherer
	}

	sessions := &middleware.Sessions{
		Verifier:    d.Verifier,
		Revocations: d.Revocations,
		CookieName:  d.Cookie.Name,
		LoginPath:   d.LoginPath,
		LandingPath: d.LandingPath,
		Exempt:      exemptPrefixes(d.LoginPath),
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echomiddleware.BodyLimit("1M"))
	e.Use(echomiddleware.Secure())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "clinic",
		Subsystem:  "http",
		Registerer: d.MetricsRegisterer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(sessions.Gate())

	// --- Operational endpoints (exempt from the session gate) ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.MetricsGatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(d.Checks)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthDepsHandler.Readiness)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Cookie, d.Log)
	auth := e.Group("/api/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout, sessions.Require())
	auth.GET("/me", authHandler.Me, sessions.Require())
	auth.POST("/refresh", authHandler.Refresh, sessions.Require())

	// --- Guarded API ---
	userHandler := handler.NewUserHandler(d.Auth)
	clinicHandler := handler.NewClinicHandler(d.Tags, d.Rooms)
	radiologyHandler := handler.NewRadiologyHandler(d.SealPath)
	auditHandler := handler.NewAuditHandler(d.Audit)
	permissionHandler := handler.NewPermissionHandler(d.Permissions)

	api := e.Group("/api", middleware.Guard(d.Permissions, d.AuditSink, d.Log))
	api.GET("/tags", clinicHandler.ListTags)
	api.POST("/tags", clinicHandler.CreateTag)
	api.GET("/rooms", clinicHandler.ListRooms)
	api.POST("/rooms", clinicHandler.CreateRoom)
	api.PUT("/rooms/:id", clinicHandler.UpdateRoom)
	api.GET("/specialties", userHandler.Specialties)
	api.GET("/radiology/seal", radiologyHandler.Seal)
	api.GET("/users", userHandler.List)
	api.POST("/users", userHandler.Create)
	api.PATCH("/users/:id/role", userHandler.ChangeRole)
	api.PUT("/users/:id/password", userHandler.ResetPassword)
	api.GET("/audit", auditHandler.Latest)
	api.GET("/permissions", permissionHandler.List)

	// --- Pages ---
	pages := handler.NewPageHandler(d.LoginPath, d.LandingPath)
	e.GET(d.LoginPath, pages.Login)
	e.GET(d.LandingPath, pages.Dashboard)
	e.GET("/", pages.Root)

	return e
}

// exemptPrefixes returns the default exemption list with loginPath swapped
// in for the default login page.
func exemptPrefixes(loginPath string) []string {
	out := make([]string, 0, len(middleware.DefaultExempt))
	for _, p := range middleware.DefaultExempt {
		if p == "/login" {
			p = loginPath
		}
		out = append(out, p)
	}
	return out
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			switch {
			case v.Status >= 500:
				ev = log.Error().Err(v.Error)
			case v.Status >= 400:
				ev = log.Warn()
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
