package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/gigmarket/identity/docs"
	"github.com/gigmarket/identity/internal/api/handler"
	"github.com/gigmarket/identity/internal/api/middleware"
	"github.com/gigmarket/identity/internal/core/domain"
	"github.com/gigmarket/identity/internal/core/ports"
	"github.com/gigmarket/identity/pkg/logger"
)

const defaultRequestTimeout = 10 * time.Second

// Dependencies are the services the router exposes over HTTP.
type Dependencies struct {
	Auth       ports.AuthService
	Sessions   ports.SessionVerifier
	Identities ports.SessionIdentityLoader
	Dashboards ports.DashboardService
	Readiness  map[string]handler.ReadinessCheck

	Log            zerolog.Logger
	RequestTimeout time.Duration

	// Registerer and Gatherer back the HTTP metrics. They default to the
	// process-wide Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = defaultRequestTimeout
	}
	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string { return ksuid.New().String() },
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(domain.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "identity",
		Subsystem:  "http",
		Registerer: deps.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(echomiddleware.ContextTimeoutWithConfig(echomiddleware.ContextTimeoutConfig{
		Timeout: deps.RequestTimeout,
	}))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(deps.Auth)
	dashboardHandler := handler.NewDashboardHandler(deps.Dashboards)
	requireAuth := middleware.Auth(deps.Sessions, deps.Identities)

	// --- Public auth routes ---
	auth := e.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/client/signup", authHandler.ClientSignup)
	auth.POST("/login", authHandler.Login)
	auth.GET("/wallet/challenge", authHandler.WalletChallenge)
	auth.POST("/wallet", authHandler.WalletLogin)
	auth.POST("/wallet/signup", authHandler.WalletSignup)

	// --- Authenticated user routes ---
	auth.GET("/me", authHandler.Me, requireAuth)
	users := auth.Group("/users", requireAuth)
	users.PATCH("/profile", authHandler.UpdateProfile)
	users.POST("/wallet", authHandler.LinkWallet)
	users.DELETE("/wallet", authHandler.UnlinkWallet)

	// --- Dashboards ---
	dashboard := e.Group("/dashboard", requireAuth)
	dashboard.GET("", dashboardHandler.Own)
	dashboard.GET("/client", dashboardHandler.Client, middleware.RBAC(domain.RoleClient))
	dashboard.GET("/freelancer", dashboardHandler.Freelancer, middleware.RBAC(domain.RoleFreelancer))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Readiness)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: deps.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
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
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
