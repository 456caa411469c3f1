package httpapi

import (
	"log/slog"
	"net/http"

	flowAuth "github.com/MrEthical07/flowAuth"
	"github.com/MrEthical07/flowAuth/metrics/export/prometheus"
	"github.com/MrEthical07/flowAuth/middleware"
	"github.com/labstack/echo/v4"
)

// Options configures the HTTP surface.
type Options struct {
	// Logger receives request and error logs. Nil uses slog.Default.
	Logger *slog.Logger

	// CORSOrigins lists origins allowed to call the API cross-origin.
	// Empty disables CORS headers entirely.
	CORSOrigins []string

	// DisableMetrics hides GET /metrics.
	DisableMetrics bool
}

// Server wires an engine to an echo instance.
type Server struct {
	Echo   *echo.Echo
	engine *flowAuth.Engine
	logger *slog.Logger
}

// New builds the echo instance with middleware and routes registered.
func New(engine *flowAuth.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{Echo: e, engine: engine, logger: logger}
	e.HTTPErrorHandler = s.errorHandler

	// Order matters: recovery must be outermost.
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestLogger(logger))
	if len(opts.CORSOrigins) > 0 {
		e.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   opts.CORSOrigins,
			AllowCredentials: true,
		}))
	}

	api := e.Group("/api")
	api.POST("/login", s.login)
	api.POST("/register", s.register)
	api.GET("/health", s.health)
	api.GET("/session", s.session, middleware.RequireBearer(engine))

	if !opts.DisableMetrics {
		e.GET("/metrics", echo.WrapHandler(prometheus.NewPrometheusExporter(engine).Handler()))
	}

	return s
}

// ServeHTTP lets the server be mounted or driven by httptest directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Echo.ServeHTTP(w, r)
}
