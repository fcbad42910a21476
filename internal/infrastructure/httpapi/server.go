// Package httpapi exposes stored articles, account endpoints and the manual
// ingestion trigger over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"NewsSum/internal/config"
	"NewsSum/internal/domain"
	"NewsSum/internal/ports"
	"NewsSum/internal/usecase"
	"NewsSum/internal/validation"
)

// Authenticator is the account use case surface the handlers need.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (domain.User, domain.AccessToken, error)
	Login(ctx context.Context, email, password string) (domain.AccessToken, error)
	SignInWithApple(ctx context.Context, req usecase.AppleSignIn) (domain.User, domain.AccessToken, error)
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

// JobTrigger starts ingestion jobs on demand.
type JobTrigger interface {
	Trigger(name string) error
	Jobs() []domain.JobSpec
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the server. Health and Metrics are optional.
type Deps struct {
	Articles  ports.ArticleReader
	Auth      Authenticator
	Jobs      JobTrigger
	Health    Pinger
	Metrics   http.Handler
	Validator *validation.Validator
	Logger    *slog.Logger
}

// Server is the API listener.
type Server struct {
	echo     *echo.Echo
	addr     string
	articles ports.ArticleReader
	auth     Authenticator
	jobs     JobTrigger
	health   Pinger
	validate *validation.Validator
	logger   *slog.Logger
}

// NewServer builds the router.
func NewServer(cfg config.HTTPConfig, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	validate := deps.Validator
	if validate == nil {
		validate = validation.New()
	}

	s := &Server{
		echo:     echo.New(),
		addr:     cfg.Addr,
		articles: deps.Articles,
		auth:     deps.Auth,
		jobs:     deps.Jobs,
		health:   deps.Health,
		validate: validate,
		logger:   log.With("component", "http"),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/healthz" || path == "/metrics"
		},
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.InfoContext(c.Request().Context(), "request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"error", v.Error)
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())

	s.routes(deps.Metrics)
	return s
}

func (s *Server) routes(metrics http.Handler) {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/healthz", s.handleHealth)
	if metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics))
	}

	authGroup := s.echo.Group("/auth")
	authGroup.POST("/signup", s.handleSignUp)
	authGroup.POST("/token", s.handleToken)
	authGroup.POST("/apple", s.handleApple)
	authGroup.GET("/me", s.handleMe, s.requireUser)

	api := s.echo.Group("/api", s.requireUser)
	api.GET("/summary/latest", s.handleLatestSummaries)
	api.POST("/summary/generate", s.handleGenerate)
	api.GET("/headlines", s.handleLatestHeadlines)
	api.GET("/headlines/:key", s.handleHeadline)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "This is newsum api"})
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.health == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.health.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
