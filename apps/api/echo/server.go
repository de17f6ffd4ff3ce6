package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		// Shutdown receives a SIGTERM when a handler hits a shutdown error.
		Shutdown chan<- os.Signal

		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		DB            core.Pinger
		UserSvc       *user.Service
		ClassSvc      *class.Service
		AssignmentSvc *assignment.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts    *Options
		app     *echo.Echo
		tokens  *tokenService
		metrics *metrics
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:    opts,
		app:     echo.New(),
		tokens:  newTokenService(opts.Conf),
		metrics: newMetrics(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.metrics.middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)
	s.app.GET("/metrics", echo.WrapHandler(s.metrics.handler()))

	v1 := s.app.Group("/v1")
	auth := []echo.MiddlewareFunc{
		middleware.JWTWithConfig(s.tokens.jwtConfig()),
		activeUserMiddleware(s.opts.UserSvc),
	}
	limit := rateLimitMiddleware(conf.Server.RateLimit, conf.Server.RateBurst)

	registerUserAPI(v1, auth, limit, s)
	registerClassAPI(v1, auth, limit, s)
	registerAssignmentAPI(v1, auth, s)
}

func (s *server) Start() error {
	err := s.app.Start(s.opts.Address)
	if err == http.ErrServerClosed {
		return nil
	}
	return errors.Wrap(err, "starting server")
}

// Stop shuts the server down gracefully, forcing it to close when ctx expires first.
func (s *server) Stop(ctx context.Context) error {
	if err := s.app.Shutdown(ctx); err != nil {
		_ = s.app.Close()
		return errors.Wrap(err, "stopping server")
	}
	return nil
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	if s.opts.Shutdown == nil {
		return
	}
	select {
	case s.opts.Shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}

func (s *server) health(ctx echo.Context) error {
	status := echo.Map{"status": "ok", "build": s.opts.Conf.Build}
	if s.opts.DB != nil {
		if err := s.opts.DB.PingContext(ctx.Request().Context()); err != nil {
			s.opts.Logger.Warn("health check: database unreachable", err)
			status["status"] = "db not ready"
			return ctx.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return ctx.JSON(http.StatusOK, status)
}
