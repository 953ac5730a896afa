package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/mapato/core"
	"github.com/trezcool/mapato/core/account"
	"github.com/trezcool/mapato/core/audit"
	"github.com/trezcool/mapato/core/course"
	"github.com/trezcool/mapato/core/notification"
	"github.com/trezcool/mapato/core/split"
	"github.com/trezcool/mapato/core/submission"
	"github.com/trezcool/mapato/core/user"
)

type (
	ServerDeps struct {
		Logger         core.Logger
		DisableReqLogs bool

		UserSvc       *user.Service
		CourseSvc     *course.Service
		SubmissionSvc *submission.Service
		SplitSvc      *split.Service
		Calculator    *split.Calculator
		AccountSvc    *account.Service
		NotifSvc      *notification.Service
		AuditSvc      *audit.Service
	}

	Server interface {
		http.Handler
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.deps.UserSvc)
	registerCourseAPI(v1, jwt, s.deps.CourseSvc, s.deps.UserSvc)
	registerSubmissionAPI(v1, jwt, s.deps.SubmissionSvc, s.deps.UserSvc)
	registerSplitAPI(v1, jwt, s.deps.SplitSvc, s.deps.Calculator, s.deps.UserSvc)
	registerIncomeAPI(v1, jwt, s.deps.SplitSvc, s.deps.UserSvc)
	registerAccountAPI(v1, jwt, s.deps.AccountSvc, s.deps.UserSvc)
	registerDashboardAPI(v1, jwt, s.deps.AccountSvc, s.deps.NotifSvc, s.deps.UserSvc)
	registerAuditAPI(v1, jwt, s.deps.AuditSvc, s.deps.UserSvc)
}

func (s *server) Start() {
	if err := s.app.Start(core.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

func (s *server) Errors() <-chan error {
	return s.errs
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
