package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/feature"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
)

// FeatureSubscriber retargets the push channel at a tenant's invalidation topic.
type FeatureSubscriber interface {
	Subscribe(tenant string)
}

type ServerDeps struct {
	Conf       *core.Config
	Logger     core.Logger
	UserSvc    *user.Service
	TenantSvc  *tenant.Service
	Features   *feature.Registry
	Sync       FeatureSubscriber // nil when push sync is disabled
	Hosts      tenant.Hosts
	Validate   *validator.Validate
	Translator ut.Translator
}

type Server struct {
	deps  ServerDeps
	app   *echo.Echo
	guard *Guard

	serverErrors chan error
	shutdown     chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:         deps,
		app:          echo.New(),
		guard:        NewGuard(deps.Hosts, deps.UserSvc, deps.Logger),
		serverErrors: make(chan error, 1),
		shutdown:     make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerAuthAPI(v1, jwt, s.deps)
	registerFeatureAPI(v1, jwt, s.deps)

	s.registerPortalRoutes()
}

// registerPortalRoutes wires the portal pages behind the navigation guard.
// Login pages are reachable anonymously; everything else requires a session.
func (s *Server) registerPortalRoutes() {
	open := s.guardMiddleware(false)
	authed := s.guardMiddleware(true)

	s.app.GET(StudentLoginPath, portalPage("student login"), open)
	s.app.GET(TeacherLoginPath, portalPage("teacher login"), open)

	s.app.GET(studentPathPrefix+"/*", portalPage("student portal"), authed)
	s.app.GET(teacherPathPrefix+"/*", portalPage("teacher portal"), authed)
	s.app.GET("/assistant/*", portalPage("assistant portal"), authed)
}

func (s *Server) Start() {
	addr := s.deps.Conf.Server.Addr
	s.deps.Logger.Info("API listening on " + addr)
	if err := s.app.Start(addr); err != nil && err != http.ErrServerClosed {
		s.serverErrors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.serverErrors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown requests a graceful shutdown, as if a SIGTERM was received.
func (s *Server) SignalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Darasa!")
}

func portalPage(name string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, name)
	}
}
