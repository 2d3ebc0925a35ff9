package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/pulseurl/pulseurl/internal/app/service"
	inthttp "github.com/pulseurl/pulseurl/internal/http/handler"
	"github.com/pulseurl/pulseurl/internal/http/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies bundles what the HTTP server needs, injected from the
// composition root.
type Dependencies struct {
	Logger      *zap.Logger
	Redis       *redis.Client
	Resolver    *service.Resolver
	LinkService service.LinkService
	Stats       service.StatsService
	Secret      []byte
	BaseURL     string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.CORS())
	if s.deps.Redis != nil {
		s.app.Use(middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger))
	}
}

func (s *Server) registerRoutes() {
	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.LinkService,
		Stats:       s.deps.Stats,
		Resolver:    s.deps.Resolver,
		BaseURL:     s.deps.BaseURL,
	})
	apiHandler.Register(s.app)

	// Registered last: /:code is a catch-all.
	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:   s.deps.Logger,
		Resolver: s.deps.Resolver,
		Secret:   s.deps.Secret,
	})
	redirectHandler.Register(s.app)
}
