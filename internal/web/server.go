package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dazzlo/bulkmail/pkg/dispatch"
	"github.com/dazzlo/bulkmail/pkg/dnsverify"
	"github.com/dazzlo/bulkmail/pkg/health"
	"github.com/dazzlo/bulkmail/pkg/logger"
	"github.com/dazzlo/bulkmail/pkg/mailer"
)

// Server defaults.
const (
	DefaultAddr            = ":8080"
	DefaultMaxUploadSize   = 128 << 20
	DefaultShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	maxHeaderBytes    = 1 << 20
)

// Server is the web front end: upload form, JSON API and health checks.
type Server struct {
	dispatcher *dispatch.Dispatcher
	transport  mailer.Transport
	checks     health.Checks
	logger     *slog.Logger
	validate   *validator.Validate
	previews   singleflight.Group
	resolver   dnsverify.Resolver
	spf        []string

	addr            string
	maxUploadSize   int64
	shutdownTimeout time.Duration
	corsOrigins     []string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChecks sets the readiness checks.
func WithChecks(checks health.Checks) Option {
	return func(s *Server) { s.checks = checks }
}

// WithAddr sets the listen address. Default: ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithMaxUploadSize bounds the size of a batch submission.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadSize = n
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithCORSOrigins sets the origins allowed to call the API. Default: "*".
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithSPFCheck makes credential checks report when the sender domain's
// SPF record names none of includes.
func WithSPFCheck(r dnsverify.Resolver, includes ...string) Option {
	return func(s *Server) {
		s.resolver = r
		s.spf = includes
	}
}

// New creates a server. transport is used only to check credentials;
// batches go through d.
func New(d *dispatch.Dispatcher, transport mailer.Transport, opts ...Option) *Server {
	s := &Server{
		dispatcher:      d,
		transport:       transport,
		checks:          health.Checks{},
		logger:          logger.NewNope(),
		validate:        newValidator(),
		addr:            DefaultAddr,
		maxUploadSize:   DefaultMaxUploadSize,
		shutdownTimeout: DefaultShutdownTimeout,
		corsOrigins:     []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(s.handle(func(w http.ResponseWriter, r *http.Request) error {
		return errNotFound("Page not found.")
	}))

	r.Get("/", s.handle(s.index))
	r.Post("/send", s.handle(s.send))
	r.Get("/preview/{kind}", s.handle(s.preview))
	r.Post("/validate_credentials", s.handle(s.validateCredentials))

	r.Route("/api", func(r chi.Router) {
		r.Get("/templates", s.handle(s.listTemplates))
		r.Get("/templates/{kind}/sample.csv", s.handle(s.sampleCSV))
		r.Post("/batches", s.handle(s.createBatch))
	})

	r.Get("/health/live", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(s.checks, health.WithLogger(s.logger)))

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully. Batches
// in flight are given the shutdown timeout to finish.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("shutdown completed")
	return nil
}
