package httpd

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-openapi/swag"
	"github.com/oneconcern/irmin/pkg/config"
	"github.com/oneconcern/irmin/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// DefaultShutdownTimeout is the grace period given to in-flight requests when the server stops
const DefaultShutdownTimeout = 15 * time.Second

// Server exposes the branches and objects of a repository to HTTP remotes
type Server struct {
	repo            *core.Repo
	cfg             config.Server
	l               *zap.Logger
	registry        *prometheus.Registry
	shutdownTimeout time.Duration
	maxObjectBytes  int64
	handler         http.Handler
	m               *serverMetrics
}

// Option for the server
type Option func(*Server)

// WithConfig sets the server configuration. It defaults to config.DefaultServer().
func WithConfig(cfg config.Server) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger of the server. It defaults to the logger of the repository.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.l = l
		}
	}
}

// WithRegistry sets the prometheus registry exposed on /metrics
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithShutdownTimeout sets the grace period given to in-flight requests on shutdown
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// New server for a repository
func New(repo *core.Repo, opts ...Option) (*Server, error) {
	s := &Server{
		repo:            repo,
		cfg:             config.DefaultServer(),
		l:               repo.Logger(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, apply := range opts {
		apply(s)
	}

	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	s.maxObjectBytes, _ = s.cfg.MaxObjectBytes()

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	m, err := newServerMetrics(s.registry)
	if err != nil {
		return nil, err
	}
	s.m = m
	s.handler = s.routes()
	return s, nil
}

// Handler serving the repository
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe on the configured address, until the context is done.
//
// On cancellation, in-flight requests are given some grace period to complete.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{KeepAlive: s.cfg.KeepAlive}
	if s.cfg.KeepAlive == 0 {
		lc.KeepAlive = -1
	}
	listener, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve requests accepted on a listener, until the context is done.
//
// Requests are not cancelled with the context: they run to completion, within the shutdown grace period.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	host, port, err := swag.SplitHostPort(listener.Addr().String())
	if err != nil {
		_ = listener.Close()
		return err
	}
	if s.cfg.ListenLimit > 0 {
		listener = netutil.LimitListener(listener, s.cfg.ListenLimit)
	}
	maxHeaderBytes, _ := s.cfg.MaxHeaderBytes()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	srv.SetKeepAlivesEnabled(s.cfg.KeepAlive > 0)

	served := make(chan error, 1)
	go func() {
		s.l.Info("serving repository",
			zap.String("host", host), zap.Int("port", port),
			zap.Int("listenLimit", s.cfg.ListenLimit),
			zap.Stringer("objects", s.repo.Objects()),
		)
		served <- srv.Serve(listener)
	}()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	s.l.Info("shutting down", zap.String("host", host), zap.Int("port", port))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.l.Warn("server shutdown", zap.Error(err))
		return err
	}
	if err := <-served; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
