// Package devserver serves the working output root during development.
//
// HTML responses get the live reload client injected; the SSE endpoint and client
// script are mounted beside the site. The server never opens a browser.
package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/livereload"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
	"git.home.luguber.info/inful/assetbuilder/internal/metrics"
)

// Server is the development HTTP server.
type Server struct {
	cfg      config.ServerConfig
	root     string
	hub      *livereload.Hub
	registry *prom.Registry

	once     sync.Once
	startErr error
	mu       sync.Mutex
	srv      *http.Server
	addr     string
}

// New creates a server for root. hub may be nil when live reload is disabled;
// registry may be nil when metrics are not exposed.
func New(cfg config.ServerConfig, root string, hub *livereload.Hub, registry *prom.Registry) *Server {
	return &Server{cfg: cfg, root: root, hub: hub, registry: registry}
}

// Handler returns the routing for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	site := noCache(http.FileServer(http.Dir(s.root)))
	if s.cfg.LiveReload && s.hub != nil {
		mux.Handle(livereload.EventsPath, s.hub)
		mux.HandleFunc(livereload.ClientPath, livereload.ServeScript)
		site = livereload.Inject(site)
	}
	if s.cfg.Metrics {
		mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}
	mux.Handle("/", site)
	return mux
}

// Start binds the listener and serves in the background. Only the first call has
// an effect; later calls return the first call's result.
func (s *Server) Start(_ context.Context) error {
	s.once.Do(func() {
		addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			s.startErr = ferrors.WrapError(err, ferrors.CategoryServer, "failed to bind dev server").
				WithContext("addr", addr).Build()
			return
		}
		// No write timeout: SSE connections are long lived.
		srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 120 * time.Second}
		s.mu.Lock()
		s.srv = srv
		s.addr = ln.Addr().String()
		s.mu.Unlock()
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Dev server error", logfields.Error(err))
			}
		}()
		slog.Info("Dev server listening", logfields.Addr("http://"+s.addr), logfields.Path(s.root))
	})
	return s.startErr
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop disconnects live reload clients and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Shutdown()
	}
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServer, "dev server shutdown failed").Build()
	}
	slog.Info("Dev server stopped")
	return nil
}

// Run starts the server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		next.ServeHTTP(w, r)
	})
}
