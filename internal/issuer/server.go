package issuer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"embedkeeper/internal/config"
	"embedkeeper/pkg/logging"
)

const (
	// DefaultReadHeaderTimeout is the default timeout for reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default timeout for writing responses.
	DefaultWriteTimeout = 60 * time.Second
	// DefaultIdleTimeout is the default idle timeout for keepalive connections.
	DefaultIdleTimeout = 120 * time.Second
)

// Server is the credential-issuing backend.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	errCh      chan error
}

// NewServer wires the AAD token source, the Power BI client and the HTTP
// API from cfg.
func NewServer(ctx context.Context, cfg config.ServerConfig) *Server {
	ts := NewTokenSource(ctx, cfg)
	client := NewPowerBIClient(cfg, oauth2.NewClient(ctx, ts))
	return NewServerWithGenerator(cfg, client)
}

// NewServerWithGenerator serves tokens from generator.
func NewServerWithGenerator(cfg config.ServerConfig, generator TokenGenerator) *Server {
	return &Server{
		cfg:     cfg,
		handler: NewHandler(generator, cfg.Settings, cfg.AllowedOrigins),
	}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		return errors.New("server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.errCh = make(chan error, 1)
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	go func(srv *http.Server, errCh chan<- error) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}(s.httpServer, s.errCh)

	logging.Info("Issuer", "Serving embed tokens on http://%s", ln.Addr())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Errors reports a serve failure; it is closed when serving stops.
func (s *Server) Errors() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	logging.Info("Issuer", "Shutting down")
	return srv.Shutdown(ctx)
}
