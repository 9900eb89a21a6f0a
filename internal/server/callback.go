package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/medx/internal/shared"
)

const (
	DefaultLoginTimeout = 2 * time.Minute
	shutdownGrace       = 5 * time.Second
)

// CallbackServer is a temporary HTTP server that lives for one login.
type CallbackServer struct {
	httpServer *http.Server
	listener   net.Listener
	errs       chan error
	logger     *log.Logger
}

// NewCallbackServer prepares a server for addr. Nothing listens until [CallbackServer.Start].
func NewCallbackServer(addr string, handler http.Handler, logger *log.Logger) *CallbackServer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &CallbackServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		errs:   make(chan error, 1),
		logger: logger,
	}
}

// Start binds the listener and serves in the background.
//
// Binding happens before Start returns so the authorization page can be opened right away.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	go func() {
		s.logger.Infof("starting callback server at %v", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *CallbackServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Errors reports a serve failure.
func (s *CallbackServer) Errors() <-chan error {
	return s.errs
}

// Shutdown stops the server, waiting up to five seconds for open requests.
func (s *CallbackServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
	}
}

// AwaitRedirect blocks until h captures a redirect, the server fails, ctx ends, or timeout elapses.
func AwaitRedirect(ctx context.Context, h *ImplicitHandler, srv *CallbackServer, timeout time.Duration) (*url.URL, error) {
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result ImplicitResult
	select {
	case result = <-h.Result():
	case err := <-srv.Errors():
		return nil, fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, timeout)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Location == nil {
		return nil, fmt.Errorf("%w: no redirect received", shared.ErrAuthFailed)
	}
	return result.Location, nil
}
