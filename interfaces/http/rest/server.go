package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Server
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrServerRunning is returned by Start when the server is not stopped
var ErrServerRunning = errors.New("server already started")

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// ShutdownTimeout bounds Stop; 0 waits for every in-flight request
	ShutdownTimeout time.Duration
}

// Server owns the listener and the http.Server
type Server struct {
	config  ServerConfig
	handler http.Handler
	logger  *zap.Logger

	mu       sync.Mutex
	state    State
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a stopped server
func NewServer(config ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		config:  config,
		handler: handler,
		logger:  logger,
	}
}

// Start binds the listen address and serves in the background. A bind
// failure is returned as is; there is no retry.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return ErrServerRunning
	}
	s.state = StateStarting

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.state = StateStopped
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     zap.NewStdLog(s.logger),
	}
	done := make(chan struct{})

	s.srv = srv
	s.listener = listener
	s.done = done
	s.state = StateRunning

	go func() {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped unexpectedly", zap.Error(err))
			s.mu.Lock()
			if s.srv == srv {
				s.state = StateStopped
			}
			s.mu.Unlock()
		}
	}()

	s.logger.Info(fmt.Sprintf("Server started on %s", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, empty when not running
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// State returns the current lifecycle state
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the serve loop has returned. Nil before Start.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop stops accepting connections and waits for in-flight requests. With a
// ShutdownTimeout the wait is bounded and remaining connections are closed.
// Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	srv, done := s.srv, s.done
	s.mu.Unlock()

	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	s.logger.Info("Stopping HTTP server")
	err := srv.Shutdown(ctx)
	if err != nil {
		s.logger.Warn("Graceful shutdown interrupted, closing remaining connections", zap.Error(err))
		if closeErr := srv.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}
	<-done

	s.mu.Lock()
	s.state = StateStopped
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
