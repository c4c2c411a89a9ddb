package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/presbrey/ircd/irc/config"
)

// Server represents the IRC server
type Server struct {
	config     *config.Config
	dispatcher *Dispatcher
	log        *zap.SugaredLogger
	startTime  time.Time

	mu       sync.Mutex
	listener net.Listener
	conns    sync.WaitGroup
	quit     chan struct{}
}

// NewServer creates a new IRC server. metrics and log may be nil.
func NewServer(cfg *config.Config, metrics *Metrics, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	startTime := time.Now()
	settings := Settings{
		Name:         cfg.Server.Name,
		Network:      cfg.Server.Network,
		Created:      startTime,
		MOTD:         cfg.Server.MOTD,
		PasswordHash: cfg.Server.PasswordHash,
	}

	return &Server{
		config:     cfg,
		dispatcher: NewDispatcher(settings, metrics, log.Named("dispatcher")),
		log:        log,
		startTime:  startTime,
		quit:       make(chan struct{}),
	}
}

// Dispatcher returns the server's state machine
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// StartTime returns when the server was created
func (s *Server) StartTime() time.Time {
	return s.startTime
}

// Start listens on the configured address and accepts connections in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress(), err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Infow("listening", "addr", listener.Addr().String())
	go s.acceptConnections(listener)
	return nil
}

// Addr returns the bound listener address, nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener, disconnects every user and waits for their
// connections to finish or for ctx to expire
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		return nil
	default:
		close(s.quit)
	}
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}

	s.dispatcher.Shutdown(reasonShuttingDown)

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connections: %w", ctx.Err())
	}
}

// acceptConnections accepts and handles new connections
func (s *Server) acceptConnections(listener net.Listener) {
	for {
		nc, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warnw("failed to accept connection", "error", err)
			continue
		}

		s.mu.Lock()
		select {
		case <-s.quit:
			s.mu.Unlock()
			nc.Close()
			return
		default:
		}
		s.conns.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.conns.Done()
			s.handleConnection(nc)
		}()
	}
}

// handleConnection registers a user for nc and serves it
func (s *Server) handleConnection(nc net.Conn) {
	host, _, err := net.SplitHostPort(nc.RemoteAddr().String())
	if err != nil {
		host = nc.RemoteAddr().String()
	}

	user := NewUser(uuid.New().String(), host, s.config.Limits.SendQ)
	if err := s.dispatcher.Connect(user); err != nil {
		s.log.Errorw("failed to register connection", "error", err)
		nc.Close()
		return
	}

	// Connections accepted while stopping are turned away at once
	select {
	case <-s.quit:
		s.dispatcher.Disconnect(user, reasonShuttingDown)
	default:
	}

	newConn(s, nc, user).serve()
}
