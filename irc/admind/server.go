// Package admind serves the administrative HTTP surface of the IRC server:
// health, a JSON view of users and channels, and Prometheus metrics.
package admind

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/presbrey/ircd/irc/server"
)

// Source is the server state exposed over HTTP
type Source interface {
	Snapshot() server.Stats
	Settings() server.Settings
}

// Server is the admin HTTP server
type Server struct {
	source     Source
	gatherer   prometheus.Gatherer
	log        *zap.SugaredLogger
	echoServer *echo.Echo

	mu       sync.Mutex
	listener net.Listener
}

// New creates the admin server. Request metrics are registered with reg and
// /metrics serves everything gathered from it.
func New(source Source, reg *prometheus.Registry, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	s := &Server{
		source:   source,
		gatherer: reg,
		log:      log,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(newHTTPMetrics(reg).middleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Debugw("admin request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			)
			return nil
		},
	}))
	s.route(e)
	s.echoServer = e
	return s
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on addr and serves in the background
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.echoServer.Listener = listener
	s.log.Infow("admin listening", "addr", listener.Addr().String())

	go func() {
		if err := s.echoServer.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("admin server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the HTTP server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.echoServer.Shutdown(ctx)
}

func (s *Server) route(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/api/stats", s.handleStats)
	e.GET("/api/channels", s.handleChannels)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// statsResponse is the body of GET /api/stats
type statsResponse struct {
	Server        string `json:"server"`
	Network       string `json:"network"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Users         int    `json:"users"`
	Registered    int    `json:"registered"`
	Channels      int    `json:"channels"`
}

func (s *Server) handleStats(c echo.Context) error {
	settings := s.source.Settings()
	stats := s.source.Snapshot()

	return c.JSON(http.StatusOK, statsResponse{
		Server:        settings.Name,
		Network:       settings.Network,
		UptimeSeconds: int64(time.Since(settings.Created) / time.Second),
		Users:         stats.Users,
		Registered:    stats.Registered,
		Channels:      len(stats.Channels),
	})
}

func (s *Server) handleChannels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.source.Snapshot().Channels)
}
