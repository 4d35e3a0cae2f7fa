// Package api serves the indicator state to external overlays over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/livepid/tracker/internal/indicator"
	"github.com/livepid/tracker/internal/session"
	"github.com/livepid/tracker/pkg/core"
)

// DefaultPushInterval is how often /ws checks for a changed status.
// A game tick is 600ms.
const DefaultPushInterval = 100 * time.Millisecond

// StatusSource is the tracker state the server exposes, e.g. *session.Manager.
type StatusSource interface {
	Status() core.PidStatus
	View() indicator.View
	Tick() int
	Snapshot() session.Snapshot
}

// StatusResponse is the body of GET /status and of every /ws message.
type StatusResponse struct {
	Status   string         `json:"status"`
	Label    string         `json:"label"`
	Color    indicator.RGBA `json:"color"`
	Visible  bool           `json:"visible"`
	Mode     indicator.Mode `json:"mode"`
	TextSize int            `json:"textSize"`
	Tick     int            `json:"tick"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the gin status API.
type Server struct {
	src          StatusSource
	log          *slog.Logger
	engine       *gin.Engine
	pushInterval time.Duration

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	closing  chan struct{}
	streams  sync.WaitGroup
}

// NewServer builds the router. A nil logger discards request logs.
func NewServer(src StatusSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		src:          src,
		log:          logger,
		pushInterval: DefaultPushInterval,
		closing:      make(chan struct{}),
	}

	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(s.requestLogger())

	g.GET("/healthz", s.healthz)
	g.GET("/status", s.status)
	g.GET("/view", s.view)
	g.GET("/snapshot", s.snapshot)
	g.GET("/ws", s.stream)

	s.engine = g
	return s
}

// Handler returns the router for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status API stopped", "error", err)
		}
	}()
	s.log.Info("status API listening", "addr", ln.Addr().String())
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

// Shutdown closes open streams and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	select {
	case <-s.closing:
	default:
		close(s.closing)
	}
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()

	s.streams.Wait()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) currentStatus() StatusResponse {
	status := s.src.Status()
	v := s.src.View()
	return StatusResponse{
		Status:   status.String(),
		Label:    v.Label,
		Color:    v.Color,
		Visible:  v.Visible,
		Mode:     v.Mode,
		TextSize: v.TextSize,
		Tick:     s.src.Tick(),
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.currentStatus())
}

func (s *Server) view(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.View())
}

func (s *Server) snapshot(c *gin.Context) {
	snap := s.src.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"session":         snap.Session,
		"active":          snap.Active,
		"status":          snap.Status.String(),
		"tick":            snap.Tick,
		"ticksSeen":       snap.TicksSeen,
		"resolutions":     snap.Resolutions,
		"pendingAttack":   snap.PendingAttack,
		"pendingHitsplat": snap.PendingHitsplat,
		"cachedActors":    snap.CachedActors,
		"animations":      snap.Animations,
	})
}

// stream pushes the status whenever it changes until the client goes away
// or the server shuts down.
func (s *Server) stream(c *gin.Context) {
	s.mu.Lock()
	select {
	case <-s.closing:
		s.mu.Unlock()
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	default:
	}
	s.streams.Add(1)
	s.mu.Unlock()
	defer s.streams.Done()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	var last StatusResponse
	first := true
	for {
		if cur := s.currentStatus(); first || cur != last {
			if err := conn.WriteJSON(cur); err != nil {
				return
			}
			last, first = cur, false
		}

		select {
		case <-gone:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
