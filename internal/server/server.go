// Package server exposes the engine and the macro repository over HTTP.
//
// Routes:
//
//	GET    /api/health        liveness
//	GET    /api/status        engine status
//	POST   /api/record/start  begin recording
//	POST   /api/record/stop   end recording, optionally saving it
//	POST   /api/play          replay a stored or inline macro
//	POST   /api/stop          stop a session
//	GET    /api/macros        list macros
//	GET    /api/macros/:id    fetch a macro record
//	DELETE /api/macros/:id    delete a macro
//	GET    /api/windows       list top-level windows
//	GET    /api/ws            websocket status stream
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dshills/winmacro/internal/engine"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/platform"
	"github.com/dshills/winmacro/internal/session"
	"github.com/dshills/winmacro/internal/store"
)

// Engine is the part of the engine the server drives.
type Engine interface {
	StartRecording(ctx context.Context, meta macro.Metadata) error
	StopRecording() (*macro.Timeline, error)
	Play(ctx context.Context, tl *macro.Timeline, loops int, speed float64) (session.ID, error)
	Stop(id session.ID) error
	Status() engine.Status
	Subscribe(fn func(engine.Status)) (unsubscribe func())
	Windows(ctx context.Context) ([]platform.WindowInfo, error)
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. "127.0.0.1:8765".
	Addr string
	// Mode is the gin mode: release, debug or test.
	Mode string
	// Logger receives request and websocket logs.
	Logger *logging.Logger
	// StreamBuffer is the per-client websocket queue length. Status
	// updates are dropped for clients that fall this far behind.
	StreamBuffer int
}

// DefaultStreamBuffer is the default per-client websocket queue length.
const DefaultStreamBuffer = 64

const shutdownTimeout = 5 * time.Second

// Server serves the control API.
type Server struct {
	eng      Engine
	repo     store.Repository
	logger   *logging.Logger
	addr     string
	buffer   int
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New creates a Server. repo may be nil, in which case the macro routes
// respond 503.
func New(eng Engine, repo store.Repository, opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = DefaultStreamBuffer
	}

	s := &Server{
		eng:    eng,
		repo:   repo,
		logger: opts.Logger.WithComponent("server"),
		addr:   opts.Addr,
		buffer: opts.StreamBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	s.routes(r)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is done.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) routes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api.GET("/status", s.handleStatus)
	api.POST("/record/start", s.handleRecordStart)
	api.POST("/record/stop", s.handleRecordStop)
	api.POST("/play", s.handlePlay)
	api.POST("/stop", s.handleStop)
	api.GET("/windows", s.handleWindows)
	api.GET("/ws", s.handleStream)

	macros := api.Group("/macros", s.requireRepo)
	macros.GET("", s.handleListMacros)
	macros.GET("/:id", s.handleGetMacro)
	macros.DELETE("/:id", s.handleDeleteMacro)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%3d | %13v | %-7s %s",
			c.Writer.Status(), time.Since(start), c.Request.Method, c.Request.URL.Path)
	}
}

func (s *Server) requireRepo(c *gin.Context) {
	if s.repo == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "macro storage is not configured"})
		return
	}
	c.Next()
}

// fail writes err with a status derived from its cause.
func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrConcurrentSession),
		errors.Is(err, engine.ErrCaptureAlreadyActive),
		errors.Is(err, engine.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, engine.ErrWindowNotFound),
		errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidTimeline),
		errors.Is(err, engine.ErrInvalidSpeed),
		errors.Is(err, engine.ErrInvalidLoops),
		errors.Is(err, store.ErrInvalidID),
		errors.Is(err, store.ErrEmptyTimeline):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotStarted),
		errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
