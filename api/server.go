// Package api serves the scheduling engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/amonks/taskgraph/internal/app"
	"github.com/gin-gonic/gin"
)

// ActorHeader names the request header carrying the acting user.
const ActorHeader = "X-Actor"

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	App *app.App

	// Logger receives request failures and panics. Defaults to discarding.
	Logger *log.Logger
}

// Server handles API requests.
type Server struct {
	app    *app.App
	logger *log.Logger
	router *gin.Engine
}

// NewServer builds the router.
func NewServer(opts Options) (*Server, error) {
	if opts.App == nil {
		return nil, fmt.Errorf("app is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{app: opts.App, logger: logger, router: router}
	router.Use(s.recoverMiddleware())

	api := router.Group("/api")
	{
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.requireActor, s.handleCreateTask)
		api.GET("/tasks/:id", s.handleGetTask)
		api.DELETE("/tasks/:id", s.requireActor, s.handleDeleteTask)
		api.GET("/tasks/:id/dependencies", s.handleListDependencies)
		api.POST("/tasks/:id/dependencies", s.requireActor, s.handleCreateDependency)
		api.DELETE("/dependencies/:id", s.requireActor, s.handleDeleteDependency)
		api.GET("/tasks/:id/transition", s.handleTransition)
		api.PUT("/tasks/:id/status", s.requireActor, s.handleUpdateStatus)
		api.PUT("/tasks/:id/dates", s.requireActor, s.handleUpdateDates)
		api.GET("/tasks/:id/timeline", s.handleTimeline)
		api.GET("/workspaces/:workspace/projects/:project/gantt", s.handleGantt)
		api.GET("/workspaces/:workspace/activity", s.requireActor, s.handleActivity)
	}
	router.NoRoute(func(c *gin.Context) {
		s.writeError(c, http.StatusNotFound, errors.New("no such route"))
	})
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the server on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:     addr,
		Handler:  s.router,
		ErrorLog: s.logger,
	}

	listenErrs := make(chan error, 1)
	go func() {
		listenErrs <- server.ListenAndServe()
	}()
	s.logger.Printf("listening on %s", addr)

	select {
	case err := <-listenErrs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("server stopped: %v", err)
			return err
		}
		return nil
	case <-ctx.Done():
		s.logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		shutdownErr := server.Shutdown(shutdownCtx)
		cancel()
		listenErr := <-listenErrs
		if errors.Is(listenErr, http.ErrServerClosed) {
			listenErr = nil
		}
		return errors.Join(shutdownErr, listenErr)
	}
}

func (s *Server) recoverMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.logger.Printf("panic handling request %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, recovered, debug.Stack())
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// requireActor rejects mutations that don't name an actor.
func (s *Server) requireActor(c *gin.Context) {
	if actor(c) == "" {
		s.writeError(c, http.StatusBadRequest, fmt.Errorf("%s header is required", ActorHeader))
		c.Abort()
		return
	}
	c.Next()
}

func actor(c *gin.Context) string {
	return c.GetHeader(ActorHeader)
}
