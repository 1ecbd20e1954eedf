// Package server exposes scrape runs over HTTP and on a cron schedule.
// Runs are serialized: a trigger while a run is in flight is rejected, since
// concurrent runs would share one account's session.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"postscraper/pkg/config"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
)

// ErrBusy is returned when a run is already in progress.
var ErrBusy = errors.New("a run is already in progress")

// Runner executes one scrape run.
type Runner interface {
	Run(ctx context.Context, req models.Request) (*models.Summary, error)
}

// Server triggers runs and reports their status.
type Server struct {
	cfg     config.ServerConfig
	runner  Runner
	runs    *RunStore
	engine  *gin.Engine
	logger  logger.Logger
	started time.Time

	// ctx bounds every run started by the server.
	ctx  context.Context
	busy chan struct{}
}

// New creates a server. Runs are bound to ctx.
func New(ctx context.Context, cfg config.ServerConfig, runner Runner, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Server{
		cfg:     cfg,
		runner:  runner,
		runs:    NewRunStore(50),
		logger:  log.WithField("component", "server"),
		started: time.Now(),
		ctx:     ctx,
		busy:    make(chan struct{}, 1),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Runs returns the run store.
func (s *Server) Runs() *RunStore {
	return s.runs
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), loggerMiddleware(s.logger))

	r.GET("/health", s.health)
	v1 := r.Group("/api/v1")
	{
		v1.POST("/runs", s.createRun)
		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithFields("HTTP server listening", map[string]interface{}{"addr": s.cfg.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// Trigger starts req in the background and returns its run record. It fails
// with ErrBusy while another run is in flight.
func (s *Server) Trigger(req models.Request, source string) (*Run, error) {
	select {
	case s.busy <- struct{}{}:
	default:
		return nil, ErrBusy
	}

	run := s.runs.Create(req, source)
	log := s.logger.WithFields(map[string]interface{}{"run": run.ID, "source": source})
	log.Info("Run triggered")

	go func() {
		defer func() { <-s.busy }()
		s.runs.Start(run.ID)
		summary, err := s.runner.Run(s.ctx, req)
		s.runs.Finish(run.ID, summary, err)
		if err != nil {
			log.WithError(err).Warn("Run failed")
			return
		}
		log.Info("Run completed")
	}()
	return run, nil
}

// Wait blocks until no run is in flight or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case s.busy <- struct{}{}:
		<-s.busy
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	status := "idle"
	if len(s.busy) > 0 {
		status = "running"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"runner": status,
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) createRun(c *gin.Context) {
	var req models.Request
	// An empty body runs the configured request
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: string(errs.KindConfig)})
		return
	}
	if req.Mode != "" && !models.ValidMode(req.Mode) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown mode " + string(req.Mode), Kind: string(errs.KindConfig)})
		return
	}

	run, err := s.Trigger(req, "api")
	if errors.Is(err, ErrBusy) {
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	c.Header("Location", "/api/v1/runs/"+run.ID)
	c.JSON(http.StatusAccepted, run)
}

func (s *Server) getRun(c *gin.Context) {
	run, ok := s.runs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "run not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) listRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.runs.List()})
}

// loggerMiddleware logs one line per request.
func loggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := map[string]interface{}{
			"method":    c.Request.Method,
			"path":      path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["errors"] = strings.Join(c.Errors.Errors(), "; ")
			log.ErrorWithFields("HTTP request with errors", fields)
			return
		}
		if strings.HasPrefix(path, "/health") {
			log.DebugWithFields("HTTP request", fields)
			return
		}
		log.InfoWithFields("HTTP request", fields)
	}
}
