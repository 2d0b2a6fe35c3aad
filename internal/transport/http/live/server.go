package live

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"tactix/internal/engine"
	"tactix/internal/logger"
	"tactix/internal/store/eventlog"
	"tactix/internal/store/gormstore"

	"github.com/gin-gonic/gin"
)

// Server exposes the read-only live surface: latest actionable rows,
// persisted ladder states and the alert event tail. It never mutates
// decision state.
type Server struct {
	addr   string
	eng    *engine.Engine
	store  *gormstore.GormStore
	events *eventlog.Store
	router *gin.Engine
}

type Config struct {
	Addr   string
	Engine *engine.Engine
	Store  *gormstore.GormStore
	Events *eventlog.Store
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("live server: engine is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLog())

	s := &Server{
		addr:   cfg.Addr,
		eng:    cfg.Engine,
		store:  cfg.Store,
		events: cfg.Events,
		router: router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.GET("/rows", s.handleRows)
	api.GET("/ladders", s.handleLadders)
	api.GET("/alerts", s.handleAlerts)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"last_cycle": s.eng.LastCycle().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRows(c *gin.Context) {
	rows := s.eng.Rows()
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (s *Server) handleLadders(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusOK, gin.H{"ladders": []any{}})
		return
	}
	states, err := s.store.ListLadderStates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ladders": states})
}

func (s *Server) handleAlerts(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusOK, gin.H{"alerts": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	records, err := s.events.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": records})
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx cancels or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
