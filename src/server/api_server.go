package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"alphatrak-observer/src/analysis"
	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
	"alphatrak-observer/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Control interfaces.IObserverControl
	DB      interfaces.IDatabase // nil when storage is disabled
	History *utils.HistoryManager

	// OnCredentialsUpdated runs after a successful credential update, with
	// the username only.
	OnCredentialsUpdated func(username string)

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket clients, owned by the hub goroutine
	clients     map[*Client]struct{}
	connections atomic.Int32
	broadcast   chan *models.MLatestData
	register    chan *Client
	unregister  chan *Client
	direct      chan directMessage
	done        chan struct{}
	stopOnce    sync.Once

	// Local cache
	latestState *models.MLatestData
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(
	cfg *models.MConfig,
	control interfaces.IObserverControl,
	db interfaces.IDatabase,
	history *utils.HistoryManager,
	logger *logger.Logger,
) *APIServer {
	if strings.ToUpper(cfg.LogLevel) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:  cfg,
		Logger:  logger,
		Control: control,
		DB:      db,
		History: history,
		engine:  gin.Default(),
		clients: make(map[*Client]struct{}),
		// Buffered so a burst of cycle results never blocks the pollers
		broadcast:  make(chan *models.MLatestData, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directMessage, 64),
		done:       make(chan struct{}),
		latestState: &models.MLatestData{
			Type:    "INITIAL",
			Results: make(map[int64]models.MCycleResult),
		},
	}

	// Local dashboards only
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.engine,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.GET("/pets", s.getPets)
	api.GET("/pets/:id/snapshot", s.getSnapshot)
	api.GET("/pets/:id/summary", s.getSummary)
	api.GET("/pets/:id/history", s.getHistory)
	api.POST("/pets/:id/refresh", s.postRefresh)
	api.POST("/credentials", s.postCredentials)

	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mostly for tests.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and serves HTTP until Stop. It blocks.
func (s *APIServer) Start() error {
	s.Logger.Info("Starting server on %s", s.httpServer.Addr)

	go s.runHub()

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	})
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   s.connections.Load(),
		"pets":          len(s.Control.Statuses()),
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

// getConfig reports the polling setup. Credentials are never exposed.
func (s *APIServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pets":             s.Config.Pets,
		"interval_minutes": s.Config.Polling.IntervalMinutes,
		"window_days":      s.Config.Polling.WindowDays,
		"language_id":      s.Config.API.LanguageID,
		"storage":          s.Config.Storage.DBType,
		"redis":            s.Config.Redis.Enabled,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getPets(c *gin.Context) {
	c.JSON(http.StatusOK, s.Control.Statuses())
}

// -----------------------------------------------------------------------------

// lastSnapshot resolves the :id parameter and writes the error response
// itself when there is nothing to return.
func (s *APIServer) lastSnapshot(c *gin.Context) (*models.MSnapshot, bool) {
	petID, err := parsePetID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	snap, err := s.Control.LastSnapshot(petID)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no snapshot for pet %d yet", petID)})
		return nil, false
	}
	return snap, true
}

func (s *APIServer) getSnapshot(c *gin.Context) {
	if snap, ok := s.lastSnapshot(c); ok {
		c.JSON(http.StatusOK, snap)
	}
}

func (s *APIServer) getSummary(c *gin.Context) {
	if snap, ok := s.lastSnapshot(c); ok {
		c.JSON(http.StatusOK, analysis.Summarize(snap))
	}
}

// -----------------------------------------------------------------------------

// getHistory returns stored glucose readings (?days=) and the most recent
// cycle results kept in memory (?limit=).
func (s *APIServer) getHistory(c *gin.Context) {
	petID, err := parsePetID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.Control.LastSnapshot(petID); err != nil {
		s.writeError(c, err)
		return
	}

	days := queryInt(c, "days", s.Config.Polling.WindowDays)
	since := time.Now().UTC().Add(-utils.Days(days, utils.DefaultFetchWindow))

	readings := []models.MGlucoseReading{}
	if s.DB != nil {
		readings, err = s.DB.GlucoseHistory(petID, since)
		if err != nil {
			s.Logger.Error("History query for pet %d failed: %v", petID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
			return
		}
	}

	cycles := []models.MCycleResult{}
	if s.History != nil {
		cycles = append(cycles, s.History.Latest(petID, queryInt(c, "limit", 50))...)
	}

	c.JSON(http.StatusOK, gin.H{
		"pet_id":   petID,
		"since":    since.Format(time.RFC3339),
		"readings": readings,
		"cycles":   cycles,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) postRefresh(c *gin.Context) {
	petID, err := parsePetID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := s.Control.RefreshPet(c.Request.Context(), petID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// -----------------------------------------------------------------------------

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *APIServer) postCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	results, err := s.Control.UpdateCredentials(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if s.OnCredentialsUpdated != nil {
		s.OnCredentialsUpdated(req.Username)
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// -----------------------------------------------------------------------------

// writeError maps the error taxonomy onto HTTP statuses.
func (s *APIServer) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, helpers.ErrUnknownPet):
		status = http.StatusNotFound
	case helpers.IsAuthError(err):
		status = http.StatusUnauthorized
	case errors.Is(err, helpers.ErrAPIFailure):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("Request %s failed: %v", c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
