package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"album-scanner/discovery"
	"album-scanner/export"
	"album-scanner/messaging"
	"album-scanner/settings"
)

type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	KeepAlive       time.Duration
}

type Server struct {
	router      *gin.Engine
	cfg         Config
	coordinator *messaging.Coordinator
	settings    *settings.Store
	logger      *logrus.Logger
}

type exportRequest struct {
	Format           string                  `json:"format"`
	Images           []discovery.ImageRecord `json:"images"`
	TabID            string                  `json:"tab_id"`
	Settings         *settings.Settings      `json:"settings"`
	DefaultSelection bool                    `json:"default_selection"`
}

func New(cfg Config, coordinator *messaging.Coordinator, store *settings.Store, logger *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestLogger(logger))
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"panic": recovered,
		}).Error("Handler panicked")
		c.AbortWithStatus(http.StatusInternalServerError)
	}))

	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		router:      r,
		cfg:         cfg,
		coordinator: coordinator,
		settings:    store,
		logger:      logger,
	}
	s.SetupRoutes()
	return s
}

func (s *Server) SetupRoutes() {
	api := s.router.Group("/api")
	api.POST("/message", s.messageHandler)
	api.GET("/tabs", s.tabsHandler)
	api.GET("/tabs/:id/images", s.imagesHandler)
	api.GET("/tabs/:id/stream", s.streamHandler)
	api.POST("/export", s.exportHandler)
	api.GET("/settings", s.getSettingsHandler)
	api.PUT("/settings", s.putSettingsHandler)

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.healthHandler)
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.WithError(err).Error("Server shutdown failed")
		return err
	}
	return nil
}

func (s *Server) messageHandler(c *gin.Context) {
	var msg discovery.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, discovery.Response{Message: discovery.StatusError, Reason: err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.coordinator.Process(c.Request.Context(), msg.TabID, msg))
}

func (s *Server) tabsHandler(c *gin.Context) {
	tabs := s.coordinator.Registry().Tabs()
	out := make([]gin.H, 0, len(tabs))
	for _, id := range tabs {
		engine, err := s.coordinator.Registry().Get(id)
		if err != nil {
			continue
		}
		out = append(out, gin.H{
			"tab_id": id,
			"url":    engine.URL(),
			"state":  engine.State(),
			"count":  len(engine.Records()),
		})
	}
	c.JSON(http.StatusOK, gin.H{"tabs": out, "count": len(out)})
}

func (s *Server) imagesHandler(c *gin.Context) {
	engine, err := s.coordinator.Registry().Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	records := engine.Records()
	c.JSON(http.StatusOK, gin.H{
		"tab_id": c.Param("id"),
		"url":    engine.URL(),
		"state":  engine.State(),
		"images": records,
		"count":  len(records),
	})
}

// streamHandler sends each record reported for the tab as an "image"
// event, with periodic "ping" events to keep the connection open.
func (s *Server) streamHandler(c *gin.Context) {
	tabID := c.Param("id")
	engine, err := s.coordinator.Registry().Get(tabID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	records, unsubscribe := s.coordinator.Hub().Subscribe(tabID)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	if c.Query("replay") == "true" {
		for _, rec := range engine.Records() {
			c.SSEvent("image", rec)
		}
		c.Writer.Flush()
	}

	ping := time.NewTicker(s.cfg.KeepAlive)
	defer ping.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case rec, ok := <-records:
			if !ok {
				c.SSEvent("closed", gin.H{"tab_id": tabID})
				return false
			}
			c.SSEvent("image", rec)
			return true
		case <-ping.C:
			c.SSEvent("ping", gin.H{"time": time.Now().Unix()})
			return true
		}
	})
}

func (s *Server) exportHandler(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	images := req.Images
	if len(images) == 0 && req.TabID != "" {
		engine, err := s.coordinator.Registry().Get(req.TabID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		images = engine.Records()
	}
	if req.DefaultSelection {
		images = export.DefaultSelection(images)
	}

	var prefs settings.Settings
	if req.Settings != nil {
		prefs = req.Settings.Normalize()
	} else {
		var err error
		if prefs, err = s.settings.Load(); err != nil {
			s.logger.WithError(err).Warn("Using default export settings")
		}
	}

	out, err := export.Render(req.Format, images, prefs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType(req.Format), []byte(out))
}

func (s *Server) getSettingsHandler(c *gin.Context) {
	prefs, err := s.settings.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) putSettingsHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	prefs, err := s.settings.Update(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tabs":   len(s.coordinator.Registry().Tabs()),
	})
}

func contentType(format string) string {
	switch format {
	case export.FormatHTML, export.FormatMosaic, export.FormatGallery:
		return "text/html; charset=utf-8"
	case export.FormatMarkdown:
		return "text/markdown; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	}
}
