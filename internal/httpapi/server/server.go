package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/redhat-data-and-ai/cortexstage/internal/httpapi/handlers"
	"github.com/redhat-data-and-ai/cortexstage/internal/httpapi/middleware"
	"github.com/redhat-data-and-ai/cortexstage/pkg/config"
)

type APIServer struct {
	config   *config.AppConfig
	handlers *handlers.Handlers
	router   *gin.Engine
	server   *http.Server
}

func NewAPIServer(cfg *config.AppConfig, h *handlers.Handlers) *APIServer {
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		logrus.WithFields(logrus.Fields{
			"method":     param.Method,
			"path":       param.Path,
			"status":     param.StatusCode,
			"latency":    param.Latency,
			"client_ip":  param.ClientIP,
			"user_agent": param.Request.UserAgent(),
			"error":      param.ErrorMessage,
		}).Info("HTTP request")
		return ""
	}))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(&cfg.APIServer))

	s := &APIServer{
		config:   cfg,
		handlers: h,
		router:   router,
	}

	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	s.router.GET("/api/v1/status", s.handlers.GetStatus)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.BasicAuth(&s.config.APIServer))
	{
		v1.GET("/report", s.handlers.GetReport)
		v1.POST("/verify", s.handlers.PostVerify)
		v1.GET("/trust-policy", s.handlers.GetTrustPolicy)
		v1.GET("/integrations", s.handlers.GetIntegrations)
	}
}

// Handler exposes the router, mostly for tests
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is canceled
func (s *APIServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.APIServer.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.StopServer(ctx)

	logrus.WithField("address", s.server.Addr).Info("starting http API server")
	if err := s.server.ListenAndServe(); err != nil {
		if err == http.ErrServerClosed {
			logrus.Info("http API server stopped")
			return nil
		}
		return fmt.Errorf("failed to start http API server : %w", err)
	}

	return nil
}

func (s *APIServer) StopServer(ctx context.Context) {
	<-ctx.Done()
	logrus.Info("turning down http API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("error during HTTP API server shutdown")
	}
}
