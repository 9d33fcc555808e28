package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aircraft-vision/config"
)

// Server — HTTP-обвязка сервиса детекции.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer собирает маршруты и настраивает таймауты.
func NewServer(cfg *config.ServerConfig, inspector Inspector, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := NewHandler(inspector, log)

	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)

	ml := router.Group("/ml")
	{
		ml.POST("/detect", h.Detect)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.Host + ":" + cfg.Port,
			Handler: router,
			// Инференс двух моделей занимает до десятков секунд.
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		log: log,
	}
}

// Run запускает сервер и блокируется до его остановки.
func (s *Server) Run() error {
	s.log.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown корректно останавливает сервер.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
