package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/directory"
	"github.com/septivank/water-metering-sync/internal/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Server exposes the sync and alert jobs over HTTP
type Server struct {
	sync      service.SyncRunner
	alerts    service.AlertRunner
	directory directory.Directory
	apiKey    string
	logger    *zap.Logger
}

// Deps holds the collaborators of the HTTP server
type Deps struct {
	Sync      service.SyncRunner
	Alerts    service.AlertRunner
	Directory directory.Directory
	Logger    *zap.Logger
}

// NewServer creates the HTTP handlers. Every /api route requires APP_API_KEY.
func NewServer(deps Deps, cfg *config.Config) *Server {
	if cfg.AppAPIKey == "" {
		deps.Logger.Warn("APP_API_KEY not set, every /api request will be rejected")
	}
	return &Server{
		sync:      deps.Sync,
		alerts:    deps.Alerts,
		directory: deps.Directory,
		apiKey:    cfg.AppAPIKey,
		logger:    deps.Logger,
	}
}

// NewEngine builds the gin engine with the middleware chain and routes
func NewEngine(s *Server, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(AccessLog(s.logger))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api", RequireAPIKey(s.apiKey))
	api.POST("/pds/sync", s.Sync)
	api.POST("/notifications/daily-differential", s.DailyDifferential)
	api.GET("/buildings", s.Buildings)

	return r
}

// Run serves the engine on SERVICE_PORT for the lifetime of the application
func Run(lc fx.Lifecycle, r *gin.Engine, cfg *config.Config, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			logger.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
