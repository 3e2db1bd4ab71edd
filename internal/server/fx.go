package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/septivank/water-metering-sync/internal/config"
	"github.com/septivank/water-metering-sync/internal/directory"
	"github.com/septivank/water-metering-sync/internal/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module serves the HTTP API for the lifetime of the application
var Module = fx.Module("water-metering.http",
	fx.Provide(ProvideServer, ProvideEngine),
	fx.Invoke(Run),
)

// ProvideServer creates the HTTP handlers from the job services
func ProvideServer(
	syncSvc *service.SyncService,
	alertSvc *service.AlertService,
	dir directory.Directory,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return NewServer(Deps{
		Sync:      syncSvc,
		Alerts:    alertSvc,
		Directory: dir,
		Logger:    logger,
	}, cfg)
}

// ProvideEngine builds the release-mode gin engine
func ProvideEngine(s *Server, registry *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	return NewEngine(s, registry)
}
