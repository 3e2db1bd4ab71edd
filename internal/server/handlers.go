package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/septivank/water-metering-sync/internal/directory"
	"github.com/septivank/water-metering-sync/internal/service"
)

// Sync runs the reconciliation pipeline. The optional lookback_days query
// parameter overrides the index window for this run.
func (s *Server) Sync(c *gin.Context) {
	opts := service.SyncOptions{RequestID: requestIDFrom(c)}

	if raw, ok := c.GetQuery("lookback_days"); ok {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 0 {
			AbortWithError(c, &invalidParam{Name: "lookback_days", Message: "must be a non-negative integer"})
			return
		}
		opts.LookbackDays = &days
	}

	// the run outlives a dropped client; SYNC_TIMEOUT_SECONDS bounds it
	report, err := s.sync.Run(context.WithoutCancel(c.Request.Context()), opts)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// DailyDifferential computes the warnings and emails every subscriber
func (s *Server) DailyDifferential(c *gin.Context) {
	report, err := s.alerts.Run(context.WithoutCancel(c.Request.Context()), requestIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Buildings lists the directory, optionally restricted to the comma separated
// connections of the pds query parameter.
func (s *Server) Buildings(c *gin.Context) {
	buildings, err := s.directory.Buildings(c.Request.Context())
	if err != nil {
		AbortWithError(c, &service.SourceFetchError{Source: service.SourceBuildings, Err: err})
		return
	}

	buildings = directory.FilterByPDS(buildings, directory.SplitPDS(c.Query("pds")))
	if buildings == nil {
		buildings = []directory.Building{}
	}
	c.JSON(http.StatusOK, buildings)
}
