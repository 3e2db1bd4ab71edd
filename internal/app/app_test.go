package app

import (
	"testing"

	"github.com/septivank/water-metering-sync/internal/service"
	"go.uber.org/fx"
)

func TestCoreGraph(t *testing.T) {
	err := fx.ValidateApp(
		Core,
		Logger,
		fx.Invoke(func(*service.SyncService, *service.AlertService) {}),
	)
	if err != nil {
		t.Fatalf("Expected a complete dependency graph, got %v", err)
	}
}
