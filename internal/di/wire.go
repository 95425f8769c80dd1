//go:build wireinject
// +build wireinject

package di

import (
	"MarketSweep/pkg/config"
	"MarketSweep/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Data plane
		ProvideBarProvider,
		ProvideBarCache,
		ProvideFetcher,
		ProvideResultCache,

		// Engine services
		ProvideScanner,
		ProvideEngine,
		ProvideOptimizer,
		ProvideUniverse,

		// Fan-out
		ProvideSignalPublisher,

		// Use cases and HTTP surface
		ProvideScanUsecase,
		ProvideEngineHandler,
	)
	return &server.App{}, nil
}
