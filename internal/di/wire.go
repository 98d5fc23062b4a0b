//go:build wireinject
// +build wireinject

package di

import (
	"Wonderland/pkg/config"
	"Wonderland/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,
		ProvideLifetime,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideJournal,
		ProvidePostgres,
		ProvidePostgresStore,
		ProvideTaskStore,
		ProvideInstructStore,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideQueue,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideEventPublisher,

		// Agent runtime
		ProvideEventLog,
		ProvideBus,
		ProvideTaskRunner,
		ProvideOracle,
		ProvideThinking,
		ProvideMarketState,
		ProvideAgent,

		// External services
		ProvidePriceFeed,
		ProvideSwapExecutor,
		ProvideHoldingProvider,
		ProvideHoldingsProvider,
		ProvideRebalancer,
		ProvideNotifier,

		// Use cases
		ProvidePriceUpdater,
		ProvideInsightGenerator,
		ProvideTargetSelector,
		ProvideHoldingRefresher,
		ProvideManager,
		ProvideScheduler,
		ProvideCommandHandler,

		// Transport
		ProvideRateLimiter,
		ProvideDashboard,
		ProvideEventStream,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
