//go:build wireinject
// +build wireinject

package di

import (
	"MarketState/pkg/config"
	"MarketState/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Metrics
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideCache,
		ProvideClickHouseClient,

		// Repositories
		ProvideAnalysisStore,
		ProvideSettingsStore,
		ProvideMACDStore,

		// Services
		ProvideOracle,
		ProvideEngine,
		ProvideMarketData,
		ProvideNewsSource,
		ProvideReasoner,
		ProvideStateStream,
		ProvideEventPublisher,

		// Use cases
		ProvideAnalyzeUsecase,
		ProvideAnalysesUsecase,
		ProvideSettingsUsecase,
		ProvideChatUsecase,
		ProvideKafkaAnalyzeHandler,

		// Transport
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
