//go:build wireinject
// +build wireinject

package di

import (
	"SigCast/pkg/config"
	"SigCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,
		ProvideEncryptor,

		// Repositories
		ProvideAudit,
		ProvideAuditSink,
		ProvideAuditReader,
		ProvideAccountStore,
		ProvideAccountDirectory,
		ProvideSecretStore,
		ProvideEventPublisher,

		// Services
		ProvideVault,
		ProvideExchangeRegistry,
		ProvideContextStream,
		ProvideContextProvider,

		// Use cases
		ProvideGate,
		ProvideResolver,
		ProvideDispatcher,
		ProvideCoordinator,
		ProvideKafkaSignalsHandler,

		// Surfaces
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
