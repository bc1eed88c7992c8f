package di

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"SigCast/internal/domain/repository"
	"SigCast/internal/handler/api"
	internalrepo "SigCast/internal/repository"
	"SigCast/internal/service/exchange"
	"SigCast/internal/service/marketdata"
	"SigCast/internal/service/metrics"
	"SigCast/internal/service/vault"
	"SigCast/internal/usecase"
	"SigCast/pkg/cache"
	pkgch "SigCast/pkg/clickhouse"
	"SigCast/pkg/config"
	"SigCast/pkg/crypto"
	xhttp "SigCast/pkg/http"
	pkgkafka "SigCast/pkg/kafka"
	applogger "SigCast/pkg/logger"
	"SigCast/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client and installs the
// audit schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 5*time.Minute),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.AuditSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideAudit creates the ClickHouse audit store.
func ProvideAudit(client *pkgch.Client) *internalrepo.ClickHouseAudit {
	return internalrepo.NewClickHouseAudit(client.DB())
}

// ProvideAuditSink exposes the audit store's write side.
func ProvideAuditSink(a *internalrepo.ClickHouseAudit) repository.AuditSink { return a }

// ProvideAuditReader exposes the audit store's query side.
func ProvideAuditReader(a *internalrepo.ClickHouseAudit) repository.AuditReader { return a }

// ProvideAccountStore opens Postgres and creates the account store.
func ProvideAccountStore(cfg *config.Config) (*internalrepo.AccountStore, error) {
	db, err := internalrepo.NewPostgres(internalrepo.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return internalrepo.NewAccountStore(db), nil
}

// ProvideAccountDirectory exposes the account store as the eligibility
// directory.
func ProvideAccountDirectory(s *internalrepo.AccountStore) repository.AccountDirectory { return s }

// ProvideSecretStore exposes the account store as the encrypted secret
// source.
func ProvideSecretStore(s *internalrepo.AccountStore) vault.SecretStore { return s }

// ProvideCache creates the cache backend. Redis when enabled, otherwise
// an in-process fallback.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(10_000, time.Minute), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideEncryptor builds the AES-GCM encryptor from the configured key.
// The key may be given as 64 hex characters or 32 raw bytes.
func ProvideEncryptor(cfg *config.Config) (*crypto.Encryptor, error) {
	key := []byte(cfg.Vault.EncryptionKey)
	if len(key) == 2*crypto.KeySize {
		decoded, err := hex.DecodeString(cfg.Vault.EncryptionKey)
		if err == nil {
			key = decoded
		}
	}
	version := cfg.Vault.KeyVersion
	if version <= 0 {
		version = 1
	}
	return crypto.NewEncryptor(key, version)
}

// ProvideVault creates the credential vault adapter.
func ProvideVault(
	store vault.SecretStore,
	enc *crypto.Encryptor,
	c cache.Service,
	cfg *config.Config,
	log *applogger.Logger,
) repository.CredentialVault {
	return vault.NewAdapter(store, enc, c, cfg.Vault.CacheTTL, log)
}

// ProvideExchangeRegistry builds the registry of exchange clients.
// Paper clients stand in for venue connectors; the registry keys by the
// account's exchange name.
func ProvideExchangeRegistry() repository.ExchangeRegistry {
	return exchange.NewRegistry(
		exchange.NewPaper("paper"),
		exchange.NewPaper("binance"),
		exchange.NewPaper("bybit"),
	)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.NewRecorder()
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithProducerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithProducerAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithProducerCompression(cfg.Kafka.Compression),
		pkgkafka.WithProducerHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher mirrors finalized execution records onto Kafka.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	return internalrepo.NewKafkaEvents(producer, cfg.Kafka.ExecutionsTopic)
}

// ProvideKafkaConsumer creates the signal intake consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideContextStream creates the market context websocket provider.
// Returns nil when no feed is configured; the coordinator then sees an
// always-empty context and the gate fails conservative.
func ProvideContextStream(cfg *config.Config, log *applogger.Logger) *marketdata.Stream {
	if cfg.MarketData.WebSocketURL == "" {
		return nil
	}
	return marketdata.NewStream(marketdata.StreamConfig{
		WebSocketURL:   cfg.MarketData.WebSocketURL,
		ReconnectDelay: cfg.MarketData.ReconnectDelay,
		PingInterval:   cfg.MarketData.PingInterval,
		StaleAfter:     cfg.MarketData.StaleAfter,
	}, log)
}

// ProvideContextProvider selects the context source for the gate.
func ProvideContextProvider(stream *marketdata.Stream) repository.ContextProvider {
	if stream == nil {
		return marketdata.Static{}
	}
	return stream
}

// ProvideGate creates the eligibility gate.
func ProvideGate(cfg *config.Config) *usecase.Gate {
	gc := usecase.DefaultGateConfig()
	gc.MinFavorable = cfg.Engine.MinFavorableConditions
	return usecase.NewGate(gc)
}

// ProvideResolver creates the per-signal account resolver.
func ProvideResolver(directory repository.AccountDirectory, log *applogger.Logger) *usecase.Resolver {
	return usecase.NewResolver(directory, log)
}

// ProvideDispatcher creates the per-account dispatcher.
func ProvideDispatcher(
	v repository.CredentialVault,
	exchanges repository.ExchangeRegistry,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.Dispatcher {
	return usecase.NewDispatcher(v, exchanges, usecase.DispatcherConfig{
		CredentialTimeout: cfg.Engine.CredentialTimeout,
		DispatchTimeout:   cfg.Engine.DispatchTimeout,
	}, log)
}

// ProvideCoordinator creates the signal execution coordinator.
func ProvideCoordinator(
	gate *usecase.Gate,
	resolver *usecase.Resolver,
	dispatch *usecase.Dispatcher,
	contexts repository.ContextProvider,
	audit repository.AuditSink,
	events repository.EventPublisher,
	m repository.Metrics,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.Coordinator {
	return usecase.NewCoordinator(gate, resolver, dispatch, contexts, audit, events, m,
		usecase.CoordinatorConfig{
			MaxConcurrency:  cfg.Engine.MaxConcurrency,
			OverallDeadline: cfg.Engine.OverallDeadline,
		}, log)
}

// ProvideKafkaSignalsHandler registers the intake handler for the
// signals topic.
func ProvideKafkaSignalsHandler(coordinator *usecase.Coordinator, cfg *config.Config, log *applogger.Logger) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.SignalsTopic, coordinator, log)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(log *applogger.Logger, coordinator *usecase.Coordinator, audit repository.AuditReader) xhttp.Handler {
	return api.NewSignalsEchoHandler(log, coordinator, audit)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	coordinator *usecase.Coordinator,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	stream *marketdata.Stream,
	chClient *pkgch.Client,
	events repository.EventPublisher,
	httpHandler xhttp.Handler,
) *server.App {
	return server.New(cfg, log, coordinator, consumer, kh, stream, chClient, events, httpHandler)
}
