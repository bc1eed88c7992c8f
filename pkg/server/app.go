package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "SigCast/internal/domain/repository"
	"SigCast/internal/service/marketdata"
	"SigCast/internal/usecase"
	pkgch "SigCast/pkg/clickhouse"
	"SigCast/pkg/config"
	xhttp "SigCast/pkg/http"
	pkgkafka "SigCast/pkg/kafka"
	applogger "SigCast/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	coordinator *usecase.Coordinator
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	stream      *marketdata.Stream
	chClient    *pkgch.Client
	events      drepo.EventPublisher
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	coordinator *usecase.Coordinator,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	stream *marketdata.Stream,
	chClient *pkgch.Client,
	events drepo.EventPublisher,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		coordinator: coordinator,
		consumer:    consumer,
		kh:          kh,
		stream:      stream,
		chClient:    chClient,
		events:      events,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.log, a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.stream != nil {
		if err := a.stream.Start(ctx); err != nil {
			a.log.Error("market context stream start error", applogger.Error(err))
			return err
		}
		a.log.Info("market context stream started", applogger.String("url", a.cfg.MarketData.WebSocketURL))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops intake first, then drains in-flight signals, then
// closes the infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	if a.consumer != nil {
		stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
		cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	a.coordinator.Drain(a.cfg.Engine.DrainGracePeriod)
	a.log.Info("in-flight signals drained")

	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			a.log.Warn("market context stream close error", applogger.Error(err))
		}
	}

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("event publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
