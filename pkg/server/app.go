package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketSweep/internal/domain/repository"
	"MarketSweep/internal/handler/api"
	pkgch "MarketSweep/pkg/clickhouse"
	"MarketSweep/pkg/config"
	xhttp "MarketSweep/pkg/http"
	pkgkafka "MarketSweep/pkg/kafka"
	"MarketSweep/pkg/logger"
	"MarketSweep/pkg/queue"
)

// App owns the process lifecycle: the HTTP server plus the optional Kafka
// scan-request consumer and the optional Redis job queue.
type App struct {
	cfg         *config.Config
	log         *logger.Logger
	handler     xhttp.Handler
	hub         *api.ProgressHub
	publisher   repository.SignalPublisher
	consumer    *pkgkafka.Consumer
	scanHandler pkgkafka.MessageHandler
	jobQueue    *queue.RedisQueue
	chClient    *pkgch.Client

	httpServer *xhttp.Server
}

func New(cfg *config.Config, log *logger.Logger, handler xhttp.Handler,
	hub *api.ProgressHub, publisher repository.SignalPublisher) *App {
	return &App{cfg: cfg, log: log, handler: handler, hub: hub, publisher: publisher}
}

// SetConsumer attaches the scan-request intake. Optional.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.scanHandler = h
}

// SetJobQueue attaches the async optimization worker pool. Optional.
func (a *App) SetJobQueue(q *queue.RedisQueue) { a.jobQueue = q }

// SetClickHouse hands the App the client so shutdown can close it.
func (a *App) SetClickHouse(c *pkgch.Client) { a.chClient = c }

// Run starts everything and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if a.consumer != nil && a.scanHandler != nil {
		a.consumer.RegisterHandler(a.scanHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", logger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", logger.String("topic", a.scanHandler.Topic()))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.log.Error("job queue start error", logger.Error(err))
			return err
		}
		a.jobQueue.StartRetryProcessor()
		a.log.Info("optimization job queue started")
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		return err
	}
	a.log.Info("http server started", logger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
	}

	if a.hub != nil {
		a.hub.Close()
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("job queue stop error", logger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", logger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
