//go:build !wireinject
// +build !wireinject

package di

import (
	"github.com/redis/go-redis/v9"

	internalrepo "MarketSweep/internal/repository"
	"MarketSweep/internal/handler/api"
	"MarketSweep/internal/services/analytics"
	"MarketSweep/internal/services/setups"
	"MarketSweep/internal/usecase"
	"MarketSweep/pkg/config"
	"MarketSweep/pkg/queue"
	"MarketSweep/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	log, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	m := ProvideMetrics()

	provider, sink, chClient, err := ProvideBarProvider(cfg)
	if err != nil {
		return nil, err
	}

	barCache := ProvideBarCache(cfg)
	f := ProvideFetcher(cfg, provider, sink, barCache, m, log)

	resultCache, err := ProvideResultCache(cfg)
	if err != nil {
		return nil, err
	}
	resultStore := internalrepo.NewCacheResultStore(resultCache, cfg.Results.TTL)

	registry := setups.NewRegistry()
	scanner := ProvideScanner(cfg, registry, m, log)
	engine := ProvideEngine(cfg, m, log)
	opt := ProvideOptimizer(cfg, log)
	validator := analytics.NewValidator(analytics.ValidatorConfig{
		ReturnDecayWeight:  cfg.Validation.ReturnDecayWeight,
		SharpeDecayWeight:  cfg.Validation.SharpeDecayWeight,
		WinRateDecayWeight: cfg.Validation.WinRateDecayWeight,
		DrawdownWeight:     cfg.Validation.DrawdownWeight,
		SharpeDecayConcern: cfg.Validation.SharpeDecayConcern,
		ReturnDecayConcern: cfg.Validation.ReturnDecayConcern,
	})

	publisher, err := ProvideSignalPublisher(cfg)
	if err != nil {
		return nil, err
	}

	uni := ProvideUniverse(cfg, provider)
	hub := api.NewProgressHub(log)

	scanUC := ProvideScanUsecase(uni, f, scanner, publisher, log)
	backtestUC := usecase.NewBacktestUsecase(scanUC, f, engine, resultStore, log)
	analysisUC := usecase.NewAnalysisUsecase(resultStore, validator, m)
	optimizeUC := usecase.NewOptimizeUsecase(scanUC, scanner, engine, opt, hub, log)

	handler := ProvideEngineHandler(scanUC, backtestUC, analysisUC, optimizeUC, registry, hub, provider, log)

	app := server.New(cfg, log, handler, hub, publisher)
	app.SetClickHouse(chClient)

	if cfg.Kafka.Enabled && cfg.Kafka.RequestTopic != "" {
		consumer, err := ProvideKafkaConsumer(cfg)
		if err != nil {
			return nil, err
		}
		app.SetConsumer(consumer, usecase.NewKafkaScanHandler(cfg.Kafka.RequestTopic, scanUC, log))
	}

	if cfg.Optimizer.Queue.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		jobQueue := queue.NewRedisConsumer(log,
			&queue.QueueConfig{Workers: cfg.Optimizer.Queue.Workers},
			client,
			[]queue.Job{usecase.NewOptimizeJob(optimizeUC, log)},
		)
		optimizeUC.SetQueue(jobQueue)
		app.SetJobQueue(jobQueue)
	}

	return app, nil
}
