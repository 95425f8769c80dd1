package di

import (
    "context"
    "fmt"
    "strings"
    "time"

    "MarketSweep/internal/domain/repository"
    "MarketSweep/internal/handler/api"
    internalrepo "MarketSweep/internal/repository"
    icache "MarketSweep/internal/service/cache"
    "MarketSweep/internal/service/marketdata"
    "MarketSweep/internal/service/ratelimit"
    "MarketSweep/internal/services/backtest"
    "MarketSweep/internal/services/fetcher"
    "MarketSweep/internal/services/optimizer"
    "MarketSweep/internal/services/scan"
    "MarketSweep/internal/services/setups"
    "MarketSweep/internal/services/universe"
    "MarketSweep/internal/usecase"
    pkgcache "MarketSweep/pkg/cache"
    pkgch "MarketSweep/pkg/clickhouse"
    "MarketSweep/pkg/config"
    pkgkafka "MarketSweep/pkg/kafka"
    "MarketSweep/pkg/logger"
    "MarketSweep/pkg/metrics"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client with the bar schema
// initialized.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, *internalrepo.ClickHouseBarStore, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	store := internalrepo.NewClickHouseBarStore(client, cfg.ClickHouse.BarsTable)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, store.SchemaStatements()); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, store, nil
}

// ProvideBarProvider selects the upstream bar source and optional sink.
func ProvideBarProvider(cfg *config.Config) (repository.BarProvider, repository.BarSink, *pkgch.Client, error) {
	needCH := cfg.Provider.Type == "clickhouse" ||
		(cfg.Provider.PersistBars && cfg.ClickHouse.Host != "")

	var (
		chClient *pkgch.Client
		store    *internalrepo.ClickHouseBarStore
	)
	if needCH {
		var err error
		chClient, store, err = ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	if cfg.Provider.Type == "clickhouse" {
		return store, nil, chClient, nil
	}

	provider := marketdata.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout)
	var sink repository.BarSink
	if cfg.Provider.PersistBars && store != nil {
		sink = store
	}
	return provider, sink, chClient, nil
}

// ProvideBarCache creates the fetch-result cache: in-process TTL map, layered
// over Redis when enabled.
func ProvideBarCache(cfg *config.Config) icache.BytesCache {
	mem := icache.NewTTLCache()
	if !cfg.Cache.Redis.Enabled {
		return mem
	}
	redis := icache.NewRedisCache(icache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	return icache.NewLayeredBytes(mem, redis)
}

// ProvideResultCache creates the cache service backing the result store.
func ProvideResultCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Results.Max)), nil
	}
	host, port := splitAddr(cfg.Cache.Redis.Addr)
	redis, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return pkgcache.NewLayeredCache(redis, pkgcache.WithLayeredMemorySize(cfg.Results.Max)), nil
}

// ProvideFetcher assembles the grouped fetch stage.
func ProvideFetcher(cfg *config.Config, provider repository.BarProvider, sink repository.BarSink,
	c icache.BytesCache, m repository.Metrics, log *logger.Logger) *fetcher.Fetcher {
	return fetcher.New(provider, sink, c, ratelimit.New(), m, log, fetcher.Config{
		BatchSize:       cfg.Provider.BatchSize,
		MaxRetries:      cfg.Provider.MaxRetries,
		RetryBackoff:    cfg.Provider.RetryBackoff,
		MaxRetryBackoff: cfg.Provider.MaxRetryBackoff,
		Concurrency:     cfg.Provider.RequestConcurrency,
		MaxRPS:          cfg.Provider.MaxRPS,
		CacheTTL:        cfg.Cache.TTL,
		MinHistoryBars:  cfg.Scan.MinHistoryBars,
	})
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher wires the signal fan-out, or a no-op when Kafka is
// disabled.
func ProvideSignalPublisher(cfg *config.Config) (repository.SignalPublisher, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.SignalTopic == "" {
		return internalrepo.NopSignalPublisher{}, nil
	}
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalTopic), nil
}

// ProvideKafkaConsumer creates the scan-request consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	return consumer, nil
}

// ProvideScanner assembles the feature pipeline stage.
func ProvideScanner(cfg *config.Config, registry *setups.Registry, m repository.Metrics, log *logger.Logger) *scan.Scanner {
	return scan.New(registry, m, log, cfg.Scan.Concurrency)
}

// ProvideEngine assembles the backtest engine.
func ProvideEngine(cfg *config.Config, m repository.Metrics, log *logger.Logger) *backtest.Engine {
	return backtest.New(m, log, cfg.Backtest.Workers)
}

// ProvideOptimizer assembles the parameter search.
func ProvideOptimizer(cfg *config.Config, log *logger.Logger) *optimizer.Optimizer {
	return optimizer.New(log, cfg.Optimizer.Workers)
}

// ProvideUniverse creates the universe resolver.
func ProvideUniverse(cfg *config.Config, provider repository.BarProvider) *universe.Provider {
	return universe.New(cfg.Universe.Symbols, cfg.Universe.File, provider)
}

// ProvideScanUsecase wires the scan pipeline.
func ProvideScanUsecase(u *universe.Provider, f *fetcher.Fetcher, s *scan.Scanner,
	pub repository.SignalPublisher, log *logger.Logger) *usecase.ScanUsecase {
	return usecase.NewScanUsecase(u, f, s, pub, log)
}

// ProvideEngineHandler builds the HTTP surface.
func ProvideEngineHandler(scanUC *usecase.ScanUsecase, backtestUC *usecase.BacktestUsecase,
	analysisUC *usecase.AnalysisUsecase, optimizeUC *usecase.OptimizeUsecase,
	registry *setups.Registry, hub *api.ProgressHub,
	provider repository.BarProvider, log *logger.Logger) *api.EngineHandler {
	return api.NewEngineHandler(scanUC, backtestUC, analysisUC, optimizeUC,
		registry, hub, provider.Health, log)
}

func splitAddr(addr string) (string, int) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return addr, 6379
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil || port <= 0 {
		port = 6379
	}
	return host, port
}
