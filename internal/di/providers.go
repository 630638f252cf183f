package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"MarketState/internal/domain/repository"
	domsvc "MarketState/internal/domain/service"
	"MarketState/internal/handler/api"
	mid "MarketState/internal/middleware"
	internalrepo "MarketState/internal/repository"
	"MarketState/internal/service/finnhub"
	"MarketState/internal/service/ratelimit"
	"MarketState/internal/service/yahoo"
	"MarketState/internal/services/analytics"
	"MarketState/internal/services/engine"
	"MarketState/internal/usecase"
	"MarketState/pkg/cache"
	pkgch "MarketState/pkg/clickhouse"
	"MarketState/pkg/config"
	xhttp "MarketState/pkg/http"
	pkgkafka "MarketState/pkg/kafka"
	applogger "MarketState/pkg/logger"
	"MarketState/pkg/metrics"
	"MarketState/pkg/server"
)

// limiterIdleTTL is how long an idle client keeps its rate limit bucket.
const limiterIdleTTL = 10 * time.Minute

// ProvideRegistry creates the private Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the root logger. With logging.collect enabled and a
// producer available, error entries are also shipped as a Kafka digest.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Collect.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collect.Interval,
			CountThreshold: cfg.Logging.Collect.Threshold,
			Topic:          cfg.Logging.Collect.DigestTopic,
			Publisher:      internalrepo.NewDigestPublisher(producer),
		})
	}
	return l, nil
}

// ProvideCache returns Redis fronted by an in-process layer when Redis is
// enabled, otherwise a memory cache.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryCleanup(time.Minute)), nil
	}
	remote, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(remote,
		cache.WithLayeredMemorySize(cfg.Redis.L1Size),
		cache.WithLayeredMemoryTTL(cfg.Redis.L1TTL),
	), nil
}

// ProvideClickHouseClient creates a ClickHouse client when storage.driver is
// clickhouse, and nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Storage.Driver != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + db}, internalrepo.AnalysisSchema(db+".analyses")...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideAnalysisStore picks the analysis journal backend.
func ProvideAnalysisStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) repository.AnalysisStore {
	if ch != nil {
		s := internalrepo.NewCHAnalysisStore(ch, cfg.ClickHouse.Database+".analyses")
		s.SetLogger(l)
		return s
	}
	return internalrepo.NewFileAnalysisStore(cfg.Storage.FilePath, l)
}

func ProvideSettingsStore(c cache.Service) repository.SettingsStore {
	return internalrepo.NewCacheSettingsStore(c)
}

func ProvideMACDStore(c cache.Service) repository.MACDStateStore {
	return internalrepo.NewCacheMACDStateStore(c)
}

// ProvideOracle selects the prediction oracle and wraps it with neutral fallbacks.
func ProvideOracle(cfg *config.Config, m repository.Metrics, l *applogger.Logger) domsvc.PredictionOracle {
	var next domsvc.PredictionOracle
	switch cfg.Oracle.Mode {
	case "http":
		next = analytics.NewHTTPOracle(cfg.Oracle.URL, cfg.Oracle.Path, cfg.Oracle.Timeout, cfg.Oracle.Retries)
	case "exec":
		next = analytics.NewExecOracle(cfg.Oracle.Command, cfg.Oracle.Timeout)
	default:
		next = analytics.NewRuleOracle()
	}
	return analytics.NewFallbackOracle(next, cfg.Oracle.Mode, cfg.Oracle.Timeout, m, l)
}

func ProvideEngine(cfg *config.Config, oracle domsvc.PredictionOracle, macd repository.MACDStateStore, m repository.Metrics, l *applogger.Logger) *engine.Engine {
	opts := []engine.Option{engine.WithMetrics(m), engine.WithLogger(l)}
	if cfg.Engine.MACDMode == "incremental" {
		opts = append(opts, engine.WithIncrementalMACD(macd))
	}
	return engine.New(oracle, opts...)
}

func ProvideMarketData(cfg *config.Config, c cache.Service, l *applogger.Logger) repository.MarketData {
	return yahoo.New(
		cfg.MarketData.BaseURL,
		cfg.MarketData.Range,
		cfg.MarketData.UserAgent,
		cfg.MarketData.Timeout,
		yahoo.WithCache(c, cfg.MarketData.CacheTTL),
		yahoo.WithLogger(l),
	)
}

func ProvideNewsSource(cfg *config.Config, l *applogger.Logger) repository.NewsSource {
	return finnhub.New(cfg.News.FinnhubURL, cfg.News.APIKey, cfg.News.MaxEvents, cfg.News.Timeout, l)
}

func ProvideReasoner(cfg *config.Config, l *applogger.Logger) domsvc.Reasoner {
	return analytics.NewOllamaReasoner(cfg.Reasoner.URL, cfg.Reasoner.DefaultModel, cfg.Reasoner.Timeout, l)
}

func ProvideStateStream(l *applogger.Logger) *api.StateStreamHandler {
	return api.NewStateStreamHandler(l.With(applogger.String("component", "state_stream")))
}

// ProvideEventPublisher fans completed analyses out to the websocket stream
// and, when Kafka is enabled, to the analysis topic.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer, stream *api.StateStreamHandler) repository.EventPublisher {
	pubs := internalrepo.FanoutPublisher{stream}
	if producer != nil {
		pubs = append(pubs, internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.AnalysisTopic))
	}
	return pubs
}

func ProvideAnalyzeUsecase(
	cfg *config.Config,
	market repository.MarketData,
	news repository.NewsSource,
	eng *engine.Engine,
	reasoner domsvc.Reasoner,
	store repository.AnalysisStore,
	settings repository.SettingsStore,
	publisher repository.EventPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.AnalyzeUsecase {
	var higher repository.Interval
	if cfg.MarketData.HigherInterval != "" {
		higher = repository.NormalizeInterval(cfg.MarketData.HigherInterval)
	}
	return usecase.NewAnalyzeUsecase(usecase.AnalyzeConfig{
		Primary:      repository.NormalizeInterval(cfg.MarketData.PrimaryInterval),
		Higher:       higher,
		DefaultModel: cfg.Reasoner.DefaultModel,
		CandleLimit:  cfg.Engine.CandleLimit,
	}, market, news, eng, reasoner, store, settings, publisher, m, l)
}

func ProvideAnalysesUsecase(store repository.AnalysisStore) *usecase.AnalysesUsecase {
	return usecase.NewAnalysesUsecase(store)
}

func ProvideSettingsUsecase(store repository.SettingsStore) *usecase.SettingsUsecase {
	return usecase.NewSettingsUsecase(store)
}

func ProvideChatUsecase(cfg *config.Config, reasoner domsvc.Reasoner) *usecase.ChatUsecase {
	return usecase.NewChatUsecase(reasoner, cfg.Reasoner.DefaultModel)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, limiterIdleTTL)
}

// ProvideHTTPHandler assembles every route set. Only POST /api/analyze is rate limited.
func ProvideHTTPHandler(
	l *applogger.Logger,
	limiter *ratelimit.Limiter,
	analyze *usecase.AnalyzeUsecase,
	analyses *usecase.AnalysesUsecase,
	settings *usecase.SettingsUsecase,
	chat *usecase.ChatUsecase,
	stream *api.StateStreamHandler,
) xhttp.Handler {
	hl := l.With(applogger.String("component", "http"))
	return api.Routes{
		api.NewAnalysisEchoHandler(hl, analyze, analyses, settings, chat, mid.RateLimit(limiter, hl)),
		stream,
	}
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, reg *prometheus.Registry, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideKafkaConsumer creates the analyze request consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	kl := l.With(applogger.String("component", "kafka_consumer"))
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerRegisterer(reg),
		pkgkafka.WithConsumerLogger(kl),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.TracingHook(kl))
	return consumer, nil
}

func ProvideKafkaAnalyzeHandler(cfg *config.Config, analyze *usecase.AnalyzeUsecase, m repository.Metrics, l *applogger.Logger) *usecase.KafkaAnalyzeHandler {
	return usecase.NewKafkaAnalyzeHandler(cfg.Kafka.RequestTopic, analyze, m, l)
}

// ProvideApp creates the application server. The publisher owns the Kafka
// producer, so it is closed first.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaAnalyzeHandler,
	publisher repository.EventPublisher,
	store repository.AnalysisStore,
	c cache.Service,
	ch *pkgch.Client,
) *server.App {
	closers := []io.Closer{publisher, store}
	if cc, ok := c.(io.Closer); ok {
		closers = append(closers, cc)
	}
	if ch != nil {
		closers = append(closers, ch)
	}
	if consumer == nil {
		return server.New(cfg, l, httpServer, nil, nil, closers...)
	}
	return server.New(cfg, l, httpServer, consumer, kh, closers...)
}
