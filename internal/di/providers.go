package di

import (
	"context"
	"fmt"
	"time"

	"Wonderland/internal/agent"
	"Wonderland/internal/domain/repository"
	"Wonderland/internal/handler/api"
	"Wonderland/internal/handler/stream"
	"Wonderland/internal/market"
	mid "Wonderland/internal/middleware"
	"Wonderland/internal/portfolio"
	internalrepo "Wonderland/internal/repository"
	"Wonderland/internal/service/cmc"
	"Wonderland/internal/service/holding"
	"Wonderland/internal/service/notify"
	"Wonderland/internal/service/oracle"
	"Wonderland/internal/service/ratelimit"
	"Wonderland/internal/service/swap"
	"Wonderland/internal/usecase"
	"Wonderland/pkg/cache"
	pkgch "Wonderland/pkg/clickhouse"
	"Wonderland/pkg/config"
	xhttp "Wonderland/pkg/http"
	pkgkafka "Wonderland/pkg/kafka"
	applogger "Wonderland/pkg/logger"
	"Wonderland/pkg/metrics"
	"Wonderland/pkg/postgres"
	"Wonderland/pkg/queue"
	"Wonderland/pkg/server"
)

const initTimeout = 10 * time.Second

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideLifetime() *server.Lifetime {
	return server.NewLifetime()
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideJournal creates the ClickHouse journal and its tables.
func ProvideJournal(ch *pkgch.Client, lgr *applogger.Logger) (repository.Journal, error) {
	j := internalrepo.NewCHJournal(ch, lgr)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := j.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return j, nil
}

// ProvidePostgres connects and applies the task/instruct migrations.
func ProvidePostgres(cfg *config.Config, lgr *applogger.Logger) (*postgres.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	db, err := postgres.NewDB(ctx, postgres.Config{DSN: cfg.PostgresDSN(), MaxConns: cfg.Postgres.MaxConns}, lgr)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := db.RunMigrations(ctx, internalrepo.PostgresMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	return db, nil
}

func ProvidePostgresStore(db *postgres.DB) *internalrepo.PostgresStore {
	return internalrepo.NewPostgresStore(db)
}

func ProvideTaskStore(s *internalrepo.PostgresStore) repository.TaskStore { return s }

func ProvideInstructStore(s *internalrepo.PostgresStore) repository.InstructStore { return s }

// ProvideRedisCache connects to Redis; it backs the holdings cache, the
// rebalance lock and the notification queue. It returns nil when Redis is
// disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if cfg.Redis.Disabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCacheService falls back to the in-process cache without Redis.
// Its lock then only excludes rebalances within this process.
func ProvideCacheService(rc *cache.RedisCache, lgr *applogger.Logger) cache.Service {
	if rc == nil {
		lgr.Warn("redis disabled, using in-memory cache")
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(256), cache.WithMemoryCleanup(time.Minute))
	}
	return rc
}

// ProvideQueue returns nil without Redis.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, lgr *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	return queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    cfg.Notify.Workers,
		RetryLimit: cfg.Notify.RetryLimit,
		RetryDelay: cfg.Notify.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
}

// ProvideKafkaProducer returns nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer returns nil when no brokers are configured.
func ProvideKafkaConsumer(cfg *config.Config, lgr *applogger.Logger) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(lgr,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.CommandIDHook))
	return consumer, nil
}

func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

func ProvideEventLog(journal repository.Journal, m repository.Metrics, pub repository.EventPublisher, lgr *applogger.Logger) *mid.EventLogPipeline {
	opts := []mid.PipelineOption{mid.WithBufferSize(1024), mid.WithBatch(50, time.Second)}
	if pub != nil {
		opts = append(opts, mid.WithPublisher(pub))
	}
	return mid.NewEventLogPipeline(journal, m, lgr, opts...)
}

func ProvideBus(sink *mid.EventLogPipeline, m repository.Metrics, lgr *applogger.Logger) *agent.Bus {
	return agent.NewBus(sink, m, lgr)
}

func ProvideTaskRunner(lt *server.Lifetime, store repository.TaskStore, m repository.Metrics, cfg *config.Config, lgr *applogger.Logger) *agent.TaskRunner {
	return agent.NewTaskRunner(lt.Context(), store, m, lgr, cfg.Agent.TaskHistory, agent.RunAsync)
}

func ProvideOracle(cfg *config.Config, lgr *applogger.Logger) repository.Oracle {
	platforms := make(map[string]oracle.Platform, len(cfg.Oracle.Platforms))
	for name, p := range cfg.Oracle.Platforms {
		platforms[name] = oracle.Platform{BaseURL: p.BaseURL, APIKey: p.APIKey, Models: p.Models}
	}
	return oracle.New(oracle.Config{
		Platforms:   platforms,
		Temperature: cfg.Oracle.Temperature,
		Timeout:     cfg.Oracle.Timeout,
	}, lgr)
}

func ProvideThinking(o repository.Oracle, cfg *config.Config, lgr *applogger.Logger) *agent.Thinking {
	return agent.NewThinking(o, cfg.Oracle.TradingPlatform, cfg.Oracle.TradingModel, lgr)
}

func ProvideMarketState(cfg *config.Config) *market.State {
	return market.NewState(cfg.Market.SpotInterval, cfg.Market.Intervals)
}

func ProvideAgent(bus *agent.Bus, tasks *agent.TaskRunner, thinking *agent.Thinking, state *market.State, cfg *config.Config, lgr *applogger.Logger) *agent.Agent {
	kv := agent.NewState()
	kv.Set("market_spot_interval", state.Spot())
	kv.Set("market_intervals", state.Intervals())
	kv.Set("swap_live", cfg.Swap.Live)
	return agent.New(bus, tasks, thinking, kv, cfg.Agent.Heartbeat, lgr)
}

func ProvidePriceFeed(cfg *config.Config, lgr *applogger.Logger) repository.PriceFeed {
	return cmc.New(cmc.Config{
		BaseURL:        cfg.CMC.BaseURL,
		APIKey:         cfg.CMC.APIKey,
		MaxRetries:     cfg.CMC.MaxRetries,
		RetryAfterUnit: cfg.CMC.RetryAfterUnit,
		RequestsPerMin: cfg.CMC.RequestsPerMin,
		Timeout:        cfg.CMC.Timeout,
	}, lgr)
}

// ProvideSwapExecutor returns the live aggregator client only when
// swap.live is set; otherwise trades are logged and not sent.
func ProvideSwapExecutor(cfg *config.Config, lgr *applogger.Logger) repository.SwapExecutor {
	if !cfg.Swap.Live {
		return swap.NewDryRunExecutor(lgr)
	}
	return swap.NewHTTPExecutor(swap.Config{
		BaseURL:       cfg.Swap.BaseURL,
		APIKey:        cfg.Swap.APIKey,
		ChainID:       cfg.Swap.ChainID,
		WalletAddress: cfg.Swap.WalletAddress,
		Slippage:      cfg.Swap.Slippage,
		Timeout:       cfg.Swap.Timeout,
	}, lgr)
}

func trackedTokens(cfg *config.Config) []portfolio.TrackedToken {
	out := make([]portfolio.TrackedToken, 0, len(cfg.Portfolio.Tokens))
	for _, t := range cfg.Portfolio.Tokens {
		out = append(out, portfolio.TrackedToken{CoinType: t.CoinType, Symbol: t.Symbol, Name: t.Name, Decimals: t.Decimals})
	}
	return out
}

func ProvideHoldingProvider(cfg *config.Config, c cache.Service, lgr *applogger.Logger) *holding.Provider {
	return holding.New(holding.Config{
		IndexerURL:    cfg.Holding.IndexerURL,
		PriceURL:      cfg.Holding.PriceURL,
		WalletAddress: cfg.Swap.WalletAddress,
		CacheTTL:      cfg.Holding.CacheTTL,
		Timeout:       cfg.Holding.Timeout,
	}, trackedTokens(cfg), c, lgr)
}

func ProvideHoldingsProvider(p *holding.Provider) repository.HoldingsProvider { return p }

func ProvideRebalancer(cfg *config.Config, swapper repository.SwapExecutor, c cache.Service, m repository.Metrics, lgr *applogger.Logger) *portfolio.Rebalancer {
	guard := portfolio.NewGuard(c, cfg.Portfolio.LockTTL)
	return portfolio.NewRebalancer(portfolio.Config{
		StableCoin: cfg.Portfolio.StableCoinType,
		DeadZone:   cfg.Portfolio.DeadZone,
		Quantum:    cfg.Portfolio.Quantum,
	}, swapper, guard, m, lgr)
}

// ProvideNotifier registers the Telegram job and returns the outbox that
// feeds it. Without a queue insights are not sent.
func ProvideNotifier(cfg *config.Config, q *queue.RedisQueue, journal repository.Journal, lgr *applogger.Logger) repository.Notifier {
	if q == nil {
		return nil
	}
	q.RegisterJob(notify.NewTelegramJob(notify.Config{
		TelegramURL:   cfg.Notify.TelegramURL,
		BotToken:      cfg.Notify.BotToken,
		ChatID:        cfg.Notify.ChatID,
		MaxMessageLen: cfg.Notify.MaxMessageLen,
		Timeout:       15 * time.Second,
	}, journal, lgr))
	return notify.NewOutbox(q)
}

func ProvidePriceUpdater(cfg *config.Config, feed repository.PriceFeed, state *market.State, m repository.Metrics, lgr *applogger.Logger) *usecase.PriceUpdater {
	assets := make([]usecase.PriceAsset, 0, len(cfg.Market.Assets))
	for _, a := range cfg.Market.Assets {
		assets = append(assets, usecase.PriceAsset{Symbol: a.Symbol, FeedID: a.CMCID})
	}
	return usecase.NewPriceUpdater(feed, state, assets, marketPairs(cfg), cfg.Market.FetchConcurrency, m, lgr)
}

func marketPairs(cfg *config.Config) []market.Pair {
	out := make([]market.Pair, 0, len(cfg.Market.Pairs))
	for _, p := range cfg.Market.Pairs {
		out = append(out, market.Pair{Base: p.Base, Quote: p.Quote})
	}
	return out
}

func ProvideInsightGenerator(
	cfg *config.Config,
	state *market.State,
	thinking *agent.Thinking,
	journal repository.Journal,
	instructs repository.InstructStore,
	notifier repository.Notifier,
	lgr *applogger.Logger,
) *usecase.InsightGenerator {
	briefs := make([]usecase.PairBrief, 0, len(cfg.Market.Pairs))
	for _, p := range cfg.Market.Pairs {
		briefs = append(briefs, usecase.PairBrief{Pair: market.Pair{Base: p.Base, Quote: p.Quote}, Description: p.Description})
	}
	return usecase.NewInsightGenerator(state, briefs, thinking, journal, instructs, notifier,
		cfg.Oracle.InsightPlatform, cfg.Oracle.InsightModel, lgr)
}

func ProvideTargetSelector(
	cfg *config.Config,
	holdings repository.HoldingsProvider,
	journal repository.Journal,
	instructs repository.InstructStore,
	thinking *agent.Thinking,
	rebalancer *portfolio.Rebalancer,
	lgr *applogger.Logger,
) *usecase.TargetSelector {
	tokens := make([]usecase.TokenBrief, 0, len(cfg.Portfolio.Tokens))
	for _, t := range cfg.Portfolio.Tokens {
		tokens = append(tokens, usecase.TokenBrief{CoinType: t.CoinType, Symbol: t.Symbol, Name: t.Name, Description: t.Description})
	}
	return usecase.NewTargetSelector(holdings, journal, instructs, thinking, rebalancer, tokens,
		cfg.Oracle.TradingPlatform, cfg.Oracle.TradingModel, lgr)
}

func ProvideHoldingRefresher(holdings repository.HoldingsProvider, journal repository.Journal, lgr *applogger.Logger) *usecase.HoldingRefresher {
	return usecase.NewHoldingRefresher(holdings, journal, lgr)
}

func ProvideManager(
	cfg *config.Config,
	bus *agent.Bus,
	tasks *agent.TaskRunner,
	prices *usecase.PriceUpdater,
	insights *usecase.InsightGenerator,
	selector *usecase.TargetSelector,
	holdings *usecase.HoldingRefresher,
	m repository.Metrics,
	lgr *applogger.Logger,
) *usecase.InvestmentManager {
	stallAfter := time.Duration(cfg.Agent.StallCycles) * cfg.Schedule.RateInterval
	return usecase.NewInvestmentManager(bus, tasks, prices, insights, selector, holdings, m, stallAfter, lgr)
}

func ProvideScheduler(cfg *config.Config, bus *agent.Bus, lgr *applogger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(bus, usecase.ScheduleConfig{
		RateInterval:    cfg.Schedule.RateInterval,
		HoldingInterval: cfg.Schedule.HoldingInterval,
		SkipInitialRun:  cfg.Schedule.SkipInitialRun,
	}, lgr)
}

func ProvideCommandHandler(cfg *config.Config, bus *agent.Bus, lgr *applogger.Logger) pkgkafka.MessageHandler {
	return internalrepo.NewCommandHandler(cfg.Kafka.CommandsTopic, bus, lgr)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.TriggerRPS, cfg.Server.TriggerBurst)
}

func ProvideDashboard(
	lgr *applogger.Logger,
	journal repository.Journal,
	instructs repository.InstructStore,
	ag *agent.Agent,
	manager *usecase.InvestmentManager,
	limiter *ratelimit.Limiter,
) *api.DashboardHandler {
	return api.NewDashboardHandler(lgr, journal, instructs, ag.Tasks, ag.Bus, manager, ag, limiter)
}

func ProvideEventStream(lgr *applogger.Logger) *stream.EventStream {
	return stream.NewEventStream(lgr)
}

func ProvideHTTPServer(cfg *config.Config, lgr *applogger.Logger, dashboard *api.DashboardHandler, events *stream.EventStream) *xhttp.Server {
	return xhttp.NewServer(lgr, []xhttp.Handler{dashboard, events},
		xhttp.WithAddr("0.0.0.0", cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(cfg.Metrics.Path),
	)
}

// producerLogSink adapts the Kafka producer to the log collector.
type producerLogSink struct{ p *pkgkafka.Producer }

func (s producerLogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.p.Publish(ctx, topic, []byte("logs"), payload)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	lifetime *server.Lifetime,
	ag *agent.Agent,
	manager *usecase.InvestmentManager,
	scheduler *usecase.Scheduler,
	eventLog *mid.EventLogPipeline,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	commands pkgkafka.MessageHandler,
	events *stream.EventStream,
	httpServer *xhttp.Server,
	ch *pkgch.Client,
	pg *postgres.DB,
	c cache.Service,
	producer *pkgkafka.Producer,
	journal repository.Journal,
	_ repository.Notifier,
) *server.App {
	if producer != nil && cfg.Log.CollectTopic != "" {
		lgr.AddCollector(&applogger.CollectionConfig{
			TimeInterval: cfg.Log.CollectWindow,
			Topic:        cfg.Log.CollectTopic,
			Publisher:    producerLogSink{p: producer},
		})
	}
	return server.New(cfg, lgr, lifetime, ag, manager, scheduler, eventLog, q, consumer, commands, events, httpServer,
		server.Infra{ClickHouse: ch, Postgres: pg, Cache: c, Producer: producer, Journal: journal})
}
