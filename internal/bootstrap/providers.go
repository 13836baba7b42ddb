package bootstrap

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"finsight/internal/adapters/ai"
	chclient "finsight/internal/adapters/clickhouse"
	"finsight/internal/adapters/config"
	errnoop "finsight/internal/adapters/errors/noop"
	"finsight/internal/adapters/errors/sentry"
	"finsight/internal/adapters/finnhub"
	"finsight/internal/adapters/fundflow"
	"finsight/internal/adapters/kafka"
	"finsight/internal/adapters/marketdata/stored"
	"finsight/internal/adapters/marketdata/yahoo"
	pgclient "finsight/internal/adapters/postgres"
	redisclient "finsight/internal/adapters/redis"
	"finsight/internal/adapters/secrets"
	"finsight/internal/agents"
	"finsight/internal/domain/task"
	"finsight/internal/indicators"
	"finsight/internal/metrics"
	"finsight/internal/providers"
	chrepo "finsight/internal/repository/clickhouse"
	pgrepo "finsight/internal/repository/postgres"
	redisrepo "finsight/internal/repository/redis"
	analysissvc "finsight/internal/services/analysis"
	marketdatasvc "finsight/internal/services/market_data"
	newssvc "finsight/internal/services/news"
	"finsight/internal/services/report"
	"finsight/internal/skills"
	"finsight/internal/tasks"
	"finsight/internal/tools"
	"finsight/internal/tools/catalog"
	"finsight/internal/tools/middleware"
	"finsight/internal/tools/shared"
	"finsight/pkg/crypto"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

const connectTimeout = 15 * time.Second

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the data stores that are configured.
// Every store is optional; a missing host leaves the client nil.
func (c *Container) MustInitInfrastructure() {
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	var err error

	if c.Config.Postgres.Enabled() {
		c.Log.Info("Connecting to PostgreSQL...")
		c.PG, err = pgclient.NewClient(ctx, c.Config.Postgres)
		if err != nil {
			c.Log.Fatalf("failed to connect postgres: %v", err)
		}
		c.Log.Info("✓ PostgreSQL connected")
	} else {
		c.Log.Info("PostgreSQL not configured, run records are only logged")
	}

	if c.Config.ClickHouse.Enabled() {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	} else {
		c.Log.Info("ClickHouse not configured, stored klines disabled")
	}

	if c.Config.Redis.Enabled() {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			c.Log.Fatalf("failed to connect redis: %v", err)
		}
		c.Log.Info("✓ Redis connected")
	} else {
		c.Log.Info("Redis not configured, last known good cache disabled")
	}
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories creates repositories for connected stores and their schemas
func (c *Container) MustInitRepositories() {
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	if c.PG != nil {
		runs := pgrepo.NewRunRepository(c.PG.DB())
		if err := runs.EnsureSchema(ctx); err != nil {
			c.Log.Fatalf("failed to prepare run schema: %v", err)
		}
		c.Repos.Runs = runs
	}

	if c.CH != nil {
		klines := chrepo.NewKlineRepository(c.CH.Conn())
		if err := klines.EnsureSchema(ctx); err != nil {
			c.Log.Fatalf("failed to prepare kline schema: %v", err)
		}
		c.Repos.Klines = klines
	}

	if c.Redis != nil {
		c.Repos.QuoteCache = redisrepo.NewMarketCache(c.Redis.Client())
	}

	c.Log.Info("✓ Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters registers every provider and loads the sealed API keys
func (c *Container) MustInitAdapters() {
	var encryptor *crypto.Encryptor
	if c.Config.Crypto.EncryptionKey != "" {
		var err error
		encryptor, err = crypto.NewEncryptor(c.Config.Crypto.EncryptionKey)
		if err != nil {
			c.Log.Fatalf("failed to create encryptor: %v", err)
		}
	} else {
		c.Log.Warn("ENCRYPTION_KEY is empty, analysis providers cannot authenticate")
	}
	c.Adapters.Secrets = secrets.NewStore(encryptor, c.Config.AI.EncryptedKeys)

	c.Adapters.LLMLimiter = ai.NewLimiter(c.Config.AI.ReqPerMinute, c.Config.AI.Burst)
	c.Adapters.Providers = provideProviderRegistry(c.Config, c.Adapters.LLMLimiter, c.Repos, c.Log)

	if c.Config.Kafka.Enabled() {
		c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)
	} else {
		c.Log.Info("Kafka not configured, task events are not published")
	}

	c.Log.Infow("✓ Adapters initialized",
		"analysis", c.Adapters.Providers.ListIDs(providers.KindAnalysis),
		"market_data", c.Adapters.Providers.ListIDs(providers.KindMarketData),
		"news", c.Adapters.Providers.ListIDs(providers.KindNews),
	)
}

// ========================================
// Phase 5: Data Services
// ========================================

// MustInitServices creates the services tools read through
func (c *Container) MustInitServices() {
	c.Services.Snapshots = config.NewEnvSnapshotSource()
	c.Services.MarketData = marketdatasvc.NewService(
		c.Adapters.Providers,
		c.Repos.QuoteCache,
		c.Config.Redis.QuoteTTL,
		c.Log.With("component", "market_data"),
	)
	c.Services.News = newssvc.NewService(c.Adapters.Providers, c.Log.With("component", "news"))
	c.Services.Indicators = indicators.NewEngine(c.Config.Indicators.Backends)

	c.Log.Infow("✓ Services initialized",
		"indicator_backends", c.Services.Indicators.Available(),
		"indicator_absent", c.Services.Indicators.Absent(),
	)
}

// ========================================
// Phase 6: Orchestration Core
// ========================================

// MustInitBusiness wires tools, skills, the orchestrator and task managers
func (c *Container) MustInitBusiness() {
	c.Business.Tools = provideToolRegistry(c.Config, c.Services, c.Adapters.Providers, c.Log)
	c.Business.Router = skills.NewDefaultRouter()

	c.Business.Orchestrator = agents.NewOrchestrator(
		c.Business.Router,
		c.Business.Tools,
		c.Adapters.Providers,
		c.Adapters.Secrets,
		c.Services.Snapshots,
		c.Config.Agent,
	)

	observers := provideTaskObservers(c.Config, c.Adapters.KafkaProducer, c.ErrorTracker)
	c.Business.Reports = tasks.NewManager(task.FamilyReport, c.Config.Tasks, observers...)
	c.Business.Analyses = tasks.NewManager(task.FamilyStockAnalysis, c.Config.Tasks, observers...)
	c.Business.Renderer = report.NewRenderer()

	svc, err := analysissvc.NewService(analysissvc.Deps{
		Runner:    c.Business.Orchestrator,
		Router:    c.Business.Router,
		Providers: c.Adapters.Providers,
		Snapshots: c.Services.Snapshots,
		Reports:   c.Business.Reports,
		Analyses:  c.Business.Analyses,
		Runs:      c.Repos.Runs,
		Renderer:  c.Business.Renderer,
	}, c.Log.With("component", "analysis"))
	if err != nil {
		c.Log.Fatalf("failed to create analysis service: %v", err)
	}
	c.Business.Analysis = svc

	metrics.Init()
	metrics.RegisterCustomCollector(metrics.NewCustomCollector(c.Log, c.pgDB(), c.Business.Reports, c.Business.Analyses))

	c.Log.Infow("✓ Orchestration core initialized",
		"tools", c.Business.Tools.List(),
		"skills", c.Business.Router.IDs(),
	)
}

// ========================================
// Helper Provider Functions
// ========================================

func (c *Container) pgDB() *sqlx.DB {
	if c.PG == nil {
		return nil
	}
	return c.PG.DB()
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.ErrorTracking.Release)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	log.Infow("Initializing Kafka producer...", "brokers", cfg.Kafka.Brokers)
	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	})
	log.Info("✓ Kafka producer initialized")
	return producer
}

// provideProviderRegistry registers every backend under its kind. Optional
// backends whose store is absent are left out of the registry.
func provideProviderRegistry(
	cfg *config.Config,
	limiter *ai.Limiter,
	repos *Repositories,
	log *logger.Logger,
) *providers.Registry {
	registry := providers.NewRegistry()

	openai := ai.NewRateLimited(ai.NewOpenAIAnalyzer(cfg.AI.OpenAIBaseURL, cfg.AI.Timeout), limiter)
	registry.Register(providers.KindAnalysis, ai.ProviderOpenAI, providers.Singleton(openai),
		providers.WithAuth(providers.AuthAPIKey),
		providers.WithModels("gpt-4o-mini", "gpt-4o", "gpt-4.1"),
	)

	gemini := ai.NewRateLimited(ai.NewGeminiAnalyzer(cfg.AI.GeminiBaseURL, cfg.AI.Timeout), limiter)
	registry.Register(providers.KindAnalysis, ai.ProviderGemini, providers.Singleton(gemini),
		providers.WithAuth(providers.AuthAPIKey),
		providers.WithModels("gemini-2.0-flash", "gemini-1.5-pro"),
	)

	registry.Register(providers.KindMarketData, yahoo.ProviderID,
		providers.Singleton(yahoo.NewProvider(cfg.MarketData.Timeout)))
	if repos.Klines != nil {
		registry.Register(providers.KindMarketData, stored.ProviderID,
			providers.Singleton(stored.NewProvider(repos.Klines)))
	}

	news := finnhub.NewClient(finnhub.Config{
		BaseURL: cfg.News.FinnhubBaseURL,
		APIKey:  cfg.News.FinnhubAPIKey,
		Timeout: cfg.News.Timeout,
	})
	registry.Register(providers.KindNews, finnhub.ProviderID, providers.Singleton(news))
	registry.Register(providers.KindSymbolSearch, finnhub.ProviderID, providers.Singleton(news))

	registry.Register(providers.KindFundFlow, fundflow.ProviderID,
		providers.Singleton(fundflow.NewRESTProvider(fundflow.Config{
			BaseURL: cfg.FundFlow.BaseURL,
			APIKey:  cfg.FundFlow.APIKey,
			Timeout: cfg.FundFlow.Timeout,
		})))

	if cfg.News.FinnhubAPIKey == "" {
		log.Warn("FINNHUB_API_KEY is empty, news and symbol search will degrade")
	}
	if cfg.FundFlow.BaseURL == "" {
		log.Warn("FUND_FLOW_BASE_URL is empty, fund flow will degrade")
	}
	return registry
}

func provideToolRegistry(
	cfg *config.Config,
	services *Services,
	registry *providers.Registry,
	log *logger.Logger,
) *tools.Registry {
	toolRegistry := tools.NewRegistry()
	deps := shared.Deps{
		MarketData: services.MarketData,
		Indicators: services.Indicators,
		News:       services.News,
		Providers:  registry,
		Log:        log.With("component", "tools"),
	}
	mw := middleware.Standard(cfg.Agent.MaxRetries(), cfg.Agent.RetryBackoff, cfg.Agent.ToolTimeout)
	if err := catalog.RegisterAll(toolRegistry, deps, mw...); err != nil {
		log.Fatalf("failed to register tools: %v", err)
	}
	return toolRegistry
}

func provideTaskObservers(cfg *config.Config, producer *kafka.Producer, tracker errors.Tracker) []tasks.Option {
	opts := []tasks.Option{tasks.WithObserver(tasks.NewTrackerObserver(tracker))}
	if producer != nil {
		opts = append(opts, tasks.WithObserver(kafka.NewTaskEventPublisher(producer, cfg.Kafka.TaskTopic)))
	}
	return opts
}
