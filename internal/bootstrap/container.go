package bootstrap

import (
	"context"
	"sync"

	"finsight/internal/adapters/ai"
	chclient "finsight/internal/adapters/clickhouse"
	"finsight/internal/adapters/config"
	"finsight/internal/adapters/kafka"
	pgclient "finsight/internal/adapters/postgres"
	redisclient "finsight/internal/adapters/redis"
	"finsight/internal/adapters/secrets"
	"finsight/internal/agents"
	"finsight/internal/api"
	"finsight/internal/domain/analysis"
	"finsight/internal/domain/market_data"
	"finsight/internal/indicators"
	"finsight/internal/providers"
	chrepo "finsight/internal/repository/clickhouse"
	analysissvc "finsight/internal/services/analysis"
	marketdatasvc "finsight/internal/services/market_data"
	newssvc "finsight/internal/services/news"
	"finsight/internal/services/report"
	"finsight/internal/skills"
	"finsight/internal/tasks"
	"finsight/internal/tools"
	"finsight/internal/workers"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (optional data stores, nil when not configured)
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos      *Repositories
	Adapters   *Adapters
	Services   *Services
	Business   *Business
	Background *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups the stores. Each is nil when its backend is absent.
type Repositories struct {
	Runs       analysis.RunRepository
	Klines     *chrepo.KlineRepository
	QuoteCache market_data.Cache
}

// Adapters groups external integrations
type Adapters struct {
	Providers     *providers.Registry
	Secrets       *secrets.Store
	LLMLimiter    *ai.Limiter
	KafkaProducer *kafka.Producer
}

// Services groups data services used by tools
type Services struct {
	MarketData *marketdatasvc.Service
	News       *newssvc.Service
	Indicators *indicators.Engine
	Snapshots  config.SnapshotSource
}

// Business groups the orchestration core
type Business struct {
	Tools        *tools.Registry
	Router       *skills.Router
	Orchestrator *agents.Orchestrator
	Reports      *tasks.Manager
	Analyses     *tasks.Manager
	Analysis     *analysissvc.Service
	Renderer     *report.Renderer
}

// Background groups long-running processes
type Background struct {
	WorkerScheduler *workers.Scheduler
	HTTPServer      *api.Server
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:      &Repositories{},
		Adapters:   &Adapters{},
		Services:   &Services{},
		Business:   &Business{},
		Background: &Background{},
		Lifecycle:  NewLifecycle(),
		WG:         &sync.WaitGroup{},
		Context:    ctx,
		Cancel:     cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitBusiness()
	c.MustInitBackground()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Background.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel()
		}
	}()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Background.HTTPServer,
		c.Background.WorkerScheduler,
		c.Business.Analysis,
		c.Adapters.KafkaProducer,
		c.PG,
		c.CH,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}

// GetMetrics returns a point-in-time view of task load
func (c *Container) GetMetrics() map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range []*tasks.Manager{c.Business.Reports, c.Business.Analyses} {
		if m == nil {
			continue
		}
		live, total := m.Counts()
		out[m.Family()] = map[string]int{"live": live, "total": total}
	}
	if c.Background.WorkerScheduler != nil {
		out["workers_running"] = c.Background.WorkerScheduler.Running()
	}
	return out
}
