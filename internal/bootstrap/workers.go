package bootstrap

import (
	"finsight/internal/adapters/config"
	"finsight/internal/adapters/marketdata/yahoo"
	"finsight/internal/api"
	"finsight/internal/api/health"
	"finsight/internal/domain/market_data"
	analysissvc "finsight/internal/services/analysis"
	"finsight/internal/workers"
	"finsight/internal/workers/analysis"
	"finsight/internal/workers/marketdata"
	"finsight/pkg/logger"
)

// ========================================
// Phase 7: Background Processing
// ========================================

// MustInitBackground creates the worker scheduler and the metrics endpoint
func (c *Container) MustInitBackground() {
	var archiveSource market_data.Provider
	var archiveSink marketdata.KlineWriter
	if c.Repos.Klines != nil {
		source, err := c.Adapters.Providers.ResolveMarketData(yahoo.ProviderID)
		if err != nil {
			c.Log.Fatalf("failed to resolve archive source: %v", err)
		}
		archiveSource = source
		archiveSink = c.Repos.Klines
	}

	c.Background.WorkerScheduler = provideWorkers(
		c.Business.Analysis,
		archiveSource,
		archiveSink,
		c.Services.Snapshots,
		c.Config,
		c.Log,
	)
	c.Background.HTTPServer = c.provideHTTPServer()

	c.Log.Info("✓ Background processing initialized")
}

// provideWorkers initializes all background workers
func provideWorkers(
	analysisService *analysissvc.Service,
	archiveSource market_data.Provider,
	archiveSink marketdata.KlineWriter,
	snapshots config.SnapshotSource,
	cfg *config.Config,
	log *logger.Logger,
) *workers.Scheduler {
	log.Info("Initializing workers...")

	scheduler := workers.NewScheduler(cfg.Tasks.ShutdownWait)

	pool := []workers.Worker{analysis.NewListener(analysisService, snapshots, cfg.Listener.Interval)}
	if archiveSource != nil && archiveSink != nil {
		pool = append(pool, marketdata.NewKlineArchiver(
			archiveSource,
			archiveSink,
			snapshots,
			cfg.Listener.ArchiveInterval,
			cfg.Listener.ArchiveDays,
			true,
		))
	} else {
		log.Info("Kline archiver disabled, no kline store configured")
	}

	for _, w := range pool {
		if err := scheduler.Add(w); err != nil {
			log.Fatalf("failed to register worker %s: %v", w.Name(), err)
		}
	}

	log.Infow("✓ Workers initialized", "count", len(pool))
	return scheduler
}

// provideHTTPServer builds the probe and metrics endpoint over the stores that are connected
func (c *Container) provideHTTPServer() *api.Server {
	h := health.New(c.Log.With("component", "health"), c.Config.App.Name, c.Config.ErrorTracking.Release)
	if c.PG != nil {
		h.Register("postgres", c.PG)
	}
	if c.CH != nil {
		h.Register("clickhouse", c.CH)
	}
	if c.Redis != nil {
		h.Register("redis", c.Redis)
	}

	return api.NewServer(api.ServerConfig{
		Addr:        c.Config.App.MetricsAddr,
		ServiceName: c.Config.App.Name,
		Version:     c.Config.ErrorTracking.Release,
	}, h, c.Log.With("component", "http"))
}
