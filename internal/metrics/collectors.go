package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"finsight/pkg/logger"
)

// TaskCounter exposes live and total record counts of a task manager
type TaskCounter interface {
	Family() string
	Counts() (live, total int)
}

// CustomCollector collects gauges that are read on scrape
type CustomCollector struct {
	log      *logger.Logger
	postgres *sqlx.DB
	managers []TaskCounter

	taskRecords *prometheus.Desc
	storedRuns  *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector. postgres may be nil.
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB, managers ...TaskCounter) *CustomCollector {
	return &CustomCollector{
		log:      log,
		postgres: postgres,
		managers: managers,

		taskRecords: prometheus.NewDesc(
			"finsight_task_records",
			"Task records held in memory",
			[]string{"family", "state"}, // state: live|total
			nil,
		),
		storedRuns: prometheus.NewDesc(
			"finsight_stored_runs_24h",
			"Analysis runs persisted in the last 24h",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.taskRecords
	ch <- c.storedRuns
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectTaskRecords(ch)
	c.collectStoredRuns(ctx, ch)
}

func (c *CustomCollector) collectTaskRecords(ch chan<- prometheus.Metric) {
	for _, m := range c.managers {
		live, total := m.Counts()
		ch <- prometheus.MustNewConstMetric(c.taskRecords, prometheus.GaugeValue, float64(live), m.Family(), "live")
		ch <- prometheus.MustNewConstMetric(c.taskRecords, prometheus.GaugeValue, float64(total), m.Family(), "total")
	}
}

func (c *CustomCollector) collectStoredRuns(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.postgres == nil {
		return
	}

	var count int
	err := c.postgres.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM analysis_runs WHERE finished_at > NOW() - INTERVAL '24 hours'")
	if err != nil {
		c.log.Errorw("Failed to collect stored runs", "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.storedRuns, prometheus.GaugeValue, float64(count))
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
