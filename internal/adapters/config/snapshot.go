package config

import (
	"context"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"finsight/pkg/errors"
)

// Runtime holds the settings an analysis run reads at its start.
// It is re-read for every run so edits take effect without a restart.
type Runtime struct {
	AnalysisProviders       []string `envconfig:"ANALYSIS_PROVIDERS" default:"openai,gemini"`
	DefaultAnalysisProvider string   `envconfig:"DEFAULT_ANALYSIS_PROVIDER" default:"openai"`
	DefaultAnalysisModel    string   `envconfig:"DEFAULT_ANALYSIS_MODEL" default:"gpt-4o-mini"`
	MarketDataProviders     []string `envconfig:"MARKET_DATA_PROVIDERS" default:"yahoo"`
	NewsProvider            string   `envconfig:"NEWS_PROVIDER" default:"finnhub"`
	FundFlowProvider        string   `envconfig:"FUND_FLOW_PROVIDER" default:"rest"`
	SymbolSearchProvider    string   `envconfig:"SYMBOL_SEARCH_PROVIDER" default:"finnhub"`
	DefaultSkill            string   `envconfig:"DEFAULT_SKILL" default:"stock_analysis"`
	EvidenceRequired        bool     `envconfig:"EVIDENCE_REQUIRED" default:"false"`
	// Watchlist entries look like "AAPL=Apple Inc|Apple"
	Watchlist             []string `envconfig:"WATCHLIST"`
	MarketOverviewSymbols []string `envconfig:"MARKET_OVERVIEW_SYMBOLS" default:"^GSPC,^IXIC,^DJI"`
	NewsLookbackDays      int      `envconfig:"NEWS_LOOKBACK_DAYS" default:"7"`
	NewsLimit             int      `envconfig:"NEWS_LIMIT" default:"20"`
	ListenerEnabled       bool     `envconfig:"LISTENER_ENABLED" default:"false"`
}

// WatchlistEntry is a monitored ticker with the names news may use for it
type WatchlistEntry struct {
	Ticker  string
	Aliases []string
}

// Snapshot is an immutable view of Runtime with parsed helpers
type Snapshot struct {
	Runtime
	watchlist []WatchlistEntry
}

// NewSnapshot parses a Runtime into a Snapshot
func NewSnapshot(rt Runtime) Snapshot {
	return Snapshot{Runtime: rt, watchlist: parseWatchlist(rt.Watchlist)}
}

// WatchlistEntries returns the parsed watchlist
func (s Snapshot) WatchlistEntries() []WatchlistEntry {
	out := make([]WatchlistEntry, len(s.watchlist))
	copy(out, s.watchlist)
	return out
}

// Aliases returns configured names for a ticker (case-insensitive lookup)
func (s Snapshot) Aliases(ticker string) []string {
	for _, e := range s.watchlist {
		if strings.EqualFold(e.Ticker, ticker) {
			return append([]string(nil), e.Aliases...)
		}
	}
	return nil
}

// AnalysisEnabled reports whether an analysis provider id is enabled
func (s Snapshot) AnalysisEnabled(id string) bool {
	for _, p := range s.AnalysisProviders {
		if strings.EqualFold(strings.TrimSpace(p), id) {
			return true
		}
	}
	return false
}

func parseWatchlist(raw []string) []WatchlistEntry {
	entries := make([]WatchlistEntry, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		ticker, names, _ := strings.Cut(item, "=")
		entry := WatchlistEntry{Ticker: strings.TrimSpace(ticker)}
		for _, alias := range strings.Split(names, "|") {
			if alias = strings.TrimSpace(alias); alias != "" {
				entry.Aliases = append(entry.Aliases, alias)
			}
		}
		if entry.Ticker != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// SnapshotSource yields a fresh runtime snapshot
type SnapshotSource interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// EnvSnapshotSource reads the runtime section from the environment on every call
type EnvSnapshotSource struct{}

// NewEnvSnapshotSource creates an environment-backed source
func NewEnvSnapshotSource() *EnvSnapshotSource {
	return &EnvSnapshotSource{}
}

// Snapshot implements SnapshotSource
func (EnvSnapshotSource) Snapshot(_ context.Context) (Snapshot, error) {
	var rt Runtime
	if err := envconfig.Process("", &rt); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to process runtime config")
	}
	return NewSnapshot(rt), nil
}

// StaticSnapshotSource always returns the same snapshot
type StaticSnapshotSource struct {
	snap Snapshot
}

// NewStaticSnapshotSource wraps a fixed Runtime
func NewStaticSnapshotSource(rt Runtime) *StaticSnapshotSource {
	return &StaticSnapshotSource{snap: NewSnapshot(rt)}
}

// Snapshot implements SnapshotSource
func (s *StaticSnapshotSource) Snapshot(_ context.Context) (Snapshot, error) {
	return s.snap, nil
}

// DefaultRuntime returns the built-in defaults, used when a snapshot cannot be read
func DefaultRuntime() Runtime {
	return Runtime{
		AnalysisProviders:       []string{"openai", "gemini"},
		DefaultAnalysisProvider: "openai",
		DefaultAnalysisModel:    "gpt-4o-mini",
		MarketDataProviders:     []string{"yahoo"},
		NewsProvider:            "finnhub",
		FundFlowProvider:        "rest",
		SymbolSearchProvider:    "finnhub",
		DefaultSkill:            "stock_analysis",
		MarketOverviewSymbols:   []string{"^GSPC", "^IXIC", "^DJI"},
		NewsLookbackDays:        7,
		NewsLimit:               20,
	}
}
