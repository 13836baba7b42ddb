package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/agents"
	"finsight/internal/domain/analysis"
	"finsight/internal/domain/fundflow"
	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
	"finsight/internal/domain/news"
	"finsight/internal/skills"
)

func f(v float64) *float64 { return &v }

func stockResult() *agents.Result {
	published := time.Now().Add(-2 * time.Hour)
	return &agents.Result{
		Skill:   skills.StockAnalysis,
		Request: analysis.Request{Symbol: "aapl"},
		Input: analysis.Input{
			Symbol: "AAPL",
			Quote: &market_data.QuoteResult{
				Quote:     market_data.Quote{Symbol: "AAPL", Price: 1890.5, ChangePercent: 1.25, Volume: 52_000_000, Currency: "USD"},
				Source:    "yahoo",
				Available: true,
			},
			Indicators: &indicator.Result{RSI14: f(61.2), SMA20: f(185.4), Source: "talib/computed"},
			News: &news.SearchResult{Items: []news.Item{
				{Title: "Apple *beats* estimates", Source: "Reuters", URL: "https://example.com/a", PublishedAt: published},
			}},
			FundFlow: &fundflow.Series{
				Source: "rest",
				Points: []fundflow.Point{{MainNetIn: 100}, {MainNetIn: 250}},
			},
			Provenance: map[string]string{"get_quote": "yahoo", "search_news": "finnhub"},
		},
		Output: analysis.Output{
			Summary:     "Momentum is constructive.",
			Sentiment:   analysis.SentimentPositive,
			Confidence:  0.72,
			KeyLevels:   analysis.KeyLevels{Support: []float64{180}, Resistance: []float64{195}},
			Risks:       []string{"Earnings volatility"},
			ActionItems: []string{"Watch 195 breakout"},
			Source:      analysis.SourceModel,
			ProducedBy:  "openai/gpt-4o-mini",
		},
		States:     []agents.State{agents.StateInit, agents.StateDone},
		Warnings:   []string{"get_fund_flow: slow"},
		FinishedAt: time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC),
	}
}

func TestRender_StockAnalysis(t *testing.T) {
	out, err := NewRenderer().Render(stockResult())
	require.NoError(t, err)

	for _, want := range []string{
		"# AAPL analysis",
		"2024-05-01 14:30 UTC",
		"| POSITIVE | 72% | model (openai/gpt-4o-mini) |",
		"1,890.5 USD",
		"+1.25%",
		"52.0M",
		"- Resistance: 195",
		"- Support: 180",
		"_Backend: talib/computed_",
		"| RSI(14) | 61.2 |",
		"Main net inflow over 2 sessions: 350",
		`[Apple \*beats\* estimates](https://example.com/a)`,
		"2 hours ago",
		"- Earnings volatility",
		"- `get_fund_flow: slow`",
		"get_quote=yahoo, search_news=finnhub",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "rule-based fallback")
}

func TestRender_MarketReportDegraded(t *testing.T) {
	res := &agents.Result{
		Skill:   skills.MarketReport,
		Request: analysis.Request{Title: "Daily wrap"},
		Input: analysis.Input{
			Overview: []market_data.QuoteResult{
				{Quote: market_data.Quote{Symbol: "^GSPC", Price: 5200, ChangePercent: -0.4}, Source: "yahoo", Available: true},
				{Quote: market_data.Quote{Symbol: "^DJI"}, Source: market_data.SourceUnavailable},
			},
		},
		Output: analysis.Output{
			Summary:   "Rule-based view.",
			Sentiment: analysis.SentimentNeutral,
			Source:    analysis.SourceRuleBased,
		},
		States:   []agents.State{agents.StateInit, agents.StateDegradedDone},
		Warnings: []string{"model_call_failed: timeout"},
	}

	out, err := NewRenderer().Render(res)
	require.NoError(t, err)
	assert.Contains(t, out, "# Daily wrap")
	assert.Contains(t, out, "rule-based fallback")
	assert.Contains(t, out, `| ^GSPC | 5,200 | -0.40% | yahoo |`)
	assert.NotContains(t, out, "^DJI")
	assert.Contains(t, out, "**NEUTRAL**")
}

func TestRender_NilResult(t *testing.T) {
	_, err := NewRenderer().Render(nil)
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Custom", Title(analysis.Request{Title: " Custom "}, skills.StockAnalysis))
	assert.Equal(t, "Market report", Title(analysis.Request{}, skills.MarketReport))
	assert.Equal(t, "Market report: NVDA", Title(analysis.Request{Symbol: "NVDA"}, skills.MarketReport))
	assert.Equal(t, "MSFT analysis", Title(analysis.Request{Symbol: "msft"}, skills.TechnicalScan))
	assert.Equal(t, "Analysis", Title(analysis.Request{}, skills.NewsDigest))
}
