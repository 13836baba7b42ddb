package agents

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/domain/analysis"
	"finsight/internal/domain/fundflow"
	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
)

func randPtr(r *rand.Rand, scale float64) *float64 {
	if r.Intn(4) == 0 {
		return nil
	}
	v := (r.Float64()*2 - 1) * scale
	return &v
}

func TestRuleBasedOutput_AlwaysWellFormed(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		in := analysis.Input{Symbol: "AAPL", Skill: "stock_analysis"}
		if r.Intn(2) == 0 {
			in.Quote = &market_data.QuoteResult{
				Quote:     market_data.Quote{Price: r.Float64() * 500, ChangePercent: (r.Float64()*2 - 1) * 10},
				Available: r.Intn(3) > 0,
			}
		}
		if r.Intn(2) == 0 {
			in.Indicators = &indicator.Result{
				RSI14:     randPtr(r, 100),
				MACDHist:  randPtr(r, 5),
				SMA20:     randPtr(r, 300),
				SMA50:     randPtr(r, 300),
				BBUpper:   randPtr(r, 300),
				BBLower:   randPtr(r, 300),
				LastClose: randPtr(r, 300),
				Source:    indicator.SourceTag(indicator.BackendBuiltin, indicator.StatusComputed),
			}
		}
		if r.Intn(2) == 0 {
			in.FundFlow = &fundflow.Series{Points: []fundflow.Point{{MainNetIn: (r.Float64()*2 - 1) * 1e6}}}
		}

		out := RuleBasedOutput(in, []string{"get_quote: timeout"})
		require.True(t, out.Sentiment.Valid())
		assert.False(t, math.IsNaN(out.Confidence))
		assert.GreaterOrEqual(t, out.Confidence, 0.0)
		assert.LessOrEqual(t, out.Confidence, analysis.LowConfidence)
		assert.Equal(t, analysis.SourceRuleBased, out.Source)
		assert.NotEmpty(t, out.Summary)
		assert.NotNil(t, out.KeyLevels.Support)
		assert.NotNil(t, out.KeyLevels.Resistance)
	}
}

func TestRuleBasedOutput_NoEvidenceIsNeutralZero(t *testing.T) {
	out := RuleBasedOutput(analysis.Input{Skill: "market_report"}, nil)
	assert.Equal(t, analysis.SentimentNeutral, out.Sentiment)
	assert.Zero(t, out.Confidence)
	assert.Contains(t, out.Summary, "No market data")
}

func TestRuleBasedOutput_TechnicalVotes(t *testing.T) {
	rsi, hist, sma, last := 25.0, 0.8, 100.0, 104.0
	in := analysis.Input{
		Symbol: "AAPL",
		Indicators: &indicator.Result{
			RSI14: &rsi, MACDHist: &hist, SMA20: &sma, LastClose: &last,
			Source: indicator.SourceTag(indicator.BackendTalib, indicator.StatusComputed),
		},
	}
	out := RuleBasedOutput(in, nil)
	assert.Equal(t, analysis.SentimentPositive, out.Sentiment)
	assert.Contains(t, out.Summary, "oversold")
	assert.Greater(t, out.Confidence, 0.0)
}
