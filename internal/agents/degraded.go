package agents

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"finsight/internal/domain/analysis"
)

// RuleBasedOutput synthesizes an output from gathered inputs without any model.
// Sentiment leans on simple technical votes; confidence never exceeds analysis.LowConfidence.
func RuleBasedOutput(in analysis.Input, warnings []string) analysis.Output {
	score, reasons := technicalVotes(in)

	out := analysis.Output{
		Symbol:        in.Symbol,
		Sentiment:     analysis.SentimentNeutral,
		Source:        analysis.SourceRuleBased,
		ProducedBy:    analysis.SourceRuleBased,
		SchemaVersion: analysis.SchemaVersion,
		KeyLevels:     ruleKeyLevels(in),
		Risks:         []string{"Model analysis unavailable; figures are rule-based and unreviewed"},
		ActionItems:   []string{"Re-run the analysis once an analysis provider is reachable"},
	}
	switch {
	case score >= 2:
		out.Sentiment = analysis.SentimentPositive
	case score <= -2:
		out.Sentiment = analysis.SentimentNegative
	}
	if in.HasEvidence() {
		out.Confidence = math.Min(0.1+0.05*math.Abs(float64(score)), analysis.LowConfidence)
	}
	if len(warnings) > 0 {
		out.Risks = append(out.Risks, fmt.Sprintf("%d data warnings recorded during the run", len(warnings)))
	}
	out.Summary = ruleSummary(in, reasons, warnings)
	return out
}

func technicalVotes(in analysis.Input) (int, []string) {
	score := 0
	var reasons []string
	vote := func(delta int, reason string) {
		score += delta
		reasons = append(reasons, reason)
	}

	if in.Quote != nil && in.Quote.Available {
		switch cp := in.Quote.Quote.ChangePercent; {
		case cp >= 2:
			vote(1, fmt.Sprintf("up %.2f%% on the day", cp))
		case cp <= -2:
			vote(-1, fmt.Sprintf("down %.2f%% on the day", -cp))
		}
	}
	if ind := in.Indicators; ind != nil && ind.Computed() {
		if ind.RSI14 != nil {
			switch rsi := *ind.RSI14; {
			case rsi >= 70:
				vote(-1, fmt.Sprintf("RSI14 %.1f overbought", rsi))
			case rsi <= 30:
				vote(1, fmt.Sprintf("RSI14 %.1f oversold", rsi))
			}
		}
		if ind.MACDHist != nil && *ind.MACDHist != 0 {
			if *ind.MACDHist > 0 {
				vote(1, "MACD histogram positive")
			} else {
				vote(-1, "MACD histogram negative")
			}
		}
		if ind.SMA20 != nil && ind.LastClose != nil {
			if *ind.LastClose > *ind.SMA20 {
				vote(1, "close above SMA20")
			} else if *ind.LastClose < *ind.SMA20 {
				vote(-1, "close below SMA20")
			}
		}
	}
	if in.FundFlow != nil && len(in.FundFlow.Points) > 0 {
		if net := in.FundFlow.NetTotal(); net > 0 {
			vote(1, "net main-fund inflow")
		} else if net < 0 {
			vote(-1, "net main-fund outflow")
		}
	}
	return score, reasons
}

func ruleKeyLevels(in analysis.Input) analysis.KeyLevels {
	levels := analysis.KeyLevels{Support: []float64{}, Resistance: []float64{}}
	if ind := in.Indicators; ind != nil {
		for _, v := range []*float64{ind.BBLower, ind.SMA50} {
			if v != nil && *v > 0 {
				levels.Support = append(levels.Support, *v)
			}
		}
		if ind.BBUpper != nil && *ind.BBUpper > 0 {
			levels.Resistance = append(levels.Resistance, *ind.BBUpper)
		}
	}
	if in.Klines != nil && len(in.Klines.Candles) > 0 {
		high := 0.0
		for _, c := range in.Klines.Candles {
			high = math.Max(high, c.High)
		}
		if high > 0 {
			levels.Resistance = append(levels.Resistance, high)
		}
	}
	sort.Float64s(levels.Support)
	sort.Float64s(levels.Resistance)
	return levels
}

func ruleSummary(in analysis.Input, reasons, warnings []string) string {
	var b strings.Builder
	subject := in.Symbol
	if subject == "" {
		subject = "the market"
	}
	fmt.Fprintf(&b, "Rule-based %s summary for %s (no model response).", in.Skill, subject)

	if in.Quote != nil && in.Quote.Available {
		fmt.Fprintf(&b, " Last price %.2f (%+.2f%%).", in.Quote.Quote.Price, in.Quote.Quote.ChangePercent)
	}
	if len(reasons) > 0 {
		fmt.Fprintf(&b, " Signals: %s.", strings.Join(reasons, "; "))
	}
	if in.News != nil && len(in.News.Items) > 0 {
		fmt.Fprintf(&b, " %d news items, latest: %q.", len(in.News.Items), in.News.Items[0].Title)
	}
	if len(in.Overview) > 0 {
		parts := make([]string, 0, len(in.Overview))
		for _, q := range in.Overview {
			if q.Available {
				parts = append(parts, fmt.Sprintf("%s %+.2f%%", q.Quote.Symbol, q.Quote.ChangePercent))
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, " Indices: %s.", strings.Join(parts, ", "))
		}
	}
	if !in.HasEvidence() {
		b.WriteString(" No market data could be gathered.")
	}
	if len(warnings) > 0 {
		fmt.Fprintf(&b, " Warnings: %s.", strings.Join(warnings, "; "))
	}
	return b.String()
}
