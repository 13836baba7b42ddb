package skills

import (
	"finsight/internal/domain/analysis"
	"finsight/internal/domain/fundflow"
	"finsight/internal/domain/market_data"
	"finsight/internal/domain/news"
	"finsight/internal/domain/symbol"
	"finsight/internal/tools"
	"finsight/internal/tools/indicators"
)

// MergeResults places a tool's typed payload on the matching Input field.
// Degraded results only contribute provenance; their warnings are tracked by the run.
func MergeResults(in *analysis.Input, res tools.Result) {
	if in.Provenance == nil {
		in.Provenance = make(map[string]string)
	}
	in.Provenance[res.Tool] = res.Source

	switch data := res.Data.(type) {
	case market_data.QuoteResult:
		if res.Tool == tools.GetQuote {
			in.Quote = &data
		}
	case market_data.KlineResult:
		in.Klines = &data
	case market_data.CurveResult:
		in.Curve = &data
	case indicators.Output:
		in.Indicators = &data.Indicators
	case news.SearchResult:
		in.News = &data
	case fundflow.Series:
		in.FundFlow = &data
	case []market_data.QuoteResult:
		in.Overview = data
	case []symbol.Match:
		in.Symbols = data
	}
}
