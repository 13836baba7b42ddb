package skills

import (
	"strings"

	"finsight/internal/domain/analysis"
	"finsight/internal/tools"
)

// legacyModes maps the older "mode" vocabulary onto skill ids
var legacyModes = map[string]ID{
	"stock":     StockAnalysis,
	"technical": TechnicalScan,
	"quick":     TechnicalScan,
	"news":      NewsDigest,
	"report":    MarketReport,
	"market":    MarketReport,
	"daily":     MarketReport,
}

func symbolArgs(req analysis.Request) map[string]interface{} {
	return map[string]interface{}{"symbol": req.Symbol}
}

func klineArgs(req analysis.Request) map[string]interface{} {
	return map[string]interface{}{"symbol": req.Symbol, "interval": "1d", "days": 120, "limit": 60}
}

func newsArgs(req analysis.Request) map[string]interface{} {
	args := map[string]interface{}{"symbol": req.Symbol, "query": req.Query}
	if req.NewsDays > 0 {
		args["days"] = req.NewsDays
	}
	if req.NewsLimit > 0 {
		args["limit"] = req.NewsLimit
	}
	return args
}

func hasSymbol(req analysis.Request) bool { return strings.TrimSpace(req.Symbol) != "" }

func nameOnly(req analysis.Request) bool {
	return !hasSymbol(req) && strings.TrimSpace(req.Query) != ""
}

// Builtin returns the skills shipped with the service
func Builtin() []Skill {
	return []Skill{
		{
			ID:             StockAnalysis,
			Description:    "Full single-stock analysis: price, technicals, news and capital flow",
			RequiresSymbol: true,
			Steps: []Step{
				{Tool: tools.GetQuote, Args: symbolArgs},
				{Tool: tools.GetKline, Args: klineArgs},
				{Tool: tools.ComputeIndicators, Args: symbolArgs},
				{Tool: tools.SearchNews, Args: newsArgs},
				{Tool: tools.GetFundFlow, Args: symbolArgs},
			},
			Instructions: "Weigh price action, technical indicators, recent news and capital flow. " +
				"Cite the indicator values you rely on and name key support and resistance levels.",
		},
		{
			ID:             TechnicalScan,
			Description:    "Quick technical read from price history and indicators",
			RequiresSymbol: true,
			Steps: []Step{
				{Tool: tools.GetQuote, Args: symbolArgs},
				{Tool: tools.ComputeIndicators, Args: symbolArgs},
				{Tool: tools.GetIntradayCurve, Args: symbolArgs},
			},
			Instructions: "Focus on trend, momentum and volatility. Keep the summary under five sentences.",
		},
		{
			ID:          NewsDigest,
			Description: "Digest of recent news for a ticker or company",
			Steps: []Step{
				{Tool: tools.SearchNews, Args: newsArgs},
				{Tool: tools.GetQuote, Args: symbolArgs, When: hasSymbol},
			},
			Instructions: "Summarize the news flow and how it may move the stock. Flag stale or loosely related headlines.",
		},
		{
			ID:          MarketReport,
			Description: "Market overview report with benchmark indices and headlines",
			Steps: []Step{
				{Tool: tools.GetMarketOverview, Args: func(analysis.Request) map[string]interface{} {
					return map[string]interface{}{}
				}},
				{Tool: tools.SearchNews, Args: newsArgs},
				{Tool: tools.SearchSymbol, Args: func(req analysis.Request) map[string]interface{} {
					return map[string]interface{}{"query": req.Query}
				}, When: nameOnly},
				{Tool: tools.GetQuote, Group: 1, Args: symbolArgs, When: hasSymbol},
			},
			Instructions: "Write a market report: index moves first, then the headlines that explain them.",
		},
	}
}
