package tools

// Tool names
const (
	GetQuote          = "get_quote"
	GetKline          = "get_kline"
	GetIntradayCurve  = "get_intraday_curve"
	ComputeIndicators = "compute_indicators"
	SearchNews        = "search_news"
	GetFundFlow       = "get_fund_flow"
	SearchSymbol      = "search_symbol"
	GetMarketOverview = "get_market_overview"
)
