package market

import (
	"context"

	"finsight/internal/tools"
	"finsight/internal/tools/shared"
)

// NewGetQuoteTool returns a tool that fetches the latest quote.
func NewGetQuoteTool(deps shared.Deps) tools.Spec {
	return tools.Spec{
		Name:        tools.GetQuote,
		Description: "Fetch the latest quote for a symbol",
		Params: []tools.Param{
			{Name: "symbol", Type: tools.TypeString, Required: true, Description: "Ticker, e.g. AAPL or 600519.SH"},
		},
		Fallback: []string{"market_data_providers", "cache", "unavailable"},
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			snap := shared.SnapshotFromContext(ctx)
			symbol := args.String("symbol")

			res, err := deps.MarketData.Quote(ctx, snap.MarketDataProviders, symbol)
			if err != nil {
				return tools.Result{}, err
			}

			deps.Log.Debugw("Tool: get_quote", "symbol", symbol, "source", res.Source, "price", res.Quote.Price)
			return tools.Result{
				Data:     res,
				Source:   res.Source,
				Warnings: res.Warnings,
				Degraded: !res.Available,
			}, nil
		},
	}
}
