package market

import (
	"context"
	"time"

	"finsight/internal/domain/market_data"
	"finsight/internal/tools"
	"finsight/internal/tools/shared"
)

// NewGetKlineTool loads historical candles for a symbol.
func NewGetKlineTool(deps shared.Deps) tools.Spec {
	return tools.Spec{
		Name:        tools.GetKline,
		Description: "Retrieve historical OHLCV candles, oldest first",
		Params: []tools.Param{
			{Name: "symbol", Type: tools.TypeString, Required: true},
			{Name: "interval", Type: tools.TypeString, Default: "1d", Description: "1d, 1h or 5m"},
			{Name: "days", Type: tools.TypeInt, Default: 180},
			{Name: "limit", Type: tools.TypeInt, Default: 0, Description: "Keep only the latest N candles"},
		},
		Fallback: []string{"market_data_providers", "cache", "unavailable"},
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			res, err := loadKlines(ctx, deps, args)
			if err != nil {
				return tools.Result{}, err
			}
			return tools.Result{
				Data:     res,
				Source:   res.Source,
				Warnings: res.Warnings,
				Degraded: !res.Available,
			}, nil
		},
	}
}

func loadKlines(ctx context.Context, deps shared.Deps, args tools.Args) (market_data.KlineResult, error) {
	snap := shared.SnapshotFromContext(ctx)
	end := time.Now().UTC()
	days := args.Int("days")
	if days <= 0 {
		days = 180
	}

	return deps.MarketData.Klines(ctx, snap.MarketDataProviders, market_data.KlineQuery{
		Symbol:   args.String("symbol"),
		Interval: args.String("interval"),
		Start:    end.AddDate(0, 0, -days),
		End:      end,
		Limit:    args.Int("limit"),
	})
}
