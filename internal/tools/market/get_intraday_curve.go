package market

import (
	"context"

	"finsight/internal/tools"
	"finsight/internal/tools/shared"
)

// NewGetIntradayCurveTool returns today's price curve for a symbol.
func NewGetIntradayCurveTool(deps shared.Deps) tools.Spec {
	return tools.Spec{
		Name:        tools.GetIntradayCurve,
		Description: "Fetch the intraday price curve",
		Params: []tools.Param{
			{Name: "symbol", Type: tools.TypeString, Required: true},
		},
		Fallback: []string{"market_data_providers", "cache", "unavailable"},
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			snap := shared.SnapshotFromContext(ctx)
			res, err := deps.MarketData.Curve(ctx, snap.MarketDataProviders, args.String("symbol"))
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
