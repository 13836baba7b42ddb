package orderflow

import (
	"context"

	"finsight/internal/domain/fundflow"
	"finsight/internal/tools"
	"finsight/internal/tools/shared"
	"finsight/pkg/errors"
)

// NewGetFundFlowTool returns main and retail net inflow for recent sessions.
func NewGetFundFlowTool(deps shared.Deps) tools.Spec {
	return tools.Spec{
		Name:        tools.GetFundFlow,
		Description: "Daily capital flow into a stock, split by order size",
		Params: []tools.Param{
			{Name: "symbol", Type: tools.TypeString, Required: true},
			{Name: "days", Type: tools.TypeInt, Default: 10},
		},
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			snap := shared.SnapshotFromContext(ctx)
			symbol := args.String("symbol")

			provider, err := deps.Providers.ResolveFundFlow(snap.FundFlowProvider)
			if err != nil {
				return tools.Result{}, err
			}

			points, err := provider.GetFundFlow(ctx, symbol, args.Int("days"))
			if err != nil {
				return tools.Result{}, errors.NewProviderError(provider.Name(), "fund_flow", err)
			}

			series := fundflow.Series{Symbol: symbol, Points: points, Source: provider.Name()}
			if len(points) == 0 {
				series.Warnings = append(series.Warnings, "fund_flow: no data for "+symbol)
			}
			return tools.Result{
				Data:     series,
				Source:   series.Source,
				Warnings: series.Warnings,
				Degraded: len(points) == 0,
			}, nil
		},
	}
}
