package market

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"finsight/internal/domain/market_data"
	"finsight/internal/tools"
	"finsight/internal/tools/shared"
)

// NewGetMarketOverviewTool quotes the configured benchmark symbols concurrently.
func NewGetMarketOverviewTool(deps shared.Deps) tools.Spec {
	return tools.Spec{
		Name:        tools.GetMarketOverview,
		Description: "Quote benchmark indices for a market overview",
		Params: []tools.Param{
			{Name: "symbols", Type: tools.TypeStringList, Description: "Defaults to the configured overview symbols"},
		},
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			snap := shared.SnapshotFromContext(ctx)
			symbols := args.Strings("symbols")
			if len(symbols) == 0 {
				symbols = snap.MarketOverviewSymbols
			}

			quotes := make([]market_data.QuoteResult, len(symbols))
			var (
				mu       sync.Mutex
				warnings []string
			)
			g, gctx := errgroup.WithContext(ctx)
			for i, symbol := range symbols {
				g.Go(func() error {
					q, err := deps.MarketData.Quote(gctx, snap.MarketDataProviders, symbol)
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						// one bad symbol must not drop the rest of the overview
						quotes[i] = market_data.QuoteResult{
							Quote:  market_data.Quote{Symbol: symbol},
							Source: market_data.SourceUnavailable,
						}
						warnings = append(warnings, fmt.Sprintf("overview_symbol_failed: %s: %v", symbol, err))
						return nil
					}
					quotes[i] = q
					warnings = append(warnings, q.Warnings...)
					return nil
				})
			}
			_ = g.Wait()
			if err := ctx.Err(); err != nil {
				return tools.Result{}, err
			}

			available := 0
			for _, q := range quotes {
				if q.Available {
					available++
				}
			}
			source := "mixed"
			if available == 0 {
				source = market_data.SourceUnavailable
			}
			return tools.Result{
				Data:     quotes,
				Source:   source,
				Warnings: warnings,
				Degraded: available == 0,
			}, nil
		},
	}
}
