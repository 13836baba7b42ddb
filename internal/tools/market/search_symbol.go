package market

import (
	"context"

	"finsight/internal/tools"
	"finsight/internal/tools/shared"
	"finsight/pkg/errors"
)

// NewSearchSymbolTool resolves a company name to tickers.
func NewSearchSymbolTool(deps shared.Deps) tools.Spec {
	return tools.Spec{
		Name:        tools.SearchSymbol,
		Description: "Find ticker symbols for a company name",
		Params: []tools.Param{
			{Name: "query", Type: tools.TypeString, Required: true},
			{Name: "limit", Type: tools.TypeInt, Default: 5},
		},
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			snap := shared.SnapshotFromContext(ctx)
			searcher, err := deps.Providers.ResolveSymbolSearch(snap.SymbolSearchProvider)
			if err != nil {
				return tools.Result{}, err
			}

			matches, err := searcher.Search(ctx, args.String("query"))
			if err != nil {
				return tools.Result{}, errors.NewProviderError(searcher.Name(), "search", err)
			}
			if limit := args.Int("limit"); limit > 0 && len(matches) > limit {
				matches = matches[:limit]
			}
			return tools.Result{
				Data:     matches,
				Source:   searcher.Name(),
				Degraded: len(matches) == 0,
			}, nil
		},
	}
}
