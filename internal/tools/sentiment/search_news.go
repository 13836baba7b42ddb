package sentiment

import (
	"context"
	"time"

	"finsight/internal/domain/news"
	"finsight/internal/tools"
	"finsight/internal/tools/shared"
)

// NewSearchNewsTool searches recent news for a ticker or company name.
// Items that mention no search term are only returned as a flagged fallback.
func NewSearchNewsTool(deps shared.Deps) tools.Spec {
	return tools.Spec{
		Name:        tools.SearchNews,
		Description: "Search recent news mentioning a ticker or company",
		Params: []tools.Param{
			{Name: "symbol", Type: tools.TypeString, Description: "Ticker to match, suffix such as .SH is optional"},
			{Name: "query", Type: tools.TypeString, Description: "Free text, usually a company name"},
			{Name: "days", Type: tools.TypeInt, Description: "Lookback window, defaults to the configured value"},
			{Name: "limit", Type: tools.TypeInt},
		},
		Fallback: []string{"news_provider", "recent_headlines", "unavailable"},
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			snap := shared.SnapshotFromContext(ctx)
			symbol := args.String("symbol")

			days := args.Int("days")
			if days <= 0 {
				days = snap.NewsLookbackDays
			}
			limit := args.Int("limit")
			if limit <= 0 {
				limit = snap.NewsLimit
			}

			q := news.Query{Text: args.String("query"), Ticker: symbol, Limit: limit}
			if days > 0 {
				q.To = time.Now().UTC()
				q.From = q.To.AddDate(0, 0, -days)
			}

			res, err := deps.News.Search(ctx, snap.NewsProvider, q, snap.Aliases(symbol))
			if err != nil {
				return tools.Result{}, err
			}

			deps.Log.Debugw("Tool: search_news",
				"symbol", symbol,
				"items", len(res.Items),
				"fallback", res.Fallback,
				"source", res.Source,
			)
			return tools.Result{
				Data:     res,
				Source:   res.Source,
				Warnings: res.Warnings,
				Degraded: res.Fallback || res.Source == "unavailable",
			}, nil
		},
	}
}
