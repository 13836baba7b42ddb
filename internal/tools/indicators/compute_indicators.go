package indicators

import (
	"context"
	"time"

	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
	"finsight/internal/tools"
	"finsight/internal/tools/shared"
	"finsight/pkg/errors"
)

const defaultDays = 180

// Output is the payload of compute_indicators
type Output struct {
	Symbol      string           `json:"symbol"`
	Candles     int              `json:"candles"`
	KlineSource string           `json:"kline_source"`
	Indicators  indicator.Result `json:"indicators"`
}

// NewComputeIndicatorsTool loads daily candles and computes the technical indicator set.
func NewComputeIndicatorsTool(deps shared.Deps) tools.Spec {
	return tools.Spec{
		Name:        tools.ComputeIndicators,
		Description: "Compute RSI, MACD, moving averages, Bollinger bands and ATR from daily candles",
		Params: []tools.Param{
			{Name: "symbol", Type: tools.TypeString, Required: true},
			{Name: "days", Type: tools.TypeInt, Default: defaultDays},
		},
		Fallback: []string{indicator.BackendTalib, indicator.BackendDecimal, indicator.BackendBuiltin},
		Handler: func(ctx context.Context, args tools.Args) (tools.Result, error) {
			snap := shared.SnapshotFromContext(ctx)
			symbol := args.String("symbol")
			days := args.Int("days")
			if days <= 0 {
				days = defaultDays
			}

			end := time.Now().UTC()
			klines, err := deps.MarketData.Klines(ctx, snap.MarketDataProviders, market_data.KlineQuery{
				Symbol:   symbol,
				Interval: "1d",
				Start:    end.AddDate(0, 0, -days),
				End:      end,
			})
			if err != nil {
				return tools.Result{}, err
			}

			out := Output{Symbol: symbol, Candles: len(klines.Candles), KlineSource: klines.Source}
			warnings := append([]string(nil), klines.Warnings...)

			res, err := deps.Indicators.Compute(ctx, klines.Candles)
			if err != nil {
				// Bad input series degrade this tool only
				if !errors.Is(err, errors.ErrInvalidInput) {
					return tools.Result{}, err
				}
				deps.Log.Warnw("Indicator input rejected", "symbol", symbol, "error", err)
				res = indicator.Result{Source: indicator.SourceTag(indicator.BackendBuiltin, indicator.StatusUnavailable)}
				warnings = append(warnings, "indicators: "+err.Error())
			}
			out.Indicators = res
			warnings = append(warnings, res.Warnings...)

			return tools.Result{
				Data:     out,
				Source:   res.Source,
				Warnings: warnings,
				Degraded: !res.Computed(),
			}, nil
		},
	}
}
