package indicators

import (
	"github.com/markcheno/go-talib"

	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
)

// Talib is the tier-1 backend on go-talib
type Talib struct{}

// Name implements Backend
func (Talib) Name() string { return indicator.BackendTalib }

// Compute implements Backend
func (Talib) Compute(candles []market_data.OHLCV) (indicator.Result, error) {
	if err := requireLength(indicator.BackendTalib, candles); err != nil {
		return indicator.Result{}, err
	}

	closes := market_data.Closes(candles)
	high, low, close := market_data.HighLowClose(candles)

	macdLine, signalLine, histogram := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	upper, middle, lower := talib.BBands(closes, bbPeriod, bbDeviations, bbDeviations, talib.SMA)

	res := indicator.Result{
		RSI14:      lastPtr(talib.Rsi(closes, rsiPeriod)),
		MACD:       lastPtr(macdLine),
		MACDSignal: lastPtr(signalLine),
		MACDHist:   lastPtr(histogram),
		SMA20:      lastPtr(talib.Sma(closes, smaShort)),
		EMA12:      lastPtr(talib.Ema(closes, macdFast)),
		EMA26:      lastPtr(talib.Ema(closes, macdSlow)),
		BBUpper:    lastPtr(upper),
		BBMiddle:   lastPtr(middle),
		BBLower:    lastPtr(lower),
		ATR14:      lastPtr(talib.Atr(high, low, close, atrPeriod)),
		LastClose:  lastPtr(closes),
		Source:     indicator.SourceTag(indicator.BackendTalib, indicator.StatusComputed),
	}
	if len(closes) >= smaLong {
		res.SMA50 = lastPtr(talib.Sma(closes, smaLong))
	}
	return res, nil
}
