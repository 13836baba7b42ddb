package indicators

import (
	"math"

	"github.com/shopspring/decimal"

	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
)

// Decimal is the tier-2 backend computing in arbitrary precision
type Decimal struct{}

// Name implements Backend
func (Decimal) Name() string { return indicator.BackendDecimal }

// Compute implements Backend
func (Decimal) Compute(candles []market_data.OHLCV) (indicator.Result, error) {
	if err := requireLength(indicator.BackendDecimal, candles); err != nil {
		return indicator.Result{}, err
	}

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = decimal.NewFromFloat(c.Close)
	}

	ema12 := decEMASeries(closes, macdFast)
	ema26 := decEMASeries(closes, macdSlow)
	offset := macdSlow - macdFast
	macdLine := make([]decimal.Decimal, len(ema26))
	for i := range ema26 {
		macdLine[i] = ema12[i+offset].Sub(ema26[i])
	}
	signal := decEMASeries(macdLine, macdSignal)
	macd := macdLine[len(macdLine)-1]
	sig := signal[len(signal)-1]

	mid := decSMA(closes, bbPeriod)
	dev := decStdDev(closes[len(closes)-bbPeriod:], mid).Mul(decimal.NewFromFloat(bbDeviations))

	res := indicator.Result{
		RSI14:      decPtr(decRSI(closes, rsiPeriod)),
		MACD:       decPtr(macd),
		MACDSignal: decPtr(sig),
		MACDHist:   decPtr(macd.Sub(sig)),
		SMA20:      decPtr(decSMA(closes, smaShort)),
		EMA12:      decPtr(ema12[len(ema12)-1]),
		EMA26:      decPtr(ema26[len(ema26)-1]),
		BBUpper:    decPtr(mid.Add(dev)),
		BBMiddle:   decPtr(mid),
		BBLower:    decPtr(mid.Sub(dev)),
		ATR14:      decPtr(decATR(candles, atrPeriod)),
		LastClose:  decPtr(closes[len(closes)-1]),
		Source:     indicator.SourceTag(indicator.BackendDecimal, indicator.StatusComputed),
	}
	if len(closes) >= smaLong {
		res.SMA50 = decPtr(decSMA(closes, smaLong))
	}
	return res, nil
}

func decPtr(d decimal.Decimal) *float64 {
	return ptr(d.InexactFloat64())
}

func decSMA(values []decimal.Decimal, period int) decimal.Decimal {
	window := values[len(values)-period:]
	return decimal.Sum(window[0], window[1:]...).Div(decimal.NewFromInt(int64(period)))
}

// decEMASeries returns EMA values starting at index period-1, seeded with the SMA
func decEMASeries(values []decimal.Decimal, period int) []decimal.Decimal {
	k := decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period + 1)))
	one := decimal.NewFromInt(1)

	seed := decimal.Sum(values[0], values[1:period]...).Div(decimal.NewFromInt(int64(period)))
	out := make([]decimal.Decimal, 0, len(values)-period+1)
	out = append(out, seed)
	prev := seed
	for _, v := range values[period:] {
		prev = v.Mul(k).Add(prev.Mul(one.Sub(k)))
		out = append(out, prev)
	}
	return out
}

func decRSI(values []decimal.Decimal, period int) decimal.Decimal {
	p := decimal.NewFromInt(int64(period))
	hundred := decimal.NewFromInt(100)

	gain, loss := decimal.Zero, decimal.Zero
	for i := 1; i <= period; i++ {
		delta := values[i].Sub(values[i-1])
		if delta.IsPositive() {
			gain = gain.Add(delta)
		} else {
			loss = loss.Sub(delta)
		}
	}
	avgGain, avgLoss := gain.Div(p), loss.Div(p)
	pm1 := p.Sub(decimal.NewFromInt(1))
	for i := period + 1; i < len(values); i++ {
		delta := values[i].Sub(values[i-1])
		g, l := decimal.Zero, decimal.Zero
		if delta.IsPositive() {
			g = delta
		} else {
			l = delta.Neg()
		}
		avgGain = avgGain.Mul(pm1).Add(g).Div(p)
		avgLoss = avgLoss.Mul(pm1).Add(l).Div(p)
	}
	if avgLoss.IsZero() {
		if avgGain.IsZero() {
			return decimal.NewFromInt(50)
		}
		return hundred
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

func decStdDev(window []decimal.Decimal, mean decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range window {
		d := v.Sub(mean)
		sum = sum.Add(d.Mul(d))
	}
	variance := sum.Div(decimal.NewFromInt(int64(len(window))))
	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

func decATR(candles []market_data.OHLCV, period int) decimal.Decimal {
	p := decimal.NewFromInt(int64(period))
	tr := make([]decimal.Decimal, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		high := decimal.NewFromFloat(candles[i].High)
		low := decimal.NewFromFloat(candles[i].Low)
		prevClose := decimal.NewFromFloat(candles[i-1].Close)
		tr = append(tr, decimal.Max(high.Sub(low), high.Sub(prevClose).Abs(), low.Sub(prevClose).Abs()))
	}
	atr := decimal.Sum(tr[0], tr[1:period]...).Div(p)
	pm1 := p.Sub(decimal.NewFromInt(1))
	for _, v := range tr[period:] {
		atr = atr.Mul(pm1).Add(v).Div(p)
	}
	return atr
}
