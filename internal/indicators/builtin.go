package indicators

import (
	"math"

	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
)

// Builtin is the tier-3 backend. It computes whatever the series allows and never fails.
type Builtin struct{}

// Name implements Backend
func (Builtin) Name() string { return indicator.BackendBuiltin }

// Compute implements Backend; the error is always nil
func (b Builtin) Compute(candles []market_data.OHLCV) (indicator.Result, error) {
	return b.ComputeTotal(candles), nil
}

// ComputeTotal returns a result for any input, including nil and malformed series
func (Builtin) ComputeTotal(candles []market_data.OHLCV) (res indicator.Result) {
	defer func() {
		if recover() != nil {
			res = indicator.Result{Source: indicator.SourceTag(indicator.BackendBuiltin, indicator.StatusUnavailable)}
		}
	}()

	closes := finiteCloses(candles)
	if n := len(closes); n > 0 {
		res.LastClose = ptr(closes[n-1])
	}

	res.RSI14 = guarded(func() (float64, bool) { return rsi(closes, rsiPeriod) })
	res.SMA20 = guarded(func() (float64, bool) { return sma(closes, smaShort) })
	res.SMA50 = guarded(func() (float64, bool) { return sma(closes, smaLong) })
	res.EMA12 = guarded(func() (float64, bool) { return last(emaSeries(closes, macdFast)) })
	res.EMA26 = guarded(func() (float64, bool) { return last(emaSeries(closes, macdSlow)) })
	res.ATR14 = guarded(func() (float64, bool) { return atr(candles, atrPeriod) })

	if m, s, ok := macd(closes); ok {
		res.MACD, res.MACDSignal, res.MACDHist = ptr(m), ptr(s), ptr(m-s)
	}
	if up, mid, low, ok := bollinger(closes, bbPeriod, bbDeviations); ok {
		res.BBUpper, res.BBMiddle, res.BBLower = ptr(up), ptr(mid), ptr(low)
	}

	status := indicator.StatusComputed
	if res.Count() == 0 {
		status = indicator.StatusUnavailable
		res.Warnings = append(res.Warnings, "builtin: series too short for any indicator")
	}
	res.Source = indicator.SourceTag(indicator.BackendBuiltin, status)
	return res
}

func guarded(fn func() (float64, bool)) (out *float64) {
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	v, ok := fn()
	if !ok {
		return nil
	}
	return ptr(v)
}

func finiteCloses(candles []market_data.OHLCV) []float64 {
	out := make([]float64, 0, len(candles))
	for _, c := range candles {
		if !math.IsNaN(c.Close) && !math.IsInf(c.Close, 0) {
			out = append(out, c.Close)
		}
	}
	return out
}

func sma(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

func emaSeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)

	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	prev := seed
	for _, v := range values[period:] {
		prev = v*k + prev*(1-k)
		out = append(out, prev)
	}
	return out
}

func rsi(values []float64, period int) (float64, bool) {
	if len(values) < period+1 {
		return 0, false
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		if d := values[i] - values[i-1]; d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain, avgLoss := gain/float64(period), loss/float64(period)
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		g, l := math.Max(d, 0), math.Max(-d, 0)
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50, true
	case avgLoss == 0:
		return 100, true
	}
	return 100 - 100/(1+avgGain/avgLoss), true
}

func macd(values []float64) (line, signal float64, ok bool) {
	fast := emaSeries(values, macdFast)
	slow := emaSeries(values, macdSlow)
	if slow == nil {
		return 0, 0, false
	}
	offset := macdSlow - macdFast
	lineSeries := make([]float64, len(slow))
	for i := range slow {
		lineSeries[i] = fast[i+offset] - slow[i]
	}
	sig := emaSeries(lineSeries, macdSignal)
	if sig == nil {
		return 0, 0, false
	}
	return lineSeries[len(lineSeries)-1], sig[len(sig)-1], true
}

func bollinger(values []float64, period int, k float64) (upper, middle, lower float64, ok bool) {
	mid, ok := sma(values, period)
	if !ok {
		return 0, 0, 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += (v - mid) * (v - mid)
	}
	dev := math.Sqrt(sum/float64(period)) * k
	return mid + dev, mid, mid - dev, true
}

func atr(candles []market_data.OHLCV, period int) (float64, bool) {
	if len(candles) < period+1 {
		return 0, false
	}
	tr := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		h, l, pc := candles[i].High, candles[i].Low, candles[i-1].Close
		tr = append(tr, math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc))))
	}
	var sum float64
	for _, v := range tr[:period] {
		sum += v
	}
	value := sum / float64(period)
	for _, v := range tr[period:] {
		value = (value*float64(period-1) + v) / float64(period)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
