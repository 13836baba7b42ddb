package indicators

import (
	"math"

	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
	"finsight/pkg/errors"
)

// Standard periods
const (
	rsiPeriod    = 14
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	smaShort     = 20
	smaLong      = 50
	bbPeriod     = 20
	bbDeviations = 2.0
	atrPeriod    = 14

	// MinCandles is the shortest series the full indicator set needs
	MinCandles = macdSlow + macdSignal - 1 + 1
)

// Backend computes the full indicator set or fails
type Backend interface {
	Name() string
	Compute(candles []market_data.OHLCV) (indicator.Result, error)
}

func requireLength(backend string, candles []market_data.OHLCV) error {
	if len(candles) < MinCandles {
		return errors.Wrapf(errors.ErrInsufficientData, "%s needs %d candles, got %d", backend, MinCandles, len(candles))
	}
	return nil
}

// ValidateSeries rejects non-finite prices
func ValidateSeries(candles []market_data.OHLCV) error {
	for i, c := range candles {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewValidationError("candles", "non-finite price", i)
			}
		}
	}
	return nil
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r := math.Round(v*10000) / 10000
	return &r
}

func last(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}

func lastPtr(values []float64) *float64 {
	v, ok := last(values)
	if !ok {
		return nil
	}
	return ptr(v)
}
