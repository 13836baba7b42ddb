package indicators

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
	"finsight/pkg/errors"
)

func series(n int) []market_data.OHLCV {
	out := make([]market_data.OHLCV, n)
	for i := range out {
		base := 50 + 3*math.Sin(float64(i)/3) + float64(i)*0.2
		out[i] = market_data.OHLCV{Open: base, High: base + 0.8, Low: base - 0.8, Close: base + 0.1, Volume: 500}
	}
	return out
}

func TestEngine_LongSeriesUsesFirstTier(t *testing.T) {
	e := NewEngine([]string{"talib", "decimal", "builtin"})
	assert.Equal(t, []string{"talib", "decimal", "builtin"}, e.Available())

	res, err := e.Compute(context.Background(), series(120))
	require.NoError(t, err)
	assert.Equal(t, "talib/computed", res.Source)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.RSI14)
	assert.GreaterOrEqual(t, *res.RSI14, 0.0)
	assert.LessOrEqual(t, *res.RSI14, 100.0)
	assert.NotNil(t, res.SMA50)
	assert.NotNil(t, res.ATR14)
}

func TestEngine_ShortSeriesDegradesToBuiltin(t *testing.T) {
	e := NewEngine([]string{"talib", "decimal"})

	res, err := e.Compute(context.Background(), series(20))
	require.NoError(t, err)
	assert.Equal(t, "builtin/computed", res.Source)
	assert.Len(t, res.Warnings, 2)
	assert.NotNil(t, res.SMA20)
	assert.NotNil(t, res.RSI14)
	assert.Nil(t, res.MACD)
	assert.Nil(t, res.SMA50)
}

func TestEngine_EmptySeriesIsUnavailable(t *testing.T) {
	e := NewEngine([]string{"decimal"})

	res, err := e.Compute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "builtin/unavailable", res.Source)
	assert.False(t, res.Computed())
	assert.Zero(t, res.Count())
}

func TestEngine_UnknownBackendIsAbsent(t *testing.T) {
	e := NewEngine([]string{"gpu", "decimal"})
	assert.Equal(t, []string{"decimal", "builtin"}, e.Available())
	assert.Contains(t, e.Absent(), "gpu")

	res, err := e.Compute(context.Background(), series(60))
	require.NoError(t, err)
	assert.Equal(t, "decimal/computed", res.Source)
}

func TestEngine_NonFiniteInputIsHard(t *testing.T) {
	e := NewEngine([]string{"talib"})
	candles := series(40)
	candles[7].Close = math.NaN()

	_, err := e.Compute(context.Background(), candles)
	require.Error(t, err)
	assert.True(t, errors.IsHard(err))
}

func TestDecimalMatchesBuiltin(t *testing.T) {
	candles := series(90)

	dec, err := Decimal{}.Compute(candles)
	require.NoError(t, err)
	bi := Builtin{}.ComputeTotal(candles)

	pairs := map[string][2]*float64{
		"rsi":    {dec.RSI14, bi.RSI14},
		"macd":   {dec.MACD, bi.MACD},
		"signal": {dec.MACDSignal, bi.MACDSignal},
		"sma20":  {dec.SMA20, bi.SMA20},
		"sma50":  {dec.SMA50, bi.SMA50},
		"ema26":  {dec.EMA26, bi.EMA26},
		"bb_up":  {dec.BBUpper, bi.BBUpper},
		"atr":    {dec.ATR14, bi.ATR14},
	}
	for name, p := range pairs {
		require.NotNil(t, p[0], name)
		require.NotNil(t, p[1], name)
		assert.InDelta(t, *p[1], *p[0], 1e-3, name)
	}
}

func TestTalibSimpleAveragesMatchBuiltin(t *testing.T) {
	candles := series(90)

	ta, err := Talib{}.Compute(candles)
	require.NoError(t, err)
	bi := Builtin{}.ComputeTotal(candles)

	assert.InDelta(t, *bi.SMA20, *ta.SMA20, 1e-3)
	assert.InDelta(t, *bi.BBMiddle, *ta.BBMiddle, 1e-3)
	assert.InDelta(t, *bi.LastClose, *ta.LastClose, 1e-9)
}

func TestBuiltin_IsTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	specials := []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1), 1e308, -1e308}

	inputs := [][]market_data.OHLCV{nil, {}, series(1), series(14), series(15), series(34), series(35)}
	for i := 0; i < 200; i++ {
		n := rng.Intn(80)
		candles := make([]market_data.OHLCV, n)
		for j := range candles {
			v := rng.Float64() * 200
			if rng.Intn(10) == 0 {
				v = specials[rng.Intn(len(specials))]
			}
			candles[j] = market_data.OHLCV{Open: v, High: v + rng.Float64(), Low: v - rng.Float64(), Close: v}
		}
		inputs = append(inputs, candles)
	}

	for _, candles := range inputs {
		var res indicator.Result
		require.NotPanics(t, func() { res = Builtin{}.ComputeTotal(candles) })
		assert.Contains(t,
			[]string{"builtin/computed", "builtin/unavailable"}, res.Source)
		if res.RSI14 != nil {
			assert.False(t, math.IsNaN(*res.RSI14))
		}
	}
}
