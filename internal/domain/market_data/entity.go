package market_data

import "time"

// Quote is a point-in-time price snapshot for one symbol
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name,omitempty"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	PreviousClose float64   `json:"previous_close"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        int64     `json:"volume"`
	Currency      string    `json:"currency,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// OHLCV represents candlestick data, oldest first when returned in a slice
type OHLCV struct {
	Symbol   string    `ch:"symbol" json:"symbol"`
	Interval string    `ch:"interval" json:"interval"` // 1d, 1h, 5m
	OpenTime time.Time `ch:"open_time" json:"open_time"`
	Open     float64   `ch:"open" json:"open"`
	High     float64   `ch:"high" json:"high"`
	Low      float64   `ch:"low" json:"low"`
	Close    float64   `ch:"close" json:"close"`
	Volume   float64   `ch:"volume" json:"volume"`
}

// CurvePoint is one sample of an intraday price curve
type CurvePoint struct {
	Time     time.Time `json:"time"`
	Price    float64   `json:"price"`
	Volume   float64   `json:"volume"`
	AvgPrice float64   `json:"avg_price"`
}

// KlineQuery selects a kline window
type KlineQuery struct {
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
	Limit    int
}

// Provenance values beyond provider ids
const (
	SourceCache       = "cache"
	SourceUnavailable = "unavailable"
)

// QuoteResult is a quote tagged with the tier that answered
type QuoteResult struct {
	Quote     Quote    `json:"quote"`
	Source    string   `json:"source"`
	Available bool     `json:"available"`
	Warnings  []string `json:"warnings,omitempty"`
}

// KlineResult is a kline series tagged with the tier that answered
type KlineResult struct {
	Symbol    string   `json:"symbol"`
	Interval  string   `json:"interval"`
	Candles   []OHLCV  `json:"candles"`
	Source    string   `json:"source"`
	Available bool     `json:"available"`
	Warnings  []string `json:"warnings,omitempty"`
}

// CurveResult is an intraday curve tagged with the tier that answered
type CurveResult struct {
	Symbol    string       `json:"symbol"`
	Points    []CurvePoint `json:"points"`
	Source    string       `json:"source"`
	Available bool         `json:"available"`
	Warnings  []string     `json:"warnings,omitempty"`
}

// Closes extracts close prices in slice order
func Closes(candles []OHLCV) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// HighLowClose extracts the series ATR-style indicators need
func HighLowClose(candles []OHLCV) (high, low, close []float64) {
	high = make([]float64, len(candles))
	low = make([]float64, len(candles))
	close = make([]float64, len(candles))
	for i, c := range candles {
		high[i] = c.High
		low[i] = c.Low
		close[i] = c.Close
	}
	return high, low, close
}
