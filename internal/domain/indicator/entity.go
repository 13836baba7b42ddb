package indicator

import "strings"

// Backend identifiers, in tier order
const (
	BackendTalib   = "talib"
	BackendDecimal = "decimal"
	BackendBuiltin = "builtin"
)

// Status values of a computation
const (
	StatusComputed    = "computed"
	StatusUnavailable = "unavailable"
)

// Result holds the latest value of each indicator. Nil means not computed.
type Result struct {
	RSI14      *float64 `json:"rsi14"`
	MACD       *float64 `json:"macd"`
	MACDSignal *float64 `json:"macd_signal"`
	MACDHist   *float64 `json:"macd_hist"`
	SMA20      *float64 `json:"sma20"`
	SMA50      *float64 `json:"sma50"`
	EMA12      *float64 `json:"ema12"`
	EMA26      *float64 `json:"ema26"`
	BBUpper    *float64 `json:"bb_upper"`
	BBMiddle   *float64 `json:"bb_middle"`
	BBLower    *float64 `json:"bb_lower"`
	ATR14      *float64 `json:"atr14"`
	LastClose  *float64 `json:"last_close"`
	// Source is "{backend}/{status}"
	Source   string   `json:"source"`
	Warnings []string `json:"warnings,omitempty"`
}

// SourceTag formats a provenance tag
func SourceTag(backend, status string) string {
	return backend + "/" + status
}

// Computed reports whether the result carries computed values
func (r Result) Computed() bool {
	return strings.HasSuffix(r.Source, "/"+StatusComputed)
}

// Backend returns the backend part of Source
func (r Result) Backend() string {
	backend, _, _ := strings.Cut(r.Source, "/")
	return backend
}

// Count returns how many indicator fields are set
func (r Result) Count() int {
	n := 0
	for _, v := range []*float64{
		r.RSI14, r.MACD, r.MACDSignal, r.MACDHist, r.SMA20, r.SMA50, r.EMA12, r.EMA26,
		r.BBUpper, r.BBMiddle, r.BBLower, r.ATR14,
	} {
		if v != nil {
			n++
		}
	}
	return n
}
