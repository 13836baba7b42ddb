package indicators

import (
	"context"
	"math"
	"strings"

	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
	"finsight/internal/fallback"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

var knownBackends = map[string]func() Backend{
	indicator.BackendTalib:   func() Backend { return Talib{} },
	indicator.BackendDecimal: func() Backend { return Decimal{} },
}

// Engine resolves indicator computation through the backend tiers.
// Backends are probed once at construction.
type Engine struct {
	available []Backend
	absent    map[string]string
	builtin   Builtin
	log       *logger.Logger
}

// NewEngine probes the configured backends in order. builtin is always the terminal tier.
func NewEngine(names []string) *Engine {
	e := &Engine{
		absent: make(map[string]string),
		log:    logger.Get().With("component", "indicators"),
	}

	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" || name == indicator.BackendBuiltin {
			continue
		}
		ctor, ok := knownBackends[name]
		if !ok {
			e.absent[name] = "unknown backend"
			e.log.Warnw("Unknown indicator backend", "backend", name)
			continue
		}
		backend := ctor()
		if err := probe(backend); err != nil {
			e.absent[name] = err.Error()
			e.log.Warnw("Indicator backend failed probe", "backend", name, "error", err)
			continue
		}
		e.available = append(e.available, backend)
	}

	e.log.Infow("Indicator backends probed", "available", e.Available(), "absent", len(e.absent))
	return e
}

// Available lists probed backends in tier order, builtin last
func (e *Engine) Available() []string {
	names := make([]string, 0, len(e.available)+1)
	for _, b := range e.available {
		names = append(names, b.Name())
	}
	return append(names, indicator.BackendBuiltin)
}

// Absent returns backends excluded at startup with the reason
func (e *Engine) Absent() map[string]string {
	out := make(map[string]string, len(e.absent))
	for k, v := range e.absent {
		out[k] = v
	}
	return out
}

// Compute returns indicators for candles ordered oldest first.
// Only malformed input yields an error; backend failures degrade to the next tier.
func (e *Engine) Compute(ctx context.Context, candles []market_data.OHLCV) (indicator.Result, error) {
	if err := ValidateSeries(candles); err != nil {
		return indicator.Result{}, err
	}

	cands := make([]fallback.Candidate[indicator.Result], 0, len(e.available))
	for _, b := range e.available {
		backend := b
		cands = append(cands, fallback.Candidate[indicator.Result]{
			ID: backend.Name(),
			Run: func(context.Context) (indicator.Result, error) {
				return backend.Compute(candles)
			},
		})
	}

	chain := fallback.New("indicators", fallback.Terminal[indicator.Result]{
		ID:  indicator.BackendBuiltin,
		Run: func(context.Context) indicator.Result { return e.builtin.ComputeTotal(candles) },
	}, cands...)

	res, err := chain.Resolve(ctx)
	if err != nil {
		return indicator.Result{}, err
	}
	out := res.Value
	out.Warnings = append(append([]string(nil), res.Warnings...), out.Warnings...)
	return out, nil
}

// probeSeries is a fixed 60-bar series used by the startup self-test
func probeSeries() []market_data.OHLCV {
	out := make([]market_data.OHLCV, 60)
	for i := range out {
		base := 100 + 5*math.Sin(float64(i)/5) + float64(i)*0.1
		out[i] = market_data.OHLCV{Open: base - 0.5, High: base + 1, Low: base - 1, Close: base, Volume: 1000}
	}
	return out
}

func probe(b Backend) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(errors.ErrBackendAbsent, "probe panicked: %v", r)
		}
	}()
	res, err := b.Compute(probeSeries())
	if err != nil {
		return errors.Wrap(errors.ErrBackendAbsent, err.Error())
	}
	if res.RSI14 == nil || *res.RSI14 < 0 || *res.RSI14 > 100 {
		return errors.Wrap(errors.ErrBackendAbsent, "probe returned out-of-range RSI")
	}
	return nil
}
