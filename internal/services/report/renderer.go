package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"finsight/internal/agents"
	"finsight/internal/domain/analysis"
	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
	"finsight/internal/domain/news"
	"finsight/internal/skills"
	"finsight/pkg/errors"
	"finsight/pkg/templates"
)

// Template ids under pkg/templates/assets
const (
	TemplateAnalysis = "reports/analysis"
	TemplateMarket   = "reports/market"
)

const maxHeadlines = 5

// Renderer turns finished runs into Markdown reports
type Renderer struct {
	templates *templates.Registry
	now       func() time.Time
}

// NewRenderer creates a renderer over the embedded report templates
func NewRenderer() *Renderer {
	return NewRendererWith(templates.Default())
}

// NewRendererWith uses a custom template registry
func NewRendererWith(registry *templates.Registry) *Renderer {
	return &Renderer{templates: registry, now: time.Now}
}

// Render produces the Markdown report for a run
func (r *Renderer) Render(res *agents.Result) (string, error) {
	if res == nil {
		return "", errors.NewValidationError("result", "required", nil)
	}
	id := TemplateAnalysis
	if res.Skill == skills.MarketReport {
		id = TemplateMarket
	}
	out, err := r.templates.Render(id, r.view(res))
	if err != nil {
		return "", errors.Wrapf(err, "render %s", id)
	}
	return out, nil
}

type quoteView struct {
	Symbol        string
	Price         float64
	ChangePercent float64
	Open          float64
	High          float64
	Low           float64
	Volume        float64
	Currency      string
	Source        string
}

type row struct {
	Label string
	Value string
}

type fundFlowView struct {
	Days     int
	NetTotal float64
	Source   string
}

type view struct {
	Title           string
	Skill           string
	Sentiment       string
	GeneratedAt     time.Time
	Degraded        bool
	Output          analysis.Output
	Quote           *quoteView
	Overview        []quoteView
	Indicators      []row
	IndicatorSource string
	FundFlow        *fundFlowView
	News            []news.Item
	NewsFallback    bool
	Warnings        []string
	Provenance      []string
}

func (r *Renderer) view(res *agents.Result) view {
	in := res.Input
	v := view{
		Title:       Title(res.Request, res.Skill),
		Skill:       string(res.Skill),
		Sentiment:   string(res.Output.Sentiment),
		GeneratedAt: res.FinishedAt,
		Degraded:    res.Degraded(),
		Output:      res.Output,
		Warnings:    res.Warnings,
	}
	if v.GeneratedAt.IsZero() {
		v.GeneratedAt = r.now()
	}

	if in.Quote != nil && in.Quote.Available {
		q := toQuoteView(*in.Quote)
		v.Quote = &q
	}
	for _, q := range in.Overview {
		if q.Available {
			v.Overview = append(v.Overview, toQuoteView(q))
		}
	}
	if in.Indicators != nil && in.Indicators.Computed() {
		v.Indicators = indicatorRows(*in.Indicators)
		v.IndicatorSource = in.Indicators.Source
	}
	if in.FundFlow != nil && len(in.FundFlow.Points) > 0 {
		v.FundFlow = &fundFlowView{
			Days:     len(in.FundFlow.Points),
			NetTotal: in.FundFlow.NetTotal(),
			Source:   in.FundFlow.Source,
		}
	}
	if in.News != nil {
		items := in.News.Items
		if len(items) > maxHeadlines {
			items = items[:maxHeadlines]
		}
		v.News = items
		v.NewsFallback = in.News.Fallback
	}

	for tool, source := range in.Provenance {
		v.Provenance = append(v.Provenance, tool+"="+source)
	}
	sort.Strings(v.Provenance)
	return v
}

// Title is the request title or one derived from the skill and symbol
func Title(req analysis.Request, skill skills.ID) string {
	if t := strings.TrimSpace(req.Title); t != "" {
		return t
	}
	switch {
	case skill == skills.MarketReport && req.Symbol == "":
		return "Market report"
	case skill == skills.MarketReport:
		return fmt.Sprintf("Market report: %s", req.Symbol)
	case req.Symbol != "":
		return fmt.Sprintf("%s analysis", strings.ToUpper(req.Symbol))
	default:
		return "Analysis"
	}
}

func toQuoteView(q market_data.QuoteResult) quoteView {
	return quoteView{
		Symbol:        q.Quote.Symbol,
		Price:         q.Quote.Price,
		ChangePercent: q.Quote.ChangePercent,
		Open:          q.Quote.Open,
		High:          q.Quote.High,
		Low:           q.Quote.Low,
		Volume:        float64(q.Quote.Volume),
		Currency:      q.Quote.Currency,
		Source:        q.Source,
	}
}

func indicatorRows(res indicator.Result) []row {
	fields := []struct {
		label string
		value *float64
	}{
		{"RSI(14)", res.RSI14},
		{"MACD", res.MACD},
		{"MACD signal", res.MACDSignal},
		{"MACD histogram", res.MACDHist},
		{"SMA(20)", res.SMA20},
		{"SMA(50)", res.SMA50},
		{"EMA(12)", res.EMA12},
		{"EMA(26)", res.EMA26},
		{"Bollinger upper", res.BBUpper},
		{"Bollinger middle", res.BBMiddle},
		{"Bollinger lower", res.BBLower},
		{"ATR(14)", res.ATR14},
	}
	rows := make([]row, 0, len(fields))
	for _, f := range fields {
		if f.value != nil {
			rows = append(rows, row{Label: f.label, Value: templates.Price(*f.value)})
		}
	}
	return rows
}
