package analysis

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"finsight/internal/domain/fundflow"
	"finsight/internal/domain/indicator"
	"finsight/internal/domain/market_data"
	"finsight/internal/domain/news"
	"finsight/internal/domain/symbol"
)

// Sentiment is the directional call of an analysis
type Sentiment string

const (
	SentimentNeutral  Sentiment = "neutral"
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
)

var sentimentAliases = map[string]Sentiment{
	"neutral":  SentimentNeutral,
	"hold":     SentimentNeutral,
	"mixed":    SentimentNeutral,
	"positive": SentimentPositive,
	"bullish":  SentimentPositive,
	"buy":      SentimentPositive,
	"negative": SentimentNegative,
	"bearish":  SentimentNegative,
	"sell":     SentimentNegative,
}

// ParseSentiment maps model vocabulary onto the sentiment enum
func ParseSentiment(raw string) (Sentiment, bool) {
	s, ok := sentimentAliases[strings.ToLower(strings.TrimSpace(raw))]
	return s, ok
}

// Valid reports whether s is one of the enum values
func (s Sentiment) Valid() bool {
	return s == SentimentNeutral || s == SentimentPositive || s == SentimentNegative
}

// Output provenance
const (
	SourceModel     = "model"
	SourceRuleBased = "rule_based"

	SchemaVersion = "1.0"

	// LowConfidence caps confidence whenever no model answer backs a field
	LowConfidence = 0.3
)

// KeyLevels are notable price levels
type KeyLevels struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// Output is the structured result of an analysis run
type Output struct {
	Symbol        string    `json:"symbol,omitempty"`
	Summary       string    `json:"summary"`
	Sentiment     Sentiment `json:"sentiment"`
	Confidence    float64   `json:"confidence"`
	KeyLevels     KeyLevels `json:"key_levels"`
	Risks         []string  `json:"risks"`
	ActionItems   []string  `json:"action_items"`
	Source        string    `json:"source"`
	ProducedBy    string    `json:"produced_by"`
	SchemaVersion string    `json:"schema_version"`
	Warnings      []string  `json:"warnings,omitempty"`
	Skill         string    `json:"skill,omitempty"`
	States        []string  `json:"states,omitempty"`
}

// ClampConfidence bounds c to [0,1]
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0 || c != c:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// Input aggregates everything gathered for the model
type Input struct {
	Symbol     string                    `json:"symbol,omitempty"`
	Skill      string                    `json:"skill"`
	Context    string                    `json:"context,omitempty"`
	Quote      *market_data.QuoteResult  `json:"quote,omitempty"`
	Klines     *market_data.KlineResult  `json:"klines,omitempty"`
	Curve      *market_data.CurveResult  `json:"curve,omitempty"`
	Indicators *indicator.Result         `json:"indicators,omitempty"`
	News       *news.SearchResult        `json:"news,omitempty"`
	FundFlow   *fundflow.Series          `json:"fund_flow,omitempty"`
	Overview   []market_data.QuoteResult `json:"market_overview,omitempty"`
	Symbols    []symbol.Match            `json:"symbols,omitempty"`
	// Provenance maps tool name to the source that answered
	Provenance map[string]string `json:"provenance"`
}

// HasEvidence reports whether any tool contributed real data
func (in Input) HasEvidence() bool {
	switch {
	case in.Quote != nil && in.Quote.Available:
		return true
	case in.Klines != nil && len(in.Klines.Candles) > 0:
		return true
	case in.Curve != nil && len(in.Curve.Points) > 0:
		return true
	case in.Indicators != nil && in.Indicators.Computed():
		return true
	case in.News != nil && len(in.News.Items) > 0:
		return true
	case in.FundFlow != nil && len(in.FundFlow.Points) > 0:
		return true
	}
	for _, q := range in.Overview {
		if q.Available {
			return true
		}
	}
	return false
}

// Request is an analysis or report request
type Request struct {
	Symbol    string    `json:"symbol" validate:"omitempty,max=32"`
	Query     string    `json:"query" validate:"max=256"`
	SkillID   string    `json:"skill" validate:"omitempty,max=64"`
	Mode      string    `json:"mode" validate:"omitempty,max=32"`
	Provider  string    `json:"provider" validate:"omitempty,max=32"`
	Model     string    `json:"model" validate:"omitempty,max=128"`
	Context   string    `json:"context" validate:"max=4000"`
	Title     string    `json:"title" validate:"max=200"`
	NewsDays  int       `json:"news_days" validate:"omitempty,min=1,max=90"`
	NewsLimit int       `json:"news_limit" validate:"omitempty,min=1,max=100"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
}

// Run is the persisted terminal snapshot of a completed run
type Run struct {
	ID           uuid.UUID `json:"id"`
	TaskID       string    `json:"task_id"`
	Kind         string    `json:"kind"`
	Skill        string    `json:"skill"`
	Symbol       string    `json:"symbol"`
	InputSummary string    `json:"input_summary"`
	Output       Output    `json:"output"`
	Warnings     []string  `json:"warnings"`
	Report       string    `json:"report,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// RunFilter narrows ListRuns
type RunFilter struct {
	Symbol string
	Skill  string
	Kind   string
	Since  time.Time
	Limit  int
}
