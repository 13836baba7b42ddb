package agents

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"finsight/internal/domain/analysis"
	"finsight/pkg/errors"
)

// Validation warning codes
const (
	WarnSummaryBackfilled    = "summary_backfilled"
	WarnSentimentBackfilled  = "sentiment_backfilled"
	WarnConfidenceBackfilled = "confidence_backfilled"
	WarnEvidenceMissing      = "evidence_missing"
	WarnToolIterations       = "tool_iterations_exhausted"
)

// ToolRequest is a follow-up tool call asked for by the model
type ToolRequest struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

type keyLevelsReply struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

type modelReply struct {
	Summary      string          `json:"summary"`
	Sentiment    string          `json:"sentiment"`
	Confidence   interface{}     `json:"confidence"`
	KeyLevels    *keyLevelsReply `json:"key_levels"`
	Risks        []string        `json:"risks"`
	ActionItems  []string        `json:"action_items"`
	ToolRequests []ToolRequest   `json:"tool_requests"`
}

// parseReply extracts the JSON object from raw model text
func parseReply(raw string) (modelReply, error) {
	var reply modelReply
	body := extractJSON(raw)
	if body == "" {
		return reply, errors.Wrap(errors.ErrMalformedResponse, "no JSON object in model reply")
	}
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return reply, errors.Wrapf(errors.ErrMalformedResponse, "decode model reply: %v", err)
	}
	return reply, nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// coerceOutput maps a reply onto the output schema, back-filling missing fields.
// It returns the warnings describing each back-fill.
func coerceOutput(reply modelReply, fallbackSummary string) (analysis.Output, []string) {
	var warnings []string
	out := analysis.Output{
		Summary:       strings.TrimSpace(reply.Summary),
		Risks:         nonNil(reply.Risks),
		ActionItems:   nonNil(reply.ActionItems),
		Source:        analysis.SourceModel,
		SchemaVersion: analysis.SchemaVersion,
		KeyLevels:     analysis.KeyLevels{Support: []float64{}, Resistance: []float64{}},
	}
	if reply.KeyLevels != nil {
		out.KeyLevels.Support = finite(reply.KeyLevels.Support)
		out.KeyLevels.Resistance = finite(reply.KeyLevels.Resistance)
	}

	lowered := false
	if s, ok := analysis.ParseSentiment(reply.Sentiment); ok {
		out.Sentiment = s
	} else {
		out.Sentiment = analysis.SentimentNeutral
		warnings = append(warnings, WarnSentimentBackfilled)
		lowered = true
	}

	if c, ok := parseConfidence(reply.Confidence); ok {
		out.Confidence = c
	} else {
		out.Confidence = analysis.LowConfidence
		warnings = append(warnings, WarnConfidenceBackfilled)
	}

	if out.Summary == "" {
		out.Summary = fallbackSummary
		warnings = append(warnings, WarnSummaryBackfilled)
		lowered = true
	}

	if lowered {
		out.Confidence = math.Min(out.Confidence, analysis.LowConfidence)
	}
	return out, warnings
}

// parseConfidence accepts numbers, numeric strings and percentages
func parseConfidence(v interface{}) (float64, bool) {
	var f float64
	switch c := v.(type) {
	case float64:
		f = c
	case string:
		s := strings.TrimSpace(c)
		pct := strings.HasSuffix(s, "%")
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
		if pct {
			f /= 100
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > 1 && f <= 100 {
		f /= 100
	}
	return analysis.ClampConfidence(f), true
}

func nonNil(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func finite(levels []float64) []float64 {
	out := make([]float64, 0, len(levels))
	for _, l := range levels {
		if !math.IsNaN(l) && !math.IsInf(l, 0) && l > 0 {
			out = append(out, l)
		}
	}
	return out
}
