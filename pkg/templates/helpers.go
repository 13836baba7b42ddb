package templates

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"[", "\\[",
	"]", "\\]",
	"#", "\\#",
	"<", "\\<",
	">", "\\>",
	"|", "\\|",
)

// EscapeMarkdown escapes characters that change meaning in CommonMark inline text
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// SafeText drops invalid UTF-8, flattens newlines and escapes Markdown.
// Model and news text is untrusted and must not break the report layout.
func SafeText(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.Join(strings.Fields(text), " ")
	return EscapeMarkdown(text)
}

// Price formats a price with thousands separators
func Price(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return humanize.CommafWithDigits(v, 2)
}

// PricePtr formats an optional value
func PricePtr(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return Price(*v)
}

// Percent formats a signed percentage
func Percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// Confidence formats a 0..1 confidence as a percentage
func Confidence(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// Volume formats large volumes in SI form (1.2M)
func Volume(v float64) string {
	if v == 0 {
		return "0"
	}
	value, prefix := humanize.ComputeSI(v)
	return fmt.Sprintf("%.1f%s", value, prefix)
}

// Ago renders a timestamp relative to now ("3 hours ago")
func Ago(t time.Time) string {
	if t.IsZero() {
		return "unknown time"
	}
	return humanize.Time(t)
}

// FuncMap is available to every template in the registry
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"md":         SafeText,
		"price":      Price,
		"priceptr":   PricePtr,
		"percent":    Percent,
		"confidence": Confidence,
		"volume":     Volume,
		"ago":        Ago,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "n/a"
			}
			return t.UTC().Format("2006-01-02 15:04 UTC")
		},
		"upper": strings.ToUpper,
		"join":  strings.Join,
	}
}
