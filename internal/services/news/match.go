package news

import (
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"finsight/internal/domain/news"
)

// Terms is the match-term set of a search
type Terms struct {
	Tickers []string
	Names   []string
}

// All returns every term, tickers first
func (t Terms) All() []string {
	return append(append([]string(nil), t.Tickers...), t.Names...)
}

// Empty reports whether there is nothing to match
func (t Terms) Empty() bool {
	return len(t.Tickers) == 0 && len(t.Names) == 0
}

// StripSuffix removes an exchange suffix: "600519.SH" -> "600519", "BRK.B" stays
func StripSuffix(ticker string) string {
	ticker = strings.TrimSpace(ticker)
	idx := strings.LastIndex(ticker, ".")
	if idx <= 0 || idx == len(ticker)-1 {
		return ticker
	}
	suffix := ticker[idx+1:]
	if len(suffix) < 2 {
		return ticker
	}
	for _, r := range suffix {
		if !unicode.IsLetter(r) {
			return ticker
		}
	}
	return ticker[:idx]
}

// BuildTerms assembles {query, ticker, stripped ticker, aliases}
func BuildTerms(query, ticker string, aliases []string) Terms {
	var terms Terms
	seen := make(map[string]bool)
	add := func(list *[]string, term string) {
		term = strings.TrimSpace(term)
		key := strings.ToLower(term)
		if term == "" || seen[key] {
			return
		}
		seen[key] = true
		*list = append(*list, term)
	}

	ticker = strings.TrimSpace(ticker)
	stripped := StripSuffix(ticker)
	add(&terms.Tickers, ticker)
	add(&terms.Tickers, stripped)

	q := strings.TrimSpace(query)
	if strings.EqualFold(q, ticker) || strings.EqualFold(q, stripped) {
		add(&terms.Tickers, q)
	} else {
		add(&terms.Names, q)
	}
	for _, alias := range aliases {
		add(&terms.Names, alias)
	}
	return terms
}

// Matches reports whether the item matches any term
func (t Terms) Matches(item news.Item) bool {
	haystack := strings.ToLower(item.Haystack())
	for _, term := range t.Tickers {
		if containsToken(haystack, strings.ToLower(term)) {
			return true
		}
	}
	for _, term := range t.Names {
		if strings.Contains(haystack, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// containsToken finds needle with no letter or digit directly around it
func containsToken(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for start := 0; start <= len(haystack)-len(needle); {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		begin := start + idx
		end := begin + len(needle)

		before, _ := utf8.DecodeLastRuneInString(haystack[:begin])
		after, _ := utf8.DecodeRuneInString(haystack[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		_, size := utf8.DecodeRuneInString(haystack[begin:])
		start = begin + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// Select applies the search policy to a collected corpus.
// Strict matches win; with none, the most recent in-range items are returned and fallback is true.
func Select(items []news.Item, terms Terms, from, to time.Time, limit int) (selected []news.Item, fallback bool) {
	inRange := make([]news.Item, 0, len(items))
	for _, item := range items {
		if item.PublishedAt.IsZero() {
			continue
		}
		if !from.IsZero() && item.PublishedAt.Before(from) {
			continue
		}
		if !to.IsZero() && item.PublishedAt.After(to) {
			continue
		}
		inRange = append(inRange, item)
	}
	sort.SliceStable(inRange, func(i, j int) bool {
		return inRange[i].PublishedAt.After(inRange[j].PublishedAt)
	})

	if terms.Empty() {
		return head(inRange, limit), false
	}

	matched := make([]news.Item, 0, len(inRange))
	for _, item := range inRange {
		if terms.Matches(item) {
			matched = append(matched, item)
		}
	}
	if len(matched) > 0 {
		return head(matched, limit), false
	}
	return head(inRange, limit), true
}

func head(items []news.Item, limit int) []news.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
