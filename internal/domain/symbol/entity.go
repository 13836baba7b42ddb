package symbol

import "context"

// Match is a symbol search hit
type Match struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
}

// Searcher resolves free text to tradable symbols
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]Match, error)
}
