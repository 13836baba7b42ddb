package analysis

import "context"

// Prompt is the payload handed to an analysis provider
type Prompt struct {
	System string
	User   string
}

// Analyzer is an LLM analysis provider. It returns the raw model text.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, prompt Prompt, model, apiKey string) (string, error)
}
