package providers

import (
	"sync"

	"finsight/internal/domain/analysis"
	"finsight/internal/domain/fundflow"
	"finsight/internal/domain/market_data"
	"finsight/internal/domain/news"
	"finsight/internal/domain/symbol"
	"finsight/pkg/errors"
)

// Kind is a provider capability
type Kind string

const (
	KindAnalysis     Kind = "analysis"
	KindMarketData   Kind = "market-data"
	KindNews         Kind = "news"
	KindFundFlow     Kind = "fund-flow"
	KindSymbolSearch Kind = "symbol-search"
)

// AuthMode describes how a provider authenticates
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthAPIKey AuthMode = "api_key"
)

// Descriptor is the configuration-owned view of a provider
type Descriptor struct {
	Kind     Kind     `json:"kind"`
	ID       string   `json:"id"`
	Enabled  bool     `json:"enabled"`
	AuthMode AuthMode `json:"auth_mode"`
	Models   []string `json:"models,omitempty"`
}

// Options are passed through to a factory
type Options map[string]string

// Factory builds a provider instance
type Factory func(opts Options) (interface{}, error)

type entry struct {
	factory  Factory
	authMode AuthMode
	models   []string
}

// Registry maps (kind, id) to a factory. It holds no provider state.
type Registry struct {
	mu      sync.RWMutex
	entries map[Kind]map[string]entry
	order   map[Kind][]string
}

// NewRegistry constructs an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[Kind]map[string]entry),
		order:   make(map[Kind][]string),
	}
}

// RegisterOption customizes a registration
type RegisterOption func(*entry)

// WithAuth sets the auth mode reported in descriptors
func WithAuth(mode AuthMode) RegisterOption {
	return func(e *entry) { e.authMode = mode }
}

// WithModels sets the model list reported in descriptors
func WithModels(models ...string) RegisterOption {
	return func(e *entry) { e.models = models }
}

// Register adds or replaces the factory for (kind, id). Last write wins.
func (r *Registry) Register(kind Kind, id string, factory Factory, opts ...RegisterOption) {
	e := entry{factory: factory, authMode: AuthNone}
	for _, opt := range opts {
		opt(&e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.entries[kind]
	if !ok {
		byID = make(map[string]entry)
		r.entries[kind] = byID
	}
	if _, exists := byID[id]; !exists {
		r.order[kind] = append(r.order[kind], id)
	}
	byID[id] = e
}

// Resolve builds the provider registered under (kind, id)
func (r *Registry) Resolve(kind Kind, id string, opts Options) (interface{}, error) {
	r.mu.RLock()
	e, ok := r.entries[kind][id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(string(kind)+" provider", id)
	}
	if e.factory == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "%s provider %q has no factory", kind, id)
	}

	p, err := e.factory(opts)
	if err != nil {
		return nil, errors.NewProviderError(id, "construct", err)
	}
	return p, nil
}

// ListIDs returns registered ids of a kind in registration order
func (r *Registry) ListIDs(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order[kind]...)
}

// Describe builds descriptors for a kind; enabled reports configuration state per id
func (r *Registry) Describe(kind Kind, enabled func(id string) bool) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order[kind]))
	for _, id := range r.order[kind] {
		e := r.entries[kind][id]
		out = append(out, Descriptor{
			Kind:     kind,
			ID:       id,
			Enabled:  enabled == nil || enabled(id),
			AuthMode: e.authMode,
			Models:   append([]string(nil), e.models...),
		})
	}
	return out
}

// Lookup returns the descriptor of a registered provider
func (r *Registry) Lookup(kind Kind, id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[kind][id]
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{
		Kind:     kind,
		ID:       id,
		Enabled:  true,
		AuthMode: e.authMode,
		Models:   append([]string(nil), e.models...),
	}, true
}

func resolveAs[T any](r *Registry, kind Kind, id string, opts Options) (T, error) {
	var zero T
	p, err := r.Resolve(kind, id, opts)
	if err != nil {
		return zero, err
	}
	typed, ok := p.(T)
	if !ok {
		return zero, errors.Wrapf(errors.ErrInternal, "%s provider %q has type %T", kind, id, p)
	}
	return typed, nil
}

// ResolveAnalyzer resolves an analysis provider
func (r *Registry) ResolveAnalyzer(id string) (analysis.Analyzer, error) {
	return resolveAs[analysis.Analyzer](r, KindAnalysis, id, nil)
}

// ResolveMarketData resolves a market-data provider
func (r *Registry) ResolveMarketData(id string) (market_data.Provider, error) {
	return resolveAs[market_data.Provider](r, KindMarketData, id, nil)
}

// ResolveNews resolves a news provider
func (r *Registry) ResolveNews(id string) (news.Provider, error) {
	return resolveAs[news.Provider](r, KindNews, id, nil)
}

// ResolveFundFlow resolves a fund-flow provider
func (r *Registry) ResolveFundFlow(id string) (fundflow.Provider, error) {
	return resolveAs[fundflow.Provider](r, KindFundFlow, id, nil)
}

// ResolveSymbolSearch resolves a symbol-search provider
func (r *Registry) ResolveSymbolSearch(id string) (symbol.Searcher, error) {
	return resolveAs[symbol.Searcher](r, KindSymbolSearch, id, nil)
}

// Singleton wraps an already constructed instance as a factory
func Singleton(instance interface{}) Factory {
	return func(Options) (interface{}, error) { return instance, nil }
}
