package tools

import (
	"context"
	"sort"
	"sync"

	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// Registry stores tools by name and dispatches invocations.
type Registry struct {
	tools map[string]Spec
	mu    sync.RWMutex
	log   *logger.Logger
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Spec),
		log:   logger.Get().With("component", "tools"),
	}
}

// Register adds or replaces a tool under its name.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return errors.NewValidationError("name", "tool name is empty", nil)
	}
	if spec.Handler == nil {
		return errors.NewValidationError("handler", "tool handler is not defined", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = spec
	return nil
}

// Get retrieves a tool by name if registered.
func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.tools[name]
	return s, ok
}

// List returns the sorted names of all registered tools.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke validates args and runs the tool.
// Unknown tools and schema violations return errors; handler failures become degraded results.
func (r *Registry) Invoke(ctx context.Context, name string, raw map[string]interface{}) (Result, error) {
	spec, ok := r.Get(name)
	if !ok {
		return Result{}, errors.NotFound("tool", name)
	}

	args, err := spec.Validate(raw)
	if err != nil {
		return Result{}, err
	}

	res, err := safeCall(ctx, spec.Handler, args)
	if err != nil {
		r.log.Warnw("Tool degraded", "tool", name, "error", err)
		return Result{
			Tool:     name,
			Source:   "unavailable",
			Warnings: append(res.Warnings, name+": "+err.Error()),
			Degraded: true,
		}, nil
	}

	res.Tool = name
	if res.Source == "" {
		res.Source = name
	}
	return res, nil
}

func safeCall(ctx context.Context, h Handler, args Args) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &errors.PanicError{Value: rec}
		}
	}()
	return h(ctx, args)
}
