package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"finsight/pkg/errors"
)

// ParamType is the declared type of a tool parameter
type ParamType string

const (
	TypeString     ParamType = "string"
	TypeInt        ParamType = "int"
	TypeFloat      ParamType = "float"
	TypeBool       ParamType = "bool"
	TypeStringList ParamType = "string_list"
)

// Param declares one named input
type Param struct {
	Name        string      `json:"name"`
	Type        ParamType   `json:"type"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Description string      `json:"description,omitempty"`
}

// Result is what a tool returns. Data is nil or an empty value when Degraded.
type Result struct {
	Tool     string      `json:"tool"`
	Data     interface{} `json:"data"`
	Source   string      `json:"source"`
	Warnings []string    `json:"warnings,omitempty"`
	Degraded bool        `json:"degraded"`
}

// Handler executes a tool with validated arguments
type Handler func(ctx context.Context, args Args) (Result, error)

// Middleware decorates a handler
type Middleware interface {
	Wrap(name string, next Handler) Handler
}

// Spec describes a registered tool
type Spec struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
	// Fallback lists backend ids tried in order when the tool wraps a degradable capability
	Fallback []string
}

// With returns a copy of the spec with middleware applied, first one innermost
func (s Spec) With(mw ...Middleware) Spec {
	for _, m := range mw {
		if m != nil {
			s.Handler = m.Wrap(s.Name, s.Handler)
		}
	}
	return s
}

// Validate checks raw arguments against the schema and applies defaults
func (s Spec) Validate(raw map[string]interface{}) (Args, error) {
	args := make(Args, len(s.Params))
	for _, p := range s.Params {
		value, present := raw[p.Name]
		if !present || value == nil {
			if p.Required {
				return nil, errors.NewValidationError(p.Name, "required by "+s.Name, nil)
			}
			if p.Default != nil {
				args[p.Name] = p.Default
			}
			continue
		}

		coerced, err := coerce(p.Type, value)
		if err != nil {
			return nil, errors.NewValidationError(p.Name, err.Error(), value)
		}
		if p.Required && p.Type == TypeString && strings.TrimSpace(coerced.(string)) == "" {
			return nil, errors.NewValidationError(p.Name, "required by "+s.Name, value)
		}
		args[p.Name] = coerced
	}
	return args, nil
}

func coerce(t ParamType, v interface{}) (interface{}, error) {
	switch t {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n == math.Trunc(n) {
				return int(n), nil
			}
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i), nil
			}
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i, nil
			}
		}
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeStringList:
		switch list := v.(type) {
		case []string:
			return list, nil
		case []interface{}:
			out := make([]string, 0, len(list))
			for _, item := range list {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("expected %s, got element %T", t, item)
				}
				out = append(out, s)
			}
			return out, nil
		case string:
			return splitList(list), nil
		}
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", t)
	}
	return nil, fmt.Errorf("expected %s, got %T", t, v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Args are validated tool arguments
type Args map[string]interface{}

// String returns a string argument or ""
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return strings.TrimSpace(s)
}

// Int returns an int argument or 0
func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

// Float returns a float argument or 0
func (a Args) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Bool returns a bool argument or false
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Strings returns a string list argument or nil
func (a Args) Strings(name string) []string {
	list, _ := a[name].([]string)
	return list
}
