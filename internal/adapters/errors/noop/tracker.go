// Package noop provides the tracker used when SENTRY_DSN is unset
package noop

import (
	"context"

	"finsight/pkg/errors"
)

// Tracker drops every event
type Tracker struct{}

var _ errors.Tracker = Tracker{}

func New() Tracker { return Tracker{} }

func (Tracker) Capture(context.Context, errors.Event)                 {}
func (Tracker) Trail(context.Context, string, string, map[string]any) {}
func (Tracker) Flush(context.Context) error                           { return nil }
