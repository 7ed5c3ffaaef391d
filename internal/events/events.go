// Package events publishes lobby lifecycle events to downstream services.
// Publication is best-effort: callers log failures and carry on.
package events

import (
	"context"

	"github.com/mcoot/gamelobby/internal/model"
)

// Publisher delivers lobby events to whoever is listening
type Publisher interface {
	Publish(ctx context.Context, event model.Event) error
	Close() error
}

// Nop is a Publisher that drops every event
type Nop struct{}

// Ensure Nop implements Publisher
var _ Publisher = Nop{}

// Publish discards the event
func (Nop) Publish(context.Context, model.Event) error { return nil }

// Close does nothing
func (Nop) Close() error { return nil }
