package mocks

import (
	"context"
	"sync"

	"github.com/mcoot/gamelobby/internal/events"
	"github.com/mcoot/gamelobby/internal/model"
)

// RecordingPublisher keeps every published event for assertions
type RecordingPublisher struct {
	mu     sync.Mutex
	events []model.Event

	// Err, when set, is returned from every Publish call (the event is still recorded)
	Err error
}

// Ensure RecordingPublisher implements Publisher
var _ events.Publisher = (*RecordingPublisher)(nil)

// NewRecordingPublisher creates an empty RecordingPublisher
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// Publish records the event
func (p *RecordingPublisher) Publish(_ context.Context, event model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

// Close does nothing
func (p *RecordingPublisher) Close() error {
	return nil
}

// Events returns a copy of the recorded events
func (p *RecordingPublisher) Events() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]model.Event, len(p.events))
	copy(result, p.events)
	return result
}

// Types returns the recorded event types in publication order
func (p *RecordingPublisher) Types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]model.EventType, len(p.events))
	for i, e := range p.events {
		result[i] = e.Type
	}
	return result
}
