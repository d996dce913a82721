package testutil

import (
	"context"
	"sync"

	"collab-go/internal/collab"
)

// Published is one event seen by a RecordingDispatcher.
type Published struct {
	Topic string
	Event *collab.Event
}

// RecordingDispatcher keeps every published event. Set Err to make Publish
// fail after recording.
type RecordingDispatcher struct {
	mu     sync.Mutex
	events []Published
	Err    error
}

func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{}
}

func (d *RecordingDispatcher) Publish(_ context.Context, topic string, event *collab.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, Published{Topic: topic, Event: event})
	return d.Err
}

// Events returns a copy of what was published so far.
func (d *RecordingDispatcher) Events() []Published {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Published(nil), d.events...)
}

// Types returns the event types published so far, in order.
func (d *RecordingDispatcher) Types() []collab.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]collab.EventType, len(d.events))
	for i, e := range d.events {
		types[i] = e.Event.Type
	}
	return types
}

// Reset forgets recorded events.
func (d *RecordingDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}
