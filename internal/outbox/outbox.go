// Package outbox decouples event fan-out from the commit path. Publish only
// enqueues; a worker drains the queue into the real dispatcher, retrying a
// bounded number of times.
package outbox

import (
	"context"
	"sync"
	"time"

	"collab-go/internal/collab"
)

// Options bounds the queue and its retry policy. Zero values take defaults.
type Options struct {
	Capacity   int           // queued events; defaults to 1024
	MaxRetries int           // publish attempts per event; defaults to 3
	Backoff    time.Duration // wait after a failed attempt, times the attempt number; defaults to 100ms
}

// Stats counts what happened to events that left the queue.
type Stats struct {
	Delivered int
	Dropped   int
	Queued    int
}

type entry struct {
	topic    string
	event    *collab.Event
	attempts int
}

// Outbox is a bounded, in-memory queue in front of a Dispatcher. It is safe
// for concurrent use.
type Outbox struct {
	inner  collab.Dispatcher
	logger collab.Logger
	opts   Options

	mu        sync.Mutex
	queue     []*entry
	delivered int
	dropped   int
	notify    chan struct{}
}

var _ collab.Dispatcher = (*Outbox)(nil)

// New creates an Outbox that delivers to inner.
func New(inner collab.Dispatcher, logger collab.Logger, opts Options) *Outbox {
	if opts.Capacity <= 0 {
		opts.Capacity = 1024
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 100 * time.Millisecond
	}
	return &Outbox{
		inner:  inner,
		logger: logger,
		opts:   opts,
		notify: make(chan struct{}, 1),
	}
}

// Publish enqueues an event and returns immediately. When the queue is full
// the event is dropped with a warning; Publish never fails.
func (o *Outbox) Publish(_ context.Context, topic string, event *collab.Event) error {
	o.mu.Lock()
	if len(o.queue) >= o.opts.Capacity {
		o.dropped++
		o.mu.Unlock()
		o.logger.Warn("outbox full, dropping event", "topic", topic, "event", string(event.Type))
		return nil
	}
	o.queue = append(o.queue, &entry{topic: topic, event: event})
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

// ProcessNext delivers the event at the head of the queue. A delivered event
// is removed. A failed one stays at the head until it has used up its
// attempts, then it is dropped. Returns false when the queue is empty.
func (o *Outbox) ProcessNext(ctx context.Context) (bool, error) {
	o.mu.Lock()
	if len(o.queue) == 0 {
		o.mu.Unlock()
		return false, nil
	}
	e := o.queue[0]
	o.mu.Unlock()

	// Deliver outside the lock so Publish never waits on the network.
	err := o.inner.Publish(ctx, e.topic, e.event)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err == nil {
		o.pop()
		o.delivered++
		return true, nil
	}

	e.attempts++
	if e.attempts >= o.opts.MaxRetries {
		o.pop()
		o.dropped++
		o.logger.Error("dropping event after retries",
			"topic", e.topic, "event", string(e.event.Type), "attempts", e.attempts, "error", err)
	} else {
		o.logger.Warn("publish failed, will retry",
			"topic", e.topic, "event", string(e.event.Type), "attempt", e.attempts, "error", err)
	}
	return true, err
}

func (o *Outbox) pop() {
	o.queue[0] = nil
	o.queue = o.queue[1:]
}

// Run drains the queue until ctx is done. Events still queued at that point
// are delivered on a best-effort basis by Flush.
func (o *Outbox) Run(ctx context.Context) {
	for {
		processed, err := o.ProcessNext(ctx)
		switch {
		case err != nil:
			o.mu.Lock()
			attempts := 1
			if len(o.queue) > 0 {
				attempts = max(o.queue[0].attempts, 1)
			}
			o.mu.Unlock()
			if !sleep(ctx, o.opts.Backoff*time.Duration(attempts)) {
				return
			}
		case !processed:
			select {
			case <-o.notify:
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// Flush delivers queued events until the queue is empty or ctx is done.
// Failures count against each event's attempts as usual.
func (o *Outbox) Flush(ctx context.Context) {
	for ctx.Err() == nil {
		processed, _ := o.ProcessNext(ctx)
		if !processed {
			return
		}
	}
}

// Stats returns delivery counters.
func (o *Outbox) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{Delivered: o.delivered, Dropped: o.dropped, Queued: len(o.queue)}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
