package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"collab-go/internal/collab"
)

// flakyDispatcher fails the first failures calls, then records events.
type flakyDispatcher struct {
	mu       sync.Mutex
	failures int
	calls    int
	got      []string
}

func (d *flakyDispatcher) Publish(_ context.Context, topic string, e *collab.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.failures > 0 {
		d.failures--
		return errors.New("broker unavailable")
	}
	d.got = append(d.got, topic+"/"+string(e.Type))
	return nil
}

func (d *flakyDispatcher) delivered() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.got...)
}

func event(t collab.EventType) *collab.Event {
	return &collab.Event{Type: t, SpaceID: "s", ContentID: "c"}
}

func TestOutbox_ProcessNext(t *testing.T) {
	ctx := context.Background()

	t.Run("empty queue", func(t *testing.T) {
		o := New(&flakyDispatcher{}, collab.NewNopLogger(), Options{})
		processed, err := o.ProcessNext(ctx)
		if processed || err != nil {
			t.Errorf("ProcessNext() = %v, %v; want false, nil", processed, err)
		}
	})

	t.Run("delivers in order", func(t *testing.T) {
		d := &flakyDispatcher{}
		o := New(d, collab.NewNopLogger(), Options{})
		o.Publish(ctx, "t1", event(collab.EventOperationCommitted))
		o.Publish(ctx, "t2", event(collab.EventCommentCreated))

		o.Flush(ctx)

		got := d.delivered()
		want := []string{"t1/operation.committed", "t2/comment.created"}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("delivered = %v, want %v", got, want)
		}
		if s := o.Stats(); s.Delivered != 2 || s.Queued != 0 {
			t.Errorf("Stats() = %+v", s)
		}
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		d := &flakyDispatcher{failures: 2}
		o := New(d, collab.NewNopLogger(), Options{MaxRetries: 3})
		o.Publish(ctx, "t", event(collab.EventVersionSaved))

		for i := 0; i < 2; i++ {
			if _, err := o.ProcessNext(ctx); err == nil {
				t.Fatalf("attempt %d: expected error", i+1)
			}
		}
		if _, err := o.ProcessNext(ctx); err != nil {
			t.Fatalf("third attempt error = %v", err)
		}
		if s := o.Stats(); s.Delivered != 1 || s.Dropped != 0 {
			t.Errorf("Stats() = %+v, want 1 delivered", s)
		}
	})

	t.Run("drops after max retries", func(t *testing.T) {
		d := &flakyDispatcher{failures: 10}
		o := New(d, collab.NewNopLogger(), Options{MaxRetries: 2})
		o.Publish(ctx, "t", event(collab.EventVersionSaved))

		o.ProcessNext(ctx)
		o.ProcessNext(ctx)

		if s := o.Stats(); s.Dropped != 1 || s.Queued != 0 {
			t.Errorf("Stats() = %+v, want 1 dropped and empty queue", s)
		}
		if d.calls != 2 {
			t.Errorf("calls = %d, want 2", d.calls)
		}
	})
}

func TestOutbox_PublishFullQueue(t *testing.T) {
	ctx := context.Background()
	o := New(&flakyDispatcher{}, collab.NewNopLogger(), Options{Capacity: 2})

	for i := 0; i < 3; i++ {
		if err := o.Publish(ctx, "t", event(collab.EventCursorUpdated)); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	if s := o.Stats(); s.Queued != 2 || s.Dropped != 1 {
		t.Errorf("Stats() = %+v, want 2 queued and 1 dropped", s)
	}
}

func TestOutbox_Run(t *testing.T) {
	d := &flakyDispatcher{failures: 1}
	o := New(d, collab.NewNopLogger(), Options{Backoff: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	o.Publish(ctx, "t", event(collab.EventOperationCommitted))

	deadline := time.After(2 * time.Second)
	for len(d.delivered()) == 0 {
		select {
		case <-deadline:
			t.Fatal("event was not delivered")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
