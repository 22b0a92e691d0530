package sse

import (
	"iter"
	"sync"
	"time"
)

// lastEventIDTracker watches the events of one connection as they are
// delivered and remembers what the next connection needs from them.
// Its values must be read only after Done is closed.
type lastEventIDTracker struct {
	done chan struct{}
	last EventID
	// The last reconnection time sent by the server.
	retry time.Duration
	count int
	once  sync.Once
}

// trackLastEventID returns events unchanged, but observed by the returned
// tracker. The tracker resolves when the sequence ends for any reason; if
// the sequence is never iterated, resolve must be called explicitly.
func trackLastEventID(events iter.Seq[Event], initial EventID) (iter.Seq[Event], *lastEventIDTracker) {
	t := &lastEventIDTracker{last: initial, done: make(chan struct{})}

	return func(yield func(Event) bool) {
		defer t.resolve()

		for ev := range events {
			t.observe(ev)
			if !yield(ev) {
				return
			}
		}
	}, t
}

func (t *lastEventIDTracker) observe(ev Event) {
	t.count++
	if ev.ID.IsSet() {
		t.last = ev.ID
	}
	if ev.Retry > 0 {
		t.retry = ev.Retry
	}
}

func (t *lastEventIDTracker) resolve() {
	t.once.Do(func() { close(t.done) })
}

// Done is closed once the observed sequence has ended.
func (t *lastEventIDTracker) Done() <-chan struct{} {
	return t.done
}

// LastEventID returns the ID of the last event with an ID that was
// observed, or the initial ID if there was no such event.
func (t *lastEventIDTracker) LastEventID() EventID {
	return t.last
}
