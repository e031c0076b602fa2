package rendezvous

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Queue capacity per pot. A pot emits at most a handful of hard-reset events
// per transfer; 16 absorbs duplicates without ever blocking the signaller.
const queueCapacity = 16

// pollSlice bounds how long a single blocking receive inside Wait can last,
// so cancellation and the deadline are both observed within a second.
const pollSlice = time.Second

// Event is a device confirmation delivered to a waiter.
type Event struct {
	PotID     string
	Timestamp float64
}

// Registry holds per-pot event queues for signal/wait coordination.
//
// The zero value is not usable; construct with New.
type Registry struct {
	mu     sync.Mutex
	queues map[string]chan Event
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		queues: make(map[string]chan Event),
	}
}

// queue returns the pot's event queue, creating it on first use.
func (r *Registry) queue(potID string) chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[potID]
	if !ok {
		q = make(chan Event, queueCapacity)
		r.queues[potID] = q
	}
	return q
}

// Signal delivers an event to the pot's queue without blocking.
//
// If the queue is full the event is dropped and Signal reports false.
// Ingress workers call this from their event loop; they must never stall
// behind a slow or absent waiter.
func (r *Registry) Signal(potID string, timestamp float64) bool {
	select {
	case r.queue(potID) <- Event{PotID: potID, Timestamp: timestamp}:
		return true
	default:
		return false
	}
}

// Wait blocks until the pot delivers an event that arrives after this call,
// or the timeout elapses.
//
// Events already queued when Wait begins are stale: they belong to an
// earlier reset or a duplicate delivery, and are drained and discarded
// before waiting starts. Only a fresh event satisfies the wait.
//
// The wait polls in slices of at most one second so ctx cancellation is
// honoured promptly even with long timeouts.
//
// Returns:
//   - Event: The confirmation that arrived
//   - error: ErrTimeout after the window closes, or ctx.Err() on cancellation
func (r *Registry) Wait(ctx context.Context, potID string, timeout time.Duration) (Event, error) {
	q := r.queue(potID)

	// Drain stale events.
drain:
	for {
		select {
		case <-q:
		default:
			break drain
		}
	}

	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(pollSlice)
	defer timer.Stop()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Event{}, fmt.Errorf("%w: pot %s after %v", ErrTimeout, potID, timeout)
		}

		slice := pollSlice
		if remaining < slice {
			slice = remaining
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(slice)

		select {
		case ev := <-q:
			return ev, nil
		case <-ctx.Done():
			return Event{}, fmt.Errorf("rendezvous: pot %s: %w", potID, ctx.Err())
		case <-timer.C:
			// Slice expired; loop re-checks the deadline.
		}
	}
}

// QueueCount returns the number of pot queues created so far.
// Useful for monitoring; queues are never removed.
func (r *Registry) QueueCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
