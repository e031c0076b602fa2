package ingress

import "sync/atomic"

// DefaultQueueCapacity is the buffer size for event class queues.
// Sized for bursts (a whole fleet reporting at once), not sustained
// overload; a full queue drops.
const DefaultQueueCapacity = 1024

// Message is a classified device event awaiting processing.
type Message struct {
	Topic   string
	PotID   string
	Payload []byte
}

// Queue is a bounded event class queue with drop-counting overflow.
type Queue struct {
	name    string
	ch      chan Message
	dropped atomic.Uint64
}

// NewQueue creates a queue for one event class.
func NewQueue(name string, capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		name: name,
		ch:   make(chan Message, capacity),
	}
}

// Name returns the event class name.
func (q *Queue) Name() string {
	return q.name
}

// Enqueue adds a message without blocking. A full queue drops the message
// and reports false; the dispatcher must never stall the network goroutine.
func (q *Queue) Enqueue(msg Message) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Messages returns the receive side of the queue for a worker loop.
func (q *Queue) Messages() <-chan Message {
	return q.ch
}

// Depth returns the number of queued messages.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Dropped returns the total number of messages dropped on overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
