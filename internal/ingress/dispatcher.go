package ingress

import (
	"encoding/json"
	"fmt"

	"github.com/smartpot-io/smartpot-core/internal/infrastructure/mqtt"
)

// Logger interface for optional logging support.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// route binds a topic pattern to an event class queue.
type route struct {
	pattern string
	queue   *Queue
}

// Dispatcher classifies incoming MQTT messages onto event class queues.
//
// Routes are evaluated in registration order; the first pattern that
// matches the topic wins. Registration happens once at startup, before
// any message flows, so no locking is needed on the hot path.
type Dispatcher struct {
	routes []route
	logger Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{logger: noopLogger{}}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Route registers a queue for topics matching the given pattern.
// Call before the MQTT subscription goes live.
func (d *Dispatcher) Route(pattern string, queue *Queue) {
	d.routes = append(d.routes, route{pattern: pattern, queue: queue})
}

// HandleMessage classifies one incoming message. It satisfies
// mqtt.MessageHandler and runs on the network goroutine: validate,
// extract, enqueue, return.
//
// Malformed payloads and unroutable topics are dropped with a log line;
// a bad device must never wedge the pipeline.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) error {
	if !json.Valid(payload) {
		d.logger.Warn("dropping non-JSON payload", "topic", topic, "bytes", len(payload))
		return nil
	}

	potID, err := mqtt.PotIDFromTopic(topic)
	if err != nil {
		d.logger.Warn("dropping message without pot id", "topic", topic, "error", err)
		return nil
	}

	for _, r := range d.routes {
		if !mqtt.TopicMatches(r.pattern, topic) {
			continue
		}
		msg := Message{Topic: topic, PotID: potID, Payload: payload}
		if !r.queue.Enqueue(msg) {
			d.logger.Error("queue full, dropping event",
				"queue", r.queue.Name(),
				"topic", topic,
				"dropped_total", r.queue.Dropped(),
			)
			return fmt.Errorf("ingress: queue %s full", r.queue.Name())
		}
		return nil
	}

	d.logger.Debug("no route for topic", "topic", topic)
	return nil
}
