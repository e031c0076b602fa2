package ingress

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smartpot-io/smartpot-core/internal/pot"
)

// EventService receives device-originated events.
// Implemented by pot.Service.
type EventService interface {
	RecordTelemetry(ctx context.Context, potID string, t pot.Telemetry) error
	RecordWateringStatus(ctx context.Context, potID string, watering bool) error
}

// ResetSignaller delivers hard-reset confirmations to waiting transfers.
// Implemented by rendezvous.Registry.
type ResetSignaller interface {
	Signal(potID string, timestamp float64) bool
}

// Handler processes one classified message.
type Handler func(ctx context.Context, msg Message) error

// Worker drains one event class queue.
//
// A handler error is logged and the loop continues; one bad payload must
// not stop the class. The worker exits when ctx is cancelled.
type Worker struct {
	queue   *Queue
	handler Handler
	logger  Logger
}

// NewWorker creates a worker for a queue.
func NewWorker(queue *Queue, handler Handler) *Worker {
	return &Worker{
		queue:   queue,
		handler: handler,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the worker.
func (w *Worker) SetLogger(logger Logger) {
	w.logger = logger
}

// Run processes messages until ctx is cancelled.
// Blocks; callers run it in a goroutine.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", "queue", w.queue.Name())
			return
		case msg := <-w.queue.Messages():
			if err := w.handler(ctx, msg); err != nil {
				w.logger.Error("event processing failed",
					"queue", w.queue.Name(),
					"topic", msg.Topic,
					"pot_id", msg.PotID,
					"error", err,
				)
			}
		}
	}
}

// =============================================================================
// Event class handlers
// =============================================================================

// wateringStatusPayload is the devices/{id}/watering/status wire format.
type wateringStatusPayload struct {
	Water int `json:"water"`
}

// hardResetPayload is the devices/{id}/hard-reset wire format.
type hardResetPayload struct {
	Timestamp float64 `json:"timestamp"`
}

// TelemetryHandler decodes telemetry payloads and records them.
func TelemetryHandler(svc EventService) Handler {
	return func(ctx context.Context, msg Message) error {
		var t pot.Telemetry
		if err := json.Unmarshal(msg.Payload, &t); err != nil {
			return fmt.Errorf("decoding telemetry: %w", err)
		}
		return svc.RecordTelemetry(ctx, msg.PotID, t)
	}
}

// WateringStatusHandler decodes pump state reports and records them.
func WateringStatusHandler(svc EventService) Handler {
	return func(ctx context.Context, msg Message) error {
		var p wateringStatusPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decoding watering status: %w", err)
		}
		if p.Water != 0 && p.Water != 1 {
			return fmt.Errorf("invalid water value %d", p.Water)
		}
		return svc.RecordWateringStatus(ctx, msg.PotID, p.Water == 1)
	}
}

// HardResetHandler decodes reset confirmations and signals waiting transfers.
func HardResetHandler(signaller ResetSignaller) Handler {
	return func(_ context.Context, msg Message) error {
		var p hardResetPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("decoding hard-reset event: %w", err)
		}
		// Nobody waiting (or queue full) is normal: resets can happen
		// outside a transfer.
		signaller.Signal(msg.PotID, p.Timestamp)
		return nil
	}
}
