package ingress

import (
	"context"
	"fmt"
	"sync"

	"github.com/smartpot-io/smartpot-core/internal/infrastructure/mqtt"
)

// Subscriber registers topic handlers. Implemented by mqtt.Client.
type Subscriber interface {
	Subscribe(pattern string, qos byte, handler mqtt.MessageHandler) error
}

// Pipeline wires the full ingress path: MQTT subscriptions, the
// dispatcher, the per-class queues, and their workers.
type Pipeline struct {
	dispatcher *Dispatcher

	telemetryQueue *Queue
	wateringQueue  *Queue
	resetQueue     *Queue

	workers []*Worker
	logger  Logger

	wg sync.WaitGroup
}

// NewPipeline builds the ingress pipeline.
//
// Three event classes are routed:
//   - devices/+/telemetry        → telemetry queue → RecordTelemetry
//   - devices/+/watering/status  → watering queue  → RecordWateringStatus
//   - devices/+/hard-reset       → reset queue     → rendezvous signal
func NewPipeline(svc EventService, resets ResetSignaller) *Pipeline {
	p := &Pipeline{
		dispatcher:     NewDispatcher(),
		telemetryQueue: NewQueue("telemetry", DefaultQueueCapacity),
		wateringQueue:  NewQueue("watering_status", DefaultQueueCapacity),
		resetQueue:     NewQueue("hard_reset", DefaultQueueCapacity),
		logger:         noopLogger{},
	}

	topics := mqtt.Topics{}
	p.dispatcher.Route(topics.AllTelemetry(), p.telemetryQueue)
	p.dispatcher.Route(topics.AllWateringStatus(), p.wateringQueue)
	p.dispatcher.Route(topics.AllHardReset(), p.resetQueue)

	p.workers = []*Worker{
		NewWorker(p.telemetryQueue, TelemetryHandler(svc)),
		NewWorker(p.wateringQueue, WateringStatusHandler(svc)),
		NewWorker(p.resetQueue, HardResetHandler(resets)),
	}

	return p
}

// SetLogger sets the logger for the pipeline and its components.
func (p *Pipeline) SetLogger(logger Logger) {
	p.logger = logger
	p.dispatcher.SetLogger(logger)
	for _, w := range p.workers {
		w.SetLogger(logger)
	}
}

// Start subscribes the dispatcher to the device topics and launches the
// workers. Workers run until ctx is cancelled; Stop waits for them.
func (p *Pipeline) Start(ctx context.Context, sub Subscriber, qos byte) error {
	topics := mqtt.Topics{}
	for _, pattern := range []string{
		topics.AllTelemetry(),
		topics.AllWateringStatus(),
		topics.AllHardReset(),
	} {
		if err := sub.Subscribe(pattern, qos, p.dispatcher.HandleMessage); err != nil {
			return fmt.Errorf("subscribing %s: %w", pattern, err)
		}
	}

	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}

	p.logger.Info("ingress pipeline started",
		"queues", 3,
		"queue_capacity", DefaultQueueCapacity,
	)
	return nil
}

// Stop waits for the workers to exit. Cancel the Start ctx first.
func (p *Pipeline) Stop() {
	p.wg.Wait()
}

// Dispatcher exposes the dispatcher, mainly for tests and diagnostics.
func (p *Pipeline) Dispatcher() *Dispatcher {
	return p.dispatcher
}

// QueueStats reports depth and drop counts per event class.
func (p *Pipeline) QueueStats() map[string]QueueStat {
	stats := make(map[string]QueueStat, 3)
	for _, q := range []*Queue{p.telemetryQueue, p.wateringQueue, p.resetQueue} {
		stats[q.Name()] = QueueStat{Depth: q.Depth(), Dropped: q.Dropped()}
	}
	return stats
}

// QueueStat is a point-in-time queue health snapshot.
type QueueStat struct {
	Depth   int    `json:"depth"`
	Dropped uint64 `json:"dropped"`
}
