// Package ingress moves device events from MQTT into the domain layer.
//
// # Pipeline
//
//	broker → mqtt.Client → Dispatcher → per-class Queue → Worker → pot.Service
//
// The MQTT network goroutine must never block on database work, so the
// dispatcher's only job is classification: validate that the payload is
// JSON, extract the pot id from the topic, and enqueue onto the matching
// event class queue. Workers drain the queues and do the real work.
//
// # Event classes
//
// Each event class (telemetry, watering status, hard reset) has its own
// queue and worker, so a burst of telemetry cannot starve reset
// confirmations. One worker per class keeps per-pot ordering within a
// class intact.
//
// # Backpressure
//
// Queues are large buffered channels. When a queue is full the event is
// dropped and counted; ingest favours bounded memory over lossless
// delivery, and QoS 1 telemetry is dense enough that isolated drops are
// harmless.
package ingress
