// Package rendezvous coordinates orchestration flows with device events.
//
// An owner transfer must not complete until the pot confirms its factory
// reset over MQTT. The HTTP goroutine driving the transfer and the ingress
// worker consuming hard-reset events meet here: the worker calls Signal,
// the orchestrator calls Wait.
//
// Per-pot queues are created lazily on first use and never destroyed; pots
// are few and long-lived, so the map only grows with the fleet.
//
// The contract is single-waiter-at-a-time per pot. Two concurrent Waits on
// the same pot race for the same events and get undefined delivery order;
// callers serialise transfers per pot at a higher level.
package rendezvous
