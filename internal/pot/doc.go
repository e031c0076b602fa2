// Package pot implements the Smart Pot domain: pot records, user
// connections, sensor measurements, and the orchestration flows that tie
// MQTT device traffic to persistent state.
//
// # Architecture
//
// The package is split into:
//   - Repository: SQLite-backed persistence (pots, connections, measures)
//   - Service: orchestration over the repository, MQTT publisher,
//     hard-reset rendezvous, and credential provisioning
//
// Ingress workers call the Record* methods for device-originated events;
// the HTTP API calls the command and orchestration methods for
// user-originated actions.
//
// # Ownership Model
//
// A pot has at most one active owner at any time, enforced by a partial
// unique index in SQLite. The first user ever to pair with a pot becomes
// its owner and administrator; later users join as plain active
// connections. Ownership moves only through TransferOwnership, which
// requires the pot to confirm a factory reset over MQTT first.
package pot
