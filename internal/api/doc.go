// Package api provides the HTTP REST API server for Smart Pot Core.
//
// It exposes account registration and login, pot pairing and ownership
// transfer, watering and configuration commands, and measurement history
// to mobile and web clients.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// The ownership-transfer endpoint is a deliberate long-poll: it blocks
// until the pot confirms a physical hard reset or the rendezvous window
// closes. The HTTP write timeout is validated at config load to exceed
// that window.
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
