package rendezvous

import "errors"

// ErrTimeout indicates no confirmation event arrived within the wait window.
var ErrTimeout = errors.New("rendezvous: timed out waiting for event")
