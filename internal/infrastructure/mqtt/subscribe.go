package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for messages on the specified topic pattern.
//
// Patterns can include MQTT wildcards:
//   - + (single-level): "devices/+/telemetry" matches telemetry from any pot
//   - # (multi-level): "devices/#" matches all device topics
//
// One handler per pattern: subscribing again with a pattern that is already
// registered replaces its handler. Registrations survive reconnects and may
// be made before the connection is up; they are replayed on every successful
// connect, so a nil return here means "registered", not "active on the
// broker right now".
//
// Handlers are invoked on the network goroutine and must hand messages off
// quickly (typically to an ingress queue).
//
// Parameters:
//   - pattern: The topic pattern to subscribe to
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback function invoked for each message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
//
// Example:
//
//	err := client.Subscribe(mqtt.Topics{}.AllTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
func (c *Client) Subscribe(pattern string, qos byte, handler MessageHandler) error {
	// Validate inputs
	if pattern == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	// Track subscription for replay on (re)connect. Recorded before the
	// broker call so a registration made while offline still takes effect.
	c.subMu.Lock()
	c.subscriptions[pattern] = subscription{
		pattern: pattern,
		qos:     qos,
		handler: handler,
	}
	c.subMu.Unlock()

	// Not connected yet: restoreSubscriptions picks this up on connect.
	if !c.IsConnected() {
		return nil
	}

	// Subscribe with wrapped handler (includes panic recovery)
	token := c.client.Subscribe(pattern, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		// Keep the registration; the next reconnect retries it.
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		// Broker rejected the pattern; drop the registration.
		c.subMu.Lock()
		delete(c.subscriptions, pattern)
		c.subMu.Unlock()
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// Unsubscribe removes a subscription and stops receiving messages for a pattern.
//
// After unsubscribing, the handler will no longer be called for new messages
// on this pattern. Any messages in flight may still be delivered.
//
// Parameters:
//   - pattern: The exact topic pattern that was subscribed to
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Unsubscribe(pattern string) error {
	// Validate inputs
	if pattern == "" {
		return ErrInvalidTopic
	}

	// Remove from tracking so it is not replayed on reconnect.
	c.subMu.Lock()
	delete(c.subscriptions, pattern)
	c.subMu.Unlock()

	if !c.IsConnected() {
		return nil
	}

	// Unsubscribe from broker
	token := c.client.Unsubscribe(pattern)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrUnsubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	return nil
}

// SubscriptionCount returns the number of registered subscriptions.
//
// This can be useful for monitoring and debugging.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription checks if a subscription exists for the given pattern.
//
// Note: This checks only the exact pattern string, not pattern matching.
func (c *Client) HasSubscription(pattern string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, exists := c.subscriptions[pattern]
	return exists
}
