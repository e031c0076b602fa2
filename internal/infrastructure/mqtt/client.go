package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/smartpot-io/smartpot-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with Smart Pot-specific functionality.
//
// It provides connection management, message publishing, subscription handling,
// and automatic reconnection with exponential backoff. The primary service
// connection runs with a persistent broker session so device events published
// while the backend is briefly offline are delivered on reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// subscriptions tracks registered subscriptions, keyed by the exact
	// pattern string. Registrations made before the connection is up are
	// replayed on the next successful connect; one handler per pattern,
	// re-registering replaces it.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected tracks current connection state. It transitions only on
	// broker acknowledgment of connect/disconnect, never optimistically.
	// connSignal is closed when the connection comes up and replaced with
	// a fresh channel when it goes down; AwaitConnected waits on it.
	connected  bool
	connSignal chan struct{}
	connMu     sync.RWMutex

	// Callbacks for connection events (optional, set via SetOnConnect/SetOnDisconnect).
	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	pattern string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked on the network goroutine and must not block;
// their only job is to hand the message off to an ingress queue.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload (typically JSON)
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker using the default
// connect timeout. See ConnectWithTimeout.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	return ConnectWithTimeout(cfg, defaultConnectTimeout)
}

// ConnectWithTimeout establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS, session mode)
//  2. Configures Last Will and Testament (LWT) for offline detection
//  3. Sets up auto-reconnect with exponential backoff
//  4. Blocks until the broker confirms the connection or timeout elapses
//  5. Publishes online status to the backend status topic
//
// With cfg.Session.Persistent the broker retains subscription state and
// undelivered QoS 1/2 messages across disconnects (MQTT 3.1.1 clean
// session = false, which retains for the protocol's maximum: until the
// next clean-session connect). Non-persistent mode always starts with a
// clean slate and is used for one-shot outbound publishers.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - timeout: Maximum time to wait for broker confirmation
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrConnectTimeout if the broker does not confirm in time,
//     ErrConnectionFailed on broker rejection
func ConnectWithTimeout(cfg config.MQTTConfig, timeout time.Duration) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]subscription),
		connSignal:    make(chan struct{}),
	}

	// Set up connection callbacks
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	// Create and connect
	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: after %v", ErrConnectTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler callback runs asynchronously and may not have
	// executed yet; mark connected here so IsConnected() is true on return.
	// The callback handles subscription replay and status publishing.
	c.setConnected(true)

	return c, nil
}

// setConnected updates the connection state and its signal channel.
// Safe to call redundantly from both the connect path and paho callbacks.
func (c *Client) setConnected(up bool) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	switch {
	case up && !c.connected:
		c.connected = true
		close(c.connSignal)
	case !up && c.connected:
		c.connected = false
		c.connSignal = make(chan struct{})
	}
}

// handleConnect is called when the connection is established (initial or reconnect).
func (c *Client) handleConnect() {
	// Replay subscriptions before flipping the state signal so a caller
	// released by AwaitConnected sees its registrations active.
	c.restoreSubscriptions()

	c.setConnected(true)

	// Publish online status
	c.publishOnlineStatus()

	// Notify callback if set
	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
// Paho then reconnects with exponential backoff (see buildClientOptions);
// ingress workers simply see no new events until the session is back.
func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)

	// Notify callback if set
	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-subscribes to all registered patterns.
//
// With a persistent session the broker usually still has them, but replaying
// is harmless and covers both session expiry and first connect (patterns
// registered while offline).
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		// Re-subscribe at the originally requested QoS (ignore errors
		// during reconnection; the next reconnect replays again)
		c.client.Subscribe(sub.pattern, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishOnlineStatus publishes the backend's online status.
func (c *Client) publishOnlineStatus() {
	topic := Topics{}.BackendStatus()
	payload := buildOnlinePayload(c.cfg.Broker.ClientID)
	c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
}

// Close gracefully disconnects from the MQTT broker, preserving any
// persistent session state on the broker for the next connect.
//
// It performs:
//  1. Publishes graceful offline status (different from LWT crash status)
//  2. Waits for pending publish operations
//  3. Disconnects from broker
//
// Returns:
//   - error: If disconnect fails (connection already closed is not an error)
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	// Check if connected before trying to publish
	if c.IsConnected() {
		// Publish graceful shutdown status
		topic := Topics{}.BackendStatus()
		payload := buildOfflinePayload(c.cfg.Broker.ClientID)
		token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	// Disconnect with quiesce period for pending operations
	c.client.Disconnect(defaultDisconnectQuiesce)

	c.setConnected(false)

	return nil
}

// CloseClearSession disconnects and then discards the broker-side session
// state for this client id.
//
// MQTT 3.1.1 has no explicit session-delete operation; the protocol
// mechanism is a clean-session connect, so this performs a brief
// clean-session connect/disconnect after closing. Used to forcibly reset
// provisioning state.
//
// Returns:
//   - error: If the scrub connect fails; the original session may survive
func (c *Client) CloseClearSession() error {
	if err := c.Close(); err != nil {
		return err
	}

	opts := buildClientOptions(c.cfg)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	scrub := pahomqtt.NewClient(opts)
	token := scrub.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: clearing session: after %v", ErrConnectTimeout, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: clearing session: %w", ErrConnectionFailed, err)
	}
	scrub.Disconnect(defaultDisconnectQuiesce)

	return nil
}

// AwaitConnected blocks until the broker has acknowledged the connection
// or the timeout elapses.
//
// Callers that must not race a connect (e.g. a one-shot publisher right
// after ConnectWithTimeout returns during a reconnect window) wait on
// this signal rather than assuming success.
//
// Returns:
//   - error: ErrConnectTimeout if the connection is not up in time
func (c *Client) AwaitConnected(timeout time.Duration) error {
	c.connMu.RLock()
	if c.connected {
		c.connMu.RUnlock()
		return nil
	}
	signal := c.connSignal
	c.connMu.RUnlock()

	select {
	case <-signal:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: after %v", ErrConnectTimeout, timeout)
	}
}

// HealthCheck verifies the MQTT connection is alive and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
//
// Note: This reflects the last broker-acknowledged state. For reliability,
// use HealthCheck which can perform an active test.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
// A misbehaving device payload must never take down the network goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
