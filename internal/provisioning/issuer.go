package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/smartpot-io/smartpot-core/internal/infrastructure/config"
	"github.com/smartpot-io/smartpot-core/internal/infrastructure/mqtt"
)

// ErrIssueFailed indicates the credential could not be delivered to the
// broker. The one-shot connection leaves no broker-side state, so
// issuance can be retried.
var ErrIssueFailed = errors.New("provisioning: credential issuance failed")

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

// credentialPayload is the users/add wire format.
type credentialPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// publisher is the slice of mqtt.Client the issuer needs.
type publisher interface {
	PublishJSON(topic string, v any) error
	Close() error
}

// connectFunc opens a one-shot broker connection. Swappable in tests.
type connectFunc func(cfg config.MQTTConfig, timeout time.Duration) (publisher, error)

// Issuer publishes one-shot broker credentials for pots.
type Issuer struct {
	cfg     config.MQTTConfig
	topic   string
	timeout time.Duration

	connect connectFunc
	logger  Logger
}

// NewIssuer creates a credential issuer.
//
// mqttCfg is the service broker config; the issuer derives a one-shot
// clean-session identity from it. pairingCfg supplies the management
// topic and the overall publish deadline.
func NewIssuer(mqttCfg config.MQTTConfig, pairingCfg config.PairingConfig) *Issuer {
	return &Issuer{
		cfg:     mqttCfg,
		topic:   pairingCfg.CredentialTopic,
		timeout: time.Duration(pairingCfg.PublishTimeout) * time.Second,
		connect: func(cfg config.MQTTConfig, timeout time.Duration) (publisher, error) {
			return mqtt.ConnectWithTimeout(cfg, timeout)
		},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the issuer.
func (i *Issuer) SetLogger(logger Logger) {
	i.logger = logger
}

// Issue generates a credential for the pot and delivers it to the broker.
//
// The password is a 32-character random hex string; the pot id is the
// username. Connection attempts retry with exponential backoff until the
// configured deadline, after which ErrIssueFailed is returned.
//
// Returns:
//   - string: The generated password, for one-time display to the user
//   - error: ErrIssueFailed if delivery did not happen
func (i *Issuer) Issue(ctx context.Context, potID string) (string, error) {
	password := newCredential()

	oneShot := i.cfg
	oneShot.Session.Persistent = false
	oneShot.Broker.ClientID = i.cfg.Broker.ClientID + "-provisioner"

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	var client publisher
	connect := func() error {
		var err error
		client, err = i.connect(oneShot, i.timeout)
		return err
	}
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(connect, policy); err != nil {
		return "", fmt.Errorf("%w: connecting for pot %s: %w", ErrIssueFailed, potID, err)
	}
	defer client.Close()

	payload := credentialPayload{Username: potID, Password: password}
	if err := client.PublishJSON(i.topic, payload); err != nil {
		return "", fmt.Errorf("%w: publishing for pot %s: %w", ErrIssueFailed, potID, err)
	}

	i.logger.Info("broker credential issued", "pot_id", potID, "topic", i.topic)
	return password, nil
}

// newCredential generates a 32-character hex password.
func newCredential() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
