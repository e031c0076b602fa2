package pot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartpot-io/smartpot-core/internal/infrastructure/mqtt"
	"github.com/smartpot-io/smartpot-core/internal/rendezvous"
)

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

// UserDirectory answers user existence checks for pairing and transfer.
// Implemented by auth.SQLiteUserRepository.
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// CommandPublisher publishes device commands. Implemented by mqtt.Client.
type CommandPublisher interface {
	PublishJSON(topic string, v any) error
}

// ResetWaiter blocks until a pot confirms a factory reset.
// Implemented by rendezvous.Registry.
type ResetWaiter interface {
	Wait(ctx context.Context, potID string, timeout time.Duration) (rendezvous.Event, error)
}

// CredentialIssuer provisions broker credentials for a pot.
// Implemented by provisioning.Issuer.
type CredentialIssuer interface {
	Issue(ctx context.Context, potID string) (string, error)
}

// Mirror receives copies of device events for time-series storage.
// Implemented by influxdb.Client; mirror failures never fail ingest.
type Mirror interface {
	WriteMeasurement(potID string, airTemp, airPressure float64, soilMoisture, illuminance int, timestamp time.Time)
	WriteWateringEvent(potID string, watering bool)
}

// Service orchestrates pot operations across persistence, MQTT, the
// hard-reset rendezvous, and credential provisioning.
//
// All public methods are safe for concurrent use.
type Service struct {
	repo        Repository
	users       UserDirectory
	commands    CommandPublisher
	resets      ResetWaiter
	credentials CredentialIssuer

	resetTimeout time.Duration

	mirror Mirror
	logger Logger
}

// NewService creates a pot service.
//
// resetTimeout bounds how long TransferOwnership waits for a pot to confirm
// its factory reset.
func NewService(repo Repository, users UserDirectory, commands CommandPublisher, resets ResetWaiter, credentials CredentialIssuer, resetTimeout time.Duration) *Service {
	return &Service{
		repo:         repo,
		users:        users,
		commands:     commands,
		resets:       resets,
		credentials:  credentials,
		resetTimeout: resetTimeout,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetMirror enables time-series mirroring of device events.
func (s *Service) SetMirror(mirror Mirror) {
	s.mirror = mirror
}

// =============================================================================
// Device-originated events (called by ingress workers)
// =============================================================================

// RecordTelemetry persists a sensor reading from a pot.
//
// Unknown pots are registered on the fly with default configuration;
// firmware can start publishing before anyone pairs with the pot.
func (s *Service) RecordTelemetry(ctx context.Context, potID string, t Telemetry) error {
	if t.Data.Lux < 0 || t.Data.Moi < 0 {
		return fmt.Errorf("%w: negative lux or moisture", ErrInvalidMeasurement)
	}

	if _, err := s.repo.Ensure(ctx, potID); err != nil {
		return fmt.Errorf("registering pot %s: %w", potID, err)
	}

	m := Measure{
		PotID:        potID,
		Timestamp:    int64(t.Timestamp),
		AirTemp:      t.Data.Tem,
		AirPressure:  t.Data.Pre,
		SoilMoisture: t.Data.Moi,
		Illuminance:  t.Data.Lux,
	}
	if err := s.repo.InsertMeasurement(ctx, m); err != nil {
		return fmt.Errorf("recording telemetry for pot %s: %w", potID, err)
	}

	if s.mirror != nil {
		s.mirror.WriteMeasurement(potID, m.AirTemp, m.AirPressure, m.SoilMoisture, m.Illuminance, time.Unix(m.Timestamp, 0).UTC())
	}

	s.logger.Debug("telemetry recorded", "pot_id", potID, "timestamp", m.Timestamp)
	return nil
}

// RecordWateringStatus persists a pump state report from a pot.
func (s *Service) RecordWateringStatus(ctx context.Context, potID string, watering bool) error {
	if _, err := s.repo.Ensure(ctx, potID); err != nil {
		return fmt.Errorf("registering pot %s: %w", potID, err)
	}
	if err := s.repo.SetWatering(ctx, potID, watering); err != nil {
		return fmt.Errorf("recording watering status for pot %s: %w", potID, err)
	}

	if s.mirror != nil {
		s.mirror.WriteWateringEvent(potID, watering)
	}

	s.logger.Info("watering status recorded", "pot_id", potID, "watering", watering)
	return nil
}

// =============================================================================
// User-originated commands (called by the HTTP API)
// =============================================================================

// Water commands a pot to run its pump for the given number of seconds.
func (s *Service) Water(ctx context.Context, potID string, durationSec int) error {
	if durationSec <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, durationSec)
	}
	if err := s.requirePot(ctx, potID); err != nil {
		return err
	}

	topic := mqtt.Topics{}.DeviceWateringCommand(potID)
	if err := s.commands.PublishJSON(topic, wateringCommand{Duration: durationSec}); err != nil {
		return fmt.Errorf("publishing watering command for pot %s: %w", potID, err)
	}

	s.logger.Info("watering command sent", "pot_id", potID, "duration_sec", durationSec)
	return nil
}

// wateringCommand is the devices/{id}/watering/cmd payload.
type wateringCommand struct {
	Duration int `json:"dur"`
}

// PushConfig sends a configuration to a pot and persists it.
//
// The publish happens first: a configuration the device never received
// must not be recorded as current.
func (s *Service) PushConfig(ctx context.Context, potID string, cfg DeviceConfig) error {
	if err := validateDeviceConfig(cfg); err != nil {
		return err
	}
	if err := s.requirePot(ctx, potID); err != nil {
		return err
	}

	topic := mqtt.Topics{}.DeviceConfigCommand(potID)
	if err := s.commands.PublishJSON(topic, cfg); err != nil {
		return fmt.Errorf("publishing config for pot %s: %w", potID, err)
	}

	if err := s.repo.UpdateConfig(ctx, potID, cfg); err != nil {
		return fmt.Errorf("persisting config for pot %s: %w", potID, err)
	}

	s.logger.Info("configuration pushed", "pot_id", potID)
	return nil
}

// validateDeviceConfig checks a configuration before it reaches firmware.
func validateDeviceConfig(cfg DeviceConfig) error {
	if cfg.Lux < 0 {
		return fmt.Errorf("%w: negative illuminance type", ErrInvalidConfig)
	}
	if cfg.Sle <= 0 {
		return fmt.Errorf("%w: measure interval must be positive", ErrInvalidConfig)
	}
	for i, m := range cfg.Moi {
		if m < 0 || m > 100 {
			return fmt.Errorf("%w: moisture threshold %d out of range", ErrInvalidConfig, i)
		}
		if i > 0 && m < cfg.Moi[i-1] {
			return fmt.Errorf("%w: moisture thresholds must be non-decreasing", ErrInvalidConfig)
		}
	}
	if cfg.Tem[0] >= cfg.Tem[1] {
		return fmt.Errorf("%w: min temperature must be below max", ErrInvalidConfig)
	}
	return nil
}

// Pair connects a user to a pot.
//
// The requester becomes owner and admin when the pot currently has no
// active owner, or when they already own it; otherwise they join as a
// plain active connection. The owner pairing that first delivers the
// pot's broker credential is its first pairing; until delivery succeeds
// the owner can call Pair again and issuance is retried.
func (s *Service) Pair(ctx context.Context, potID, userID string) (PairResult, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return PairResult{}, err
	}

	created, err := s.repo.Ensure(ctx, potID)
	if err != nil {
		return PairResult{}, fmt.Errorf("registering pot %s: %w", potID, err)
	}

	issued := false
	if !created {
		issued, err = s.repo.CredentialIssued(ctx, potID)
		if err != nil {
			return PairResult{}, fmt.Errorf("checking credential state of pot %s: %w", potID, err)
		}
	}

	asOwner := created
	if !asOwner {
		owner, err := s.repo.ActiveOwner(ctx, potID)
		switch {
		case errors.Is(err, ErrNoOwner):
			asOwner = true
		case err != nil:
			return PairResult{}, fmt.Errorf("checking ownership of pot %s: %w", potID, err)
		case owner == userID:
			asOwner = true
		}
	}

	conn := Connection{
		PotID:    potID,
		UserID:   userID,
		IsActive: true,
		IsAdmin:  asOwner,
		IsOwner:  asOwner,
	}
	err = s.repo.CreateConnection(ctx, conn)
	if errors.Is(err, ErrOwnerConflict) {
		// Lost the race for the vacant owner slot; join as a plain member.
		conn.IsAdmin = false
		conn.IsOwner = false
		err = s.repo.CreateConnection(ctx, conn)
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyConnected) && conn.IsOwner && !issued:
		// The owner's earlier pairing wrote the connection but issuance
		// failed; fall through and deliver the credential now.
	default:
		return PairResult{}, fmt.Errorf("connecting user %s to pot %s: %w", userID, potID, err)
	}

	result := PairResult{
		PotID:   potID,
		UserID:  userID,
		IsOwner: conn.IsOwner,
		IsAdmin: conn.IsAdmin,
	}

	// Only the owner pairing delivers the credential, and only while it
	// has never been delivered. A later owner vacancy must not mint a
	// second broker identity; the flag stays unset across a failed
	// delivery so the owner's retry issues again.
	if conn.IsOwner && !issued {
		credential, err := s.credentials.Issue(ctx, potID)
		if err != nil {
			return PairResult{}, fmt.Errorf("issuing credential for pot %s: %w", potID, err)
		}
		if err := s.repo.MarkCredentialIssued(ctx, potID); err != nil {
			return PairResult{}, fmt.Errorf("recording credential issuance for pot %s: %w", potID, err)
		}
		result.FirstPairing = true
		result.Credential = credential
	}

	s.logger.Info("pairing completed",
		"pot_id", potID,
		"user_id", userID,
		"owner", result.IsOwner,
		"first_pairing", result.FirstPairing,
	)
	return result, nil
}

// TransferOwnership moves a pot to a new owner.
//
// The flow is: verify pot and user, wait for the pot to confirm a factory
// reset (the outgoing owner physically resets the device), then swap the
// owning connection. Each failure class surfaces distinctly:
//   - ErrPotNotFound / ErrUserNotFound before anything happens
//   - ErrResetTimeout when no confirmation arrives in time
//   - ErrTransferIncomplete when the reset happened but the swap failed;
//     the reset is irreversible, so this is reported, never retried
func (s *Service) TransferOwnership(ctx context.Context, potID, newUserID string) error {
	if err := s.requirePot(ctx, potID); err != nil {
		return err
	}
	if err := s.requireUser(ctx, newUserID); err != nil {
		return err
	}

	s.logger.Info("awaiting reset confirmation", "pot_id", potID, "timeout", s.resetTimeout)

	ev, err := s.resets.Wait(ctx, potID, s.resetTimeout)
	if err != nil {
		if errors.Is(err, rendezvous.ErrTimeout) {
			return fmt.Errorf("%w: pot %s", ErrResetTimeout, potID)
		}
		return fmt.Errorf("waiting for reset of pot %s: %w", potID, err)
	}

	if err := s.repo.TransferOwner(ctx, potID, newUserID); err != nil {
		s.logger.Error("ownership swap failed after confirmed reset",
			"pot_id", potID,
			"new_user_id", newUserID,
			"reset_timestamp", ev.Timestamp,
			"error", err,
		)
		return fmt.Errorf("%w: pot %s: %v", ErrTransferIncomplete, potID, err)
	}

	s.logger.Info("ownership transferred", "pot_id", potID, "new_user_id", newUserID)
	return nil
}

// =============================================================================
// Queries
// =============================================================================

// Get returns a pot by id.
func (s *Service) Get(ctx context.Context, potID string) (*Pot, error) {
	return s.repo.Get(ctx, potID)
}

// Measurements returns up to count readings for a pot, newest first.
func (s *Service) Measurements(ctx context.Context, potID string, count int) ([]Measure, error) {
	if err := s.requirePot(ctx, potID); err != nil {
		return nil, err
	}
	return s.repo.ListMeasurements(ctx, potID, count)
}

// WateringStatus returns whether the pot's pump is currently running.
func (s *Service) WateringStatus(ctx context.Context, potID string) (bool, error) {
	p, err := s.repo.Get(ctx, potID)
	if err != nil {
		return false, err
	}
	return p.IsWatering, nil
}

// UserPots returns the pots a user holds an active connection to.
func (s *Service) UserPots(ctx context.Context, userID string) ([]Pot, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListUserPots(ctx, userID)
}

// requirePot fails with ErrPotNotFound when the pot is not registered.
func (s *Service) requirePot(ctx context.Context, potID string) error {
	exists, err := s.repo.Exists(ctx, potID)
	if err != nil {
		return fmt.Errorf("checking pot %s: %w", potID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrPotNotFound, potID)
	}
	return nil
}

// requireUser fails with ErrUserNotFound when the user is not registered.
func (s *Service) requireUser(ctx context.Context, userID string) error {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("checking user %s: %w", userID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return nil
}
