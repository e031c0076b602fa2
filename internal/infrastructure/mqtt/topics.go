package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Smart Pot MQTT hierarchy.
//
// Device topics use the flat scheme: devices/{pot_id}/{channel}. The pot id
// is always the second segment, which keeps extraction trivial on ingress.
const (
	// TopicPrefixDevices is the base for all per-pot device topics.
	TopicPrefixDevices = "devices"

	// TopicPrefixBackend is the base for backend service topics.
	TopicPrefixBackend = "backend"

	// TopicProvisioningAddUser is the broker management topic that issues
	// per-pot broker credentials. The broker's auth plugin consumes it.
	TopicProvisioningAddUser = "users/add"
)

// Topics provides builders for Smart Pot MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceWateringCommand("POT1")
//	// Returns: "devices/POT1/watering/cmd"
type Topics struct{}

// =============================================================================
// Inbound device topics (pot firmware → backend)
// =============================================================================

// DeviceTelemetry returns the topic a pot publishes sensor readings on.
//
// Example: devices/POT1/telemetry
func (Topics) DeviceTelemetry(potID string) string {
	return fmt.Sprintf("%s/%s/telemetry", TopicPrefixDevices, potID)
}

// DeviceWateringStatus returns the topic a pot reports watering state on.
//
// Example: devices/POT1/watering/status
func (Topics) DeviceWateringStatus(potID string) string {
	return fmt.Sprintf("%s/%s/watering/status", TopicPrefixDevices, potID)
}

// DeviceHardReset returns the topic a pot announces a completed factory
// reset on. Transfer orchestration waits on these events.
//
// Example: devices/POT1/hard-reset
func (Topics) DeviceHardReset(potID string) string {
	return fmt.Sprintf("%s/%s/hard-reset", TopicPrefixDevices, potID)
}

// =============================================================================
// Outbound device topics (backend → pot firmware)
// =============================================================================

// DeviceWateringCommand returns the topic for watering commands to a pot.
//
// Example: devices/POT1/watering/cmd
func (Topics) DeviceWateringCommand(potID string) string {
	return fmt.Sprintf("%s/%s/watering/cmd", TopicPrefixDevices, potID)
}

// DeviceConfigCommand returns the topic for configuration pushes to a pot.
//
// Example: devices/POT1/config/cmd
func (Topics) DeviceConfigCommand(potID string) string {
	return fmt.Sprintf("%s/%s/config/cmd", TopicPrefixDevices, potID)
}

// =============================================================================
// Backend topics
// =============================================================================

// BackendStatus returns the backend online/offline status topic.
// Published retained; the LWT targets the same topic.
//
// Example: backend/status
func (Topics) BackendStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixBackend)
}

// ProvisioningAddUser returns the broker credential-issuance topic.
//
// Example: users/add
func (Topics) ProvisioningAddUser() string {
	return TopicProvisioningAddUser
}

// =============================================================================
// Wildcard patterns for subscriptions
// =============================================================================

// AllTelemetry returns a pattern matching telemetry from every pot.
//
// Pattern: devices/+/telemetry
func (Topics) AllTelemetry() string {
	return fmt.Sprintf("%s/+/telemetry", TopicPrefixDevices)
}

// AllWateringStatus returns a pattern matching watering status from every pot.
//
// Pattern: devices/+/watering/status
func (Topics) AllWateringStatus() string {
	return fmt.Sprintf("%s/+/watering/status", TopicPrefixDevices)
}

// AllHardReset returns a pattern matching hard-reset events from every pot.
//
// Pattern: devices/+/hard-reset
func (Topics) AllHardReset() string {
	return fmt.Sprintf("%s/+/hard-reset", TopicPrefixDevices)
}

// AllDeviceTopics returns a pattern matching all device topics.
// Use with caution - this receives ALL device traffic.
//
// Pattern: devices/#
func (Topics) AllDeviceTopics() string {
	return fmt.Sprintf("%s/#", TopicPrefixDevices)
}

// PotIDFromTopic extracts the pot id from a device topic.
//
// Every per-pot topic places the id in the second segment
// ("devices/{pot_id}/..."), so no per-channel parsing is needed.
//
// Returns:
//   - string: The pot id
//   - error: ErrInvalidTopic if the topic has no second segment
func PotIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("%w: no pot id in %q", ErrInvalidTopic, topic)
	}
	return parts[1], nil
}
