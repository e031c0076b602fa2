package mqtt

import (
	"errors"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"telemetry", topics.DeviceTelemetry("POT1"), "devices/POT1/telemetry"},
		{"watering status", topics.DeviceWateringStatus("POT1"), "devices/POT1/watering/status"},
		{"hard reset", topics.DeviceHardReset("POT1"), "devices/POT1/hard-reset"},
		{"watering command", topics.DeviceWateringCommand("POT1"), "devices/POT1/watering/cmd"},
		{"config command", topics.DeviceConfigCommand("POT1"), "devices/POT1/config/cmd"},
		{"backend status", topics.BackendStatus(), "backend/status"},
		{"provisioning add user", topics.ProvisioningAddUser(), "users/add"},
		{"all telemetry", topics.AllTelemetry(), "devices/+/telemetry"},
		{"all watering status", topics.AllWateringStatus(), "devices/+/watering/status"},
		{"all hard reset", topics.AllHardReset(), "devices/+/hard-reset"},
		{"all device topics", topics.AllDeviceTopics(), "devices/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestWildcardsCoverBuilders(t *testing.T) {
	topics := Topics{}

	// Every concrete inbound topic must be caught by its wildcard pattern.
	pairs := []struct {
		pattern string
		topic   string
	}{
		{topics.AllTelemetry(), topics.DeviceTelemetry("ABC123")},
		{topics.AllWateringStatus(), topics.DeviceWateringStatus("ABC123")},
		{topics.AllHardReset(), topics.DeviceHardReset("ABC123")},
	}

	for _, p := range pairs {
		if !TopicMatches(p.pattern, p.topic) {
			t.Errorf("TopicMatches(%q, %q) = false, want true", p.pattern, p.topic)
		}
	}
}

func TestPotIDFromTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		want    string
		wantErr bool
	}{
		{"telemetry", "devices/POT1/telemetry", "POT1", false},
		{"watering status", "devices/ABC123/watering/status", "ABC123", false},
		{"hard reset", "devices/pot-7/hard-reset", "pot-7", false},
		{"no second segment", "devices", "", true},
		{"empty second segment", "devices//telemetry", "", true},
		{"empty topic", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PotIDFromTopic(tt.topic)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTopic) {
					t.Fatalf("PotIDFromTopic(%q) error = %v, want ErrInvalidTopic", tt.topic, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PotIDFromTopic(%q) error = %v", tt.topic, err)
			}
			if got != tt.want {
				t.Errorf("PotIDFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}
