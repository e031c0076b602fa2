package pot

import "time"

// Pot represents a registered Smart Pot device.
// This matches the database schema in migrations/20260105_120000_initial_schema.up.sql.
type Pot struct {
	// Identity. The pot id is the second segment of every device topic.
	PotID string `json:"pot_id"`

	// Climate configuration pushed to the firmware.
	MinTemperature     float64            `json:"min_temperature"`
	MaxTemperature     float64            `json:"max_temperature"`
	HumidityThresholds HumidityThresholds `json:"humidity_thresholds"`
	IlluminanceType    int                `json:"illuminance_type"`
	MeasureIntervalSec int                `json:"measure_interval_sec"`

	// Current pump state as last reported by the device.
	IsWatering bool `json:"is_watering"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HumidityThresholds holds the four soil moisture bands the firmware uses
// to decide when to water. Stored as JSON in the pots table.
type HumidityThresholds struct {
	VeryLow  int `json:"very_low"`
	Low      int `json:"low"`
	High     int `json:"high"`
	VeryHigh int `json:"very_high"`
}

// Connection links a user to a pot.
//
// At most one connection per pot may be active with is_owner set; the
// partial unique index ux_connections_active_owner enforces this.
type Connection struct {
	PotID     string    `json:"pot_id"`
	UserID    string    `json:"user_id"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	IsOwner   bool      `json:"is_owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Measure is a single sensor reading from a pot.
//
// Timestamp is the device-reported epoch second; together with the pot id
// it forms the primary key, so duplicate deliveries collapse naturally.
type Measure struct {
	PotID        string  `json:"pot_id"`
	Timestamp    int64   `json:"timestamp"`
	AirTemp      float64 `json:"air_temp"`
	AirPressure  float64 `json:"air_pressure"`
	SoilMoisture int     `json:"soil_moisture"`
	Illuminance  int     `json:"illuminance"`
}

// Telemetry is the wire format of a devices/{id}/telemetry payload.
type Telemetry struct {
	Timestamp float64       `json:"timestamp"`
	Data      TelemetryData `json:"data"`
}

// TelemetryData carries the sensor block of a telemetry payload.
type TelemetryData struct {
	Lux int     `json:"lux"`
	Tem float64 `json:"tem"`
	Moi int     `json:"moi"`
	Pre float64 `json:"pre"`
}

// DeviceConfig is the wire format of a devices/{id}/config/cmd payload.
//
// Field order inside Moi is lowest band first (very_low, low, high,
// very_high); Tem is [min, max].
type DeviceConfig struct {
	Lux int        `json:"lux"`
	Moi [4]int     `json:"moi"`
	Tem [2]float64 `json:"tem"`
	Sle int        `json:"sle"`
}

// PairResult reports the outcome of a pairing request.
type PairResult struct {
	PotID   string `json:"pot_id"`
	UserID  string `json:"user_id"`
	IsOwner bool   `json:"is_owner"`
	IsAdmin bool   `json:"is_admin"`

	// FirstPairing is true when this call delivered the pot's broker
	// credential. Only a first pairing carries the credential.
	FirstPairing bool `json:"first_pairing"`

	// Credential is the broker password issued for the pot on first
	// pairing, empty otherwise. It is shown once and never stored.
	Credential string `json:"credential,omitempty"`
}
