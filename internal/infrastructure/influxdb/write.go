package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteMeasurement mirrors a single pot sensor reading into the time-series
// bucket.
//
// The write is non-blocking; data is batched and sent asynchronously, and
// failures surface only through the SetOnError callback. Ingest never waits
// on the mirror.
//
// Parameters:
//   - potID: Pot identifier (tag, low cardinality)
//   - airTemp: Air temperature in degrees Celsius
//   - airPressure: Air pressure in hPa
//   - soilMoisture: Soil moisture percentage
//   - illuminance: Light level in lux
//   - timestamp: The device-reported reading time
//
// Example:
//
//	client.WriteMeasurement("POT1", 21.5, 1013.2, 40, 220, readingTime)
func (c *Client) WriteMeasurement(potID string, airTemp, airPressure float64, soilMoisture, illuminance int, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"pot_measurements",
		map[string]string{
			"pot_id": potID,
		},
		map[string]interface{}{
			"air_temp":      airTemp,
			"air_pressure":  airPressure,
			"soil_moisture": soilMoisture,
			"illuminance":   illuminance,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteWateringEvent records a watering state transition.
//
// Parameters:
//   - potID: Pot identifier
//   - watering: true when the pump turned on, false when it turned off
func (c *Client) WriteWateringEvent(potID string, watering bool) {
	if !c.IsConnected() {
		return
	}

	state := 0
	if watering {
		state = 1
	}

	point := write.NewPoint(
		"watering_events",
		map[string]string{
			"pot_id": potID,
		},
		map[string]interface{}{
			"state": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Example:
//
//	client.WritePoint("ingress_stats",
//	    map[string]string{"queue": "telemetry"},
//	    map[string]interface{}{"dropped": 3, "depth": 120})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
