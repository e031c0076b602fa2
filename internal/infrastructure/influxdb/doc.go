// Package influxdb provides InfluxDB connectivity for Smart Pot Core.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, measurement writing, and health monitoring.
//
// # Purpose
//
// SQLite remains the authoritative store for pot measurements; this package
// mirrors telemetry into a time-series bucket for dashboards and long-range
// queries. A mirror write failure never fails ingest.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "smartpot",
//	    Bucket:  "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteMeasurement("POT1", 21.5, 1013.2, 40, 220, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
