// Smart Pot Core - Connected Plant Pot Backend
//
// This is the main entry point for the Smart Pot Core application.
// Smart Pot Core is the cloud-side half of a connected plant pot system:
//   - Ingests telemetry and watering events from pot firmware over MQTT
//   - Holds one persistent broker session so offline periods lose no events
//   - Pairs pots to user accounts and provisions per-pot broker credentials
//   - Coordinates ownership transfer against a physical hard reset
//   - Serves a REST API for mobile and web clients
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/smartpot-io/smartpot-core/migrations"

	"github.com/smartpot-io/smartpot-core/internal/api"
	"github.com/smartpot-io/smartpot-core/internal/auth"
	"github.com/smartpot-io/smartpot-core/internal/infrastructure/config"
	"github.com/smartpot-io/smartpot-core/internal/infrastructure/database"
	"github.com/smartpot-io/smartpot-core/internal/infrastructure/influxdb"
	"github.com/smartpot-io/smartpot-core/internal/infrastructure/logging"
	"github.com/smartpot-io/smartpot-core/internal/infrastructure/mqtt"
	"github.com/smartpot-io/smartpot-core/internal/ingress"
	"github.com/smartpot-io/smartpot-core/internal/pot"
	"github.com/smartpot-io/smartpot-core/internal/provisioning"
	"github.com/smartpot-io/smartpot-core/internal/rendezvous"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Smart Pot Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker with the persistent service session
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"persistent_session", cfg.MQTT.Session.Persistent,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional telemetry mirror)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Repositories
	potRepo := pot.NewSQLiteRepository(db.DB)
	userRepo := auth.NewUserRepository(db.DB)

	// Hard-reset rendezvous registry
	resets := rendezvous.New()

	// One-shot broker credential issuer for first pairings
	issuer := provisioning.NewIssuer(cfg.MQTT, cfg.Pairing)
	issuer.SetLogger(log)

	// Domain services
	potService := pot.NewService(potRepo, userRepo, mqttClient, resets, issuer, cfg.GetResetTimeout())
	potService.SetLogger(log)
	if influxClient != nil {
		potService.SetMirror(influxClient)
	}

	authService := auth.NewService(userRepo, cfg.Security.JWT)

	// Ingress pipeline: dispatcher, per-class queues and workers
	pipeline := ingress.NewPipeline(potService, resets)
	pipeline.SetLogger(log)
	if startErr := pipeline.Start(ctx, mqttClient, byte(cfg.MQTT.QoS)); startErr != nil {
		return fmt.Errorf("starting ingress pipeline: %w", startErr)
	}
	defer func() {
		log.Info("stopping ingress pipeline")
		pipeline.Stop()
	}()
	log.Info("ingress pipeline started")

	// HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Auth:     authService,
		Pots:     potService,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Ingress pipeline
	// 3. InfluxDB (if enabled)
	// 4. MQTT (session preserved for redelivery on restart)
	// 5. Database

	log.Info("Smart Pot Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SMARTPOT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SMARTPOT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
