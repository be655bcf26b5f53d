// Warden Core - Entry-Point Arbitration Engine
//
// This is the main entry point for the Warden Core application.
// Warden arbitrates between access control, environmental automation
// and thermal safety for one physical entry point. Sensing and
// actuation live in MQTT bridge processes; this binary owns every
// decision about the door.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/wardenlabs/warden-core/migrations"

	"github.com/wardenlabs/warden-core/internal/api"
	"github.com/wardenlabs/warden-core/internal/audit"
	"github.com/wardenlabs/warden-core/internal/controller"
	"github.com/wardenlabs/warden-core/internal/credential"
	"github.com/wardenlabs/warden-core/internal/infrastructure/config"
	"github.com/wardenlabs/warden-core/internal/infrastructure/database"
	"github.com/wardenlabs/warden-core/internal/infrastructure/influxdb"
	"github.com/wardenlabs/warden-core/internal/infrastructure/logging"
	"github.com/wardenlabs/warden-core/internal/infrastructure/mqtt"
	"github.com/wardenlabs/warden-core/internal/sensors"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Warden Core",
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
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
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

	// Initialise credential store and seed first-boot defaults
	store := credential.NewStore(db.DB)
	if seedErr := store.Seed(ctx, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding credentials: %w", seedErr)
	}

	// Connect to MQTT broker
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var telemetry controller.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, log)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled, telemetry history off")
	}

	// Start the audit recorder. It gets its own context so the queue can
	// drain after the arbitration loop stops.
	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, &auditPublisher{client: mqttClient}, log.Logger)
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorder.Start(recorderCtx)
	defer func() {
		stopRecorder()
		recorder.Wait()
		if dropped := recorder.Dropped(); dropped > 0 {
			log.Warn("audit events dropped during run", "count", dropped)
		}
	}()

	// Subscribe the sensor adapter to the bridge topics
	sensorAdapter := sensors.New(cfg.Sensors, log.Logger)
	if startErr := sensorAdapter.Start(mqttClient); startErr != nil {
		return fmt.Errorf("starting sensor adapter: %w", startErr)
	}
	log.Info("sensor adapter subscribed")

	// Start the arbitration loop
	ctrl := controller.New(cfg, store, sensorAdapter, mqttClient, recorder, telemetry, log.Logger)
	go ctrl.Run(ctx)

	// Start the HTTP API
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		Security:    cfg.Security,
		AuthPolicy:  cfg.AuthPolicy,
		Logger:      log,
		Controller:  ctrl,
		Credentials: store,
		AuditRepo:   auditRepo,
		Recorder:    recorder,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, arbitrating", "site", cfg.Site.ID)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Audit recorder (drains its queue)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Warden Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses WARDEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("WARDEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
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

// auditPublisher mirrors audit events onto the warden/audit topic so
// operator dashboards can follow the trail live.
type auditPublisher struct {
	client *mqtt.Client
}

// PublishAudit implements audit.Publisher.
func (p *auditPublisher) PublishAudit(event audit.Event) error {
	return p.client.Publish(mqtt.Topics{}.Audit(), event)
}
