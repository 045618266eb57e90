// Hearth Core - Home Automation Hub
//
// This is the main entry point for the Hearth Core daemon. Hearth is a
// plugin-based home automation hub:
//   - Plugins adapt hardware buses (Z-Wave, EnOcean, ...) and talk to
//     the hub over MQTT using a small framed envelope protocol
//   - The coordinator tracks plugin liveness, routes commands, and
//     correlates request/reply exchanges
//   - The rule engine turns value changes and cron schedules into
//     device commands
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/hearth-home/hearth-core/migrations"

	"github.com/hearth-home/hearth-core/internal/api"
	"github.com/hearth-home/hearth-core/internal/hub"
	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth-core/internal/plugin"
	"github.com/hearth-home/hearth-core/internal/rules"
	"github.com/hearth-home/hearth-core/internal/schedule"
	"github.com/hearth-home/hearth-core/internal/value"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
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
	log.Info("starting Hearth Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// Open database and apply migrations
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Plugin registry: provisioned identities plus runtime liveness
	registry := plugin.NewRegistry(plugin.NewRepository(db.DB), log)
	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading plugin registry: %w", loadErr)
	}
	log.Info("plugin registry initialised", "plugins", registry.Count())

	// Value store: persisted current values mirrored in memory for the
	// rule engine's condition checks
	valueRepo := value.NewRepository(db.DB)
	values := value.NewStore(valueRepo, log)
	if warmErr := values.Warm(ctx); warmErr != nil {
		return fmt.Errorf("warming value store: %w", warmErr)
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

	// Scheduler runs cron triggers in the site's timezone
	loc, err := time.LoadLocation(cfg.Site.Timezone)
	if err != nil {
		return fmt.Errorf("loading site timezone %q: %w", cfg.Site.Timezone, err)
	}
	sched := schedule.New(loc, log)

	// Coordinator and rule engine reference each other: the coordinator
	// feeds value changes into the engine, the engine dispatches
	// commands through the coordinator. Build the coordinator first and
	// wire the engine in afterwards.
	coordinator := hub.New(cfg.Hub, mqttClient, registry, values, log)

	ruleRepo := rules.NewRepository(db.DB, valueRepo, log)
	engine := rules.NewEngine(ruleRepo, values, sched, coordinator, log)
	coordinator.SetEngine(engine)

	sched.Start(ctx)

	if reloadErr := engine.Reload(ctx); reloadErr != nil {
		return fmt.Errorf("loading rules: %w", reloadErr)
	}
	snapshot := engine.Snapshot()
	log.Info("rule engine loaded",
		"events", snapshot.EventCount(),
		"triggers", snapshot.TriggerCount(),
	)

	if startErr := coordinator.Start(ctx); startErr != nil {
		return fmt.Errorf("starting coordinator: %w", startErr)
	}

	// Admin API
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		Logger:      log,
		Registry:    registry,
		Values:      valueRepo,
		Coordinator: coordinator,
		Rules:       engine,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating admin api: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting admin api: %w", startErr)
	}
	defer func() {
		log.Info("stopping admin api")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping admin api", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Supervise the long-running pieces; the group context ends when the
	// shutdown signal arrives or any component fails.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		coordinator.Wait()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("Hearth Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}
