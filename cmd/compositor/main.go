// Gray Logic Compositor - content lifecycle controller
//
// This is the main entry point for the Gray Logic Compositor. It owns the
// content controller and connects it to:
//   - Content providers over MQTT (the DCSM protocol)
//   - The renderer over MQTT (scene states, buffers, links)
//   - Operators through the HTTP API and WebSocket event stream
//   - SQLite transition history and optional InfluxDB metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-compositor/internal/api"
	"github.com/nerrad567/gray-logic-compositor/internal/audit"
	"github.com/nerrad567/gray-logic-compositor/internal/bridge"
	"github.com/nerrad567/gray-logic-compositor/internal/compositor"
	"github.com/nerrad567/gray-logic-compositor/internal/content"
	"github.com/nerrad567/gray-logic-compositor/internal/history"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-compositor/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-compositor/migrations"
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

// pruneInterval is how often old history rows are deleted.
const pruneInterval = time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Compositor",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database and history
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	historyRepo := history.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// MQTT
	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT)
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
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// InfluxDB (optional)
	influxClient, err := connectInfluxDB(ctx, cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// Bridges
	bridgeOpts := bridge.Options{QoS: mqttClient.QoS(), Logger: log}
	providers := bridge.NewProtocolBridge(mqttClient, bridgeOpts)
	renderer := bridge.NewSceneBridge(mqttClient, bridgeOpts)
	if startErr := providers.Start(); startErr != nil {
		return fmt.Errorf("starting protocol bridge: %w", startErr)
	}
	defer stopBridge(log, "protocol", providers.Stop)
	if startErr := renderer.Start(); startErr != nil {
		return fmt.Errorf("starting scene bridge: %w", startErr)
	}
	defer stopBridge(log, "scene", renderer.Stop)
	log.Info("bridges started")

	// Controller and runner
	ctrl, err := content.NewController(controllerConfig(cfg.Compositor), providers, renderer, log)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	sinkOpts := compositor.SinkOptions{
		Publisher:   mqttClient,
		Broadcaster: hub,
		History:     historyRepo,
		Logger:      log,
	}
	if influxClient != nil {
		sinkOpts.Metrics = influxClient
	}

	sink := compositor.NewSink(sinkOpts)
	defer func() {
		log.Info("flushing content history")
		sink.Close()
	}()

	runner, err := compositor.NewRunner(ctrl, compositor.RunnerOptions{
		Interval: cfg.GetTickInterval(),
		Sink:     sink,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	runCtx, stopRunner := context.WithCancel(ctx)
	defer stopRunner()
	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(runCtx) }()
	log.Info("compositor running",
		"tick_interval", cfg.GetTickInterval(),
		"categories", len(cfg.Compositor.Categories),
	)

	// API
	apiServer, err := api.New(api.Deps{
		Config:              cfg.API,
		WS:                  cfg.WebSocket,
		Security:            cfg.Security,
		Logger:              log,
		Runner:              runner,
		History:             historyRepo,
		Audit:               auditRepo,
		MQTT:                mqttClient,
		DB:                  db,
		Hub:                 hub,
		DefaultReadyTimeout: uint64(cfg.Compositor.DefaultReadyTimeout), //nolint:gosec // Validated non-negative
		Version:             version,
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

	if retention := cfg.GetHistoryRetention(); retention > 0 {
		go pruneHistoryLoop(ctx, historyRepo, retention, log)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-runErr:
		if err != nil {
			return fmt.Errorf("compositor runner: %w", err)
		}
	}

	// Deferred calls run in reverse order: API, runner, history writer,
	// bridges, InfluxDB, MQTT, database.
	log.Info("Gray Logic Compositor stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// controllerConfig converts the configured categories for the controller.
func controllerConfig(cfg config.CompositorConfig) content.Config {
	categories := make([]content.CategoryConfig, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		categories = append(categories, content.CategoryConfig{
			ID:      content.CategoryID(c.ID),
			Size:    content.Size{Width: c.Width, Height: c.Height},
			Display: content.DisplayID(c.Display),
		})
	}
	return content.Config{Categories: categories}
}

// connectInfluxDB connects to InfluxDB when enabled. A nil client with a nil
// error means metrics are switched off.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

// stopBridge stops a bridge and logs any failure.
func stopBridge(log *logging.Logger, name string, stop func() error) {
	log.Info("stopping bridge", "bridge", name)
	if err := stop(); err != nil {
		log.Error("error stopping bridge", "bridge", name, "error", err)
	}
}

// historyPruner is the part of history.Repository the prune loop needs.
type historyPruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// pruneHistoryLoop deletes transitions older than retention once at start
// and then every pruneInterval, until ctx is cancelled.
func pruneHistoryLoop(ctx context.Context, repo historyPruner, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		pruneHistory(ctx, repo, time.Now().Add(-retention), log)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pruneHistory(ctx context.Context, repo historyPruner, cutoff time.Time, log *logging.Logger) {
	n, err := repo.Prune(ctx, cutoff)
	if err != nil {
		log.Warn("pruning content history failed", "error", err)
		return
	}
	if n > 0 {
		log.Info("pruned content history", "rows", n, "cutoff", cutoff)
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when metrics are disabled.
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
