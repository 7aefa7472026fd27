// LPWAN Core - multi-network device synchronisation
//
// This is the main entry point for the LPWAN Core service. It keeps
// applications, device profiles and devices in step across every
// configured wireless network, queues downlinks for IP devices and routes
// device uplinks to their applications over MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/lpwan-core/migrations"

	"github.com/nerrad567/lpwan-core/internal/api"
	"github.com/nerrad567/lpwan-core/internal/collection"
	"github.com/nerrad567/lpwan-core/internal/device"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/config"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/database"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/logging"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/metrics"
	"github.com/nerrad567/lpwan-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lpwan-core/internal/mailbox"
	"github.com/nerrad567/lpwan-core/internal/model"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/protocoldata"
	"github.com/nerrad567/lpwan-core/internal/protocols/bridge"
	"github.com/nerrad567/lpwan-core/internal/protocols/ip"
	"github.com/nerrad567/lpwan-core/internal/store"
	"github.com/nerrad567/lpwan-core/internal/uplink"
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
	log.Info("starting LPWAN Core",
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	m := metrics.New(cfg.Metrics.Namespace)

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

	var influxClient *influxdb.Client
	var telemetry ip.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		telemetry = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	svc, handlers, catalog, err := buildCore(db, cfg, mqttClient, telemetry, m, log)
	if err != nil {
		return err
	}

	ingestor := uplink.New(mqttClient, svc, byte(cfg.MQTT.QoS), log, m)
	if err := ingestor.Start(); err != nil {
		return fmt.Errorf("starting uplink ingestion: %w", err)
	}
	defer func() {
		log.Info("stopping uplink ingestion")
		if stopErr := ingestor.Stop(); stopErr != nil {
			log.Warn("error stopping uplink ingestion", "error", stopErr)
		}
	}()
	bridges, err := attachBridges(ctx, catalog, handlers, ingestor, cfg.Sync.PageSize)
	if err != nil {
		return fmt.Errorf("attaching bridged networks: %w", err)
	}
	log.Info("uplink ingestion started", "bridged_networks", bridges)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if cfg.Metrics.Enabled {
		checks := map[string]api.HealthChecker{
			"database": db,
			"schema":   api.HealthFunc(db.SchemaCurrent),
			"mqtt":     mqttClient,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}
		server, err := api.New(api.Deps{
			Config:  cfg.Metrics,
			Logger:  log,
			Metrics: m.Handler(),
			Checks:  checks,
			Version: version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, uplink ingestion,
	// InfluxDB, MQTT, database.

	log.Info("LPWAN Core stopped")
	return nil
}

// buildCore wires the network engine, protocol handlers and device models.
func buildCore(db *database.DB, cfg *config.Config, mqttClient *mqtt.Client, telemetry ip.Telemetry,
	m *metrics.Metrics, log *logging.Logger) (*device.Service, *network.HandlerRegistry, *network.Catalog, error) {
	catalog := network.NewCatalog(db.DB)
	engine := network.NewEngine(catalog.Networks, network.NewDeployments(db.DB), cfg.Sync.PageSize, log)
	engine.SetRecorder(m)

	pdata := protocoldata.New(db.DB)
	mb := mailbox.New(db.DB, mailbox.MQTTNotifier{
		Publisher: mqttClient,
		Prefix:    cfg.Mailbox.NotifyTopicPrefix,
	}, cfg.Mailbox.MaxQueueLength, log)
	mb.SetRecorder(m)

	stores := device.NewStores(db.DB)

	handlers := network.NewHandlerRegistry(catalog.Protocols)
	if err := handlers.Register(ip.HandlerID, ip.Factory(ip.Deps{
		Mailbox:      mb,
		Devices:      stores,
		ProtocolData: pdata,
		Publisher:    mqttClient,
		Telemetry:    telemetry,
	})); err != nil {
		return nil, nil, nil, fmt.Errorf("registering IP handler: %w", err)
	}
	if err := handlers.Register(bridge.HandlerID, bridge.Factory(pdata, mqttClient)); err != nil {
		return nil, nil, nil, fmt.Errorf("registering bridge handler: %w", err)
	}

	reg := model.NewRegistry()
	if err := device.Register(reg, device.Deps{
		Stores:        stores,
		Catalog:       catalog,
		Engine:        engine,
		Handlers:      handlers,
		Mailbox:       mb,
		IPNetworkType: cfg.Sync.IPNetworkType,
		PageSize:      cfg.Sync.PageSize,
		Logger:        log,
		Tracer: model.Tracers{
			model.LogTracer{Logger: log},
			model.CountingTracer{Counter: m},
		},
	}); err != nil {
		return nil, nil, nil, fmt.Errorf("registering device models: %w", err)
	}

	svc, err := device.NewService(reg)
	if err != nil {
		return nil, nil, nil, err
	}
	return svc, handlers, catalog, nil
}

// attachBridges subscribes the ingestor to every enabled network whose
// handler resolves remote device ids. It returns the number attached.
func attachBridges(ctx context.Context, catalog *network.Catalog, handlers *network.HandlerRegistry,
	ingestor *uplink.Ingestor, pageSize int) (int, error) {
	networks, err := collection.Collect(ctx, collection.ListAll[network.Network](catalog.Networks,
		store.Where{"enabled": true}, pageSize))
	if err != nil {
		return 0, fmt.Errorf("listing networks: %w", err)
	}

	attached := 0
	for _, n := range networks {
		h, err := handlers.ForNetwork(ctx, n)
		if err != nil {
			return attached, err
		}
		resolver, ok := h.(uplink.DeviceResolver)
		if !ok {
			continue
		}
		if err := ingestor.AddBridge(n.ID, resolver); err != nil {
			return attached, err
		}
		attached++
	}
	return attached, nil
}

// getConfigPath returns the configuration file path.
// Uses LPWAN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LPWAN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
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
