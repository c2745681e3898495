// onkyod - Onkyo receiver gateway daemon
//
// onkyod owns one or more Onkyo/Integra receivers attached over RS-232 and
// multiplexes them to any number of line clients (TCP, Unix socket and
// WebSocket). Every status change a receiver reports is broadcast to all
// clients and, when configured, relayed to MQTT and InfluxDB.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/nerrad567/onkyod/internal/api"
	"github.com/nerrad567/onkyod/internal/audit"
	"github.com/nerrad567/onkyod/internal/gateway"
	"github.com/nerrad567/onkyod/internal/infrastructure/config"
	"github.com/nerrad567/onkyod/internal/infrastructure/database"
	"github.com/nerrad567/onkyod/internal/infrastructure/influxdb"
	"github.com/nerrad567/onkyod/internal/infrastructure/logging"
	"github.com/nerrad567/onkyod/internal/infrastructure/mqtt"
	"github.com/nerrad567/onkyod/internal/receiver"
	"github.com/nerrad567/onkyod/internal/relay"
	"github.com/nerrad567/onkyod/migrations"
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

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags.
type options struct {
	configPath  string
	showVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("onkyod", flag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to config file (default $ONKYOD_CONFIG or "+defaultConfigPath+")")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.configPath == "" {
		opts.configPath = getConfigPath()
	}
	return opts, nil
}

// getConfigPath returns the configuration file path.
// Uses ONKYOD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ONKYOD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// run is the daemon, separated from main for testability. It returns nil
// on a clean shutdown after ctx is cancelled.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "onkyod %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Debug("loading configuration", "path", opts.configPath)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting onkyod",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", opts.configPath,
	)

	// Background workers outlive ctx so they can drain the final
	// notifications and audit records after the gateway has stopped.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var workers sync.WaitGroup

	components := make(map[string]api.HealthChecker)
	counters := make(map[string]func() uint64)

	// Audit store
	var (
		db        *database.DB
		auditRepo audit.Repository
		recorder  gateway.CommandRecorder
	)
	if cfg.Audit.Enabled {
		db, err = openAuditStore(ctx, cfg.Audit, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		components["database"] = db

		repo := audit.NewSQLiteRepository(db.DB)
		rec := audit.NewRecorder(repo, cfg.Audit.QueueSize, log.With("component", "audit"))
		workers.Add(1)
		go func() {
			defer workers.Done()
			rec.Run(workerCtx)
		}()
		auditRepo = repo
		recorder = rec
		counters["audit_dropped"] = rec.Dropped
	} else {
		log.Info("audit disabled")
	}

	// MQTT
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		components["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB
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
		components["influxdb"] = influxClient
		counters["influxdb_write_errors"] = influxClient.WriteErrors
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Relay
	var notifiers []gateway.Notifier
	var rel *relay.Relay
	if mqttClient != nil || influxClient != nil {
		relayOpts := relay.Options{
			Logger: log.With("component", "relay"),
		}
		if mqttClient != nil {
			relayOpts.MQTT = mqttClient
			relayOpts.Topics = mqttClient.Topics()
			relayOpts.QoS = mqttClient.QoS()
		}
		if influxClient != nil {
			relayOpts.Metrics = influxClient
		}
		rel = relay.New(relayOpts)
		workers.Add(1)
		go func() {
			defer workers.Done()
			rel.Run(workerCtx)
		}()
		notifiers = append(notifiers, rel)
		counters["relay_dropped"] = rel.Dropped
	}

	// Runs before the clients above are closed.
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	gw := gateway.New(gateway.Options{
		Logger:         log.With("component", "gateway"),
		Banner:         cfg.Gateway.Banner,
		MaxConnections: cfg.Gateway.MaxConnections,
		LineBufferSize: cfg.Gateway.LineBufferSize,
		IdleTimeout:    cfg.GetClientIdleTimeout(),
		WriteTimeout:   cfg.GetClientWriteTimeout(),
		Receiver: receiver.Options{
			CommandInterval: cfg.GetCommandInterval(),
			QueueLimit:      cfg.Gateway.QueueLimit,
		},
		Notifiers: notifiers,
		Recorder:  recorder,
	})

	if rel != nil {
		if err := rel.SubscribeCommands(ctx, gw); err != nil {
			return fmt.Errorf("subscribing to MQTT commands: %w", err)
		}
	}

	// HTTP API
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log.With("component", "api"),
			Gateway:    gw,
			AuditRepo:  auditRepo,
			Components: components,
			Counters:   counters,
			Version:    version,
		}
		if db != nil {
			deps.DB = db
		}
		srv, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	// Devices and listeners are opened last; from here on the gateway owns
	// and closes them.
	if err := attachEndpoints(gw, cfg, log); err != nil {
		return err
	}

	stopDumps := forwardStatusDumps(gw)
	defer stopDumps()

	log.Info("initialisation complete")
	if err := gw.Run(ctx); err != nil {
		return fmt.Errorf("running gateway: %w", err)
	}

	log.Info("onkyod stopped")
	return nil
}

// openAuditStore opens the SQLite database and applies the embedded
// migrations.
func openAuditStore(ctx context.Context, cfg config.AuditConfig, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", db.Path())
	return db, nil
}

// attachEndpoints opens every configured receiver device and listener and
// hands them to gw. On failure everything opened so far is closed.
func attachEndpoints(gw *gateway.Gateway, cfg *config.Config, log *logging.Logger) (err error) {
	var opened []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for _, c := range opened {
			c.Close() //nolint:errcheck // unwinding a failed start
		}
	}()

	for _, rc := range cfg.Receivers {
		dev, openErr := receiver.OpenDevice(rc.Device, rc.BaudRate())
		if openErr != nil {
			return fmt.Errorf("receiver %s: %w", rc.Name, openErr)
		}
		opened = append(opened, dev)
		if addErr := gw.AddReceiver(rc.Name, dev, rc.QueriesOnStart()); addErr != nil {
			return fmt.Errorf("receiver %s: %w", rc.Name, addErr)
		}
		log.Info("receiver attached", "name", rc.Name, "device", rc.Device, "baud", rc.BaudRate())
	}

	for _, lc := range cfg.Listeners {
		ln, listenErr := gateway.Listen(lc.Network())
		if listenErr != nil {
			return listenErr
		}
		opened = append(opened, ln)
		if addErr := gw.AddListener(ln); addErr != nil {
			return addErr
		}
	}

	return nil
}
