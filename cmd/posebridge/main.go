//go:build darwin || linux

// posebridge - live tracking-data bridge
//
// posebridge follows the device state published by a motion-tracking
// service over MQTT, maps it onto a fixed set of 6-float slot records, and
// writes those records into a shared-memory buffer read by a consumer
// process after every poll cycle.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/posebridge/internal/api"
	"github.com/nerrad567/posebridge/internal/auth"
	"github.com/nerrad567/posebridge/internal/bridge"
	"github.com/nerrad567/posebridge/internal/infrastructure/config"
	"github.com/nerrad567/posebridge/internal/infrastructure/database"
	"github.com/nerrad567/posebridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/posebridge/internal/infrastructure/logging"
	"github.com/nerrad567/posebridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/posebridge/internal/journal"
	"github.com/nerrad567/posebridge/internal/process"
	"github.com/nerrad567/posebridge/internal/sink/shm"
	"github.com/nerrad567/posebridge/internal/tracking/mqttsource"
	"github.com/nerrad567/posebridge/migrations"
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

// shutdownTimeout bounds the controller cleanup on the dispatcher.
const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath   string
	showVersion  bool
	tokenSubject string
}

// parseFlags parses args. A --help request returns pflag.ErrHelp.
func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("posebridge", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "path to config.yaml (default: $POSEBRIDGE_CONFIG or "+defaultConfigPath+")")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.StringVar(&opts.tokenSubject, "issue-token", "", "print a control API token for `subject` and exit")
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	opts.configPath = resolveConfigPath(opts.configPath)
	return opts, nil
}

// resolveConfigPath picks the config file: the flag, then POSEBRIDGE_CONFIG,
// then the default.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("POSEBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// issueToken writes a signed control API token for subject to w.
func issueToken(w io.Writer, cfg *config.Config, subject string) error {
	if cfg.API.Auth.JWTSecret == "" {
		return errors.New("issuing token: api.auth.jwt_secret is not set")
	}
	token, err := auth.GenerateToken(subject, cfg.API.Auth.JWTSecret, cfg.GetTokenTTL())
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments without the program name
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string) error { //nolint:gocognit,gocyclo // Linear startup sequence
	opts, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	if opts.showVersion {
		fmt.Printf("posebridge %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting posebridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.tokenSubject != "" {
		return issueToken(os.Stdout, cfg, opts.tokenSubject)
	}

	log = logging.New(cfg.Logging, version).With("site", cfg.Site.ID)
	log.Info("configuration loaded",
		"path", opts.configPath,
		"level", log.Level().String(),
		"format", cfg.Logging.Format,
	)

	// Connection journal (optional)
	var (
		db          *database.DB
		journalRepo *journal.SQLiteRepository
		journalSink bridge.Journal
	)
	if cfg.Database.JournalEnabled {
		db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database ready", "path", cfg.Database.Path)

		journalRepo = journal.NewSQLiteRepository(db.DB)
		recorder := journal.NewRecorder(journalRepo, 0, log.Component("journal"))
		recorder.SetRetention(journalRepo, cfg.GetJournalRetention())
		journalSink = recorder

		recorderCtx, stopRecorder := context.WithCancel(context.Background())
		recorderDone := make(chan struct{})
		go func() {
			defer close(recorderDone)
			recorder.Run(recorderCtx)
		}()
		defer func() {
			stopRecorder()
			<-recorderDone
			if dropped := recorder.Dropped(); dropped > 0 {
				log.Warn("journal entries dropped", "count", dropped)
			}
		}()
	} else {
		log.Info("connection journal disabled")
	}

	// MQTT
	topics := mqtt.NewTopics(cfg.Tracking.TopicPrefix, cfg.Site.ID)
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"tracking_prefix", topics.Prefix(),
	)

	// InfluxDB (optional)
	var (
		influxClient *influxdb.Client
		telemetry    bridge.Telemetry
	)
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection",
				"write_errors", influxClient.WriteErrors(),
				"dropped", influxClient.Dropped(),
			)
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxdb.NewTelemetry(influxClient, cfg.Site.ID)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
			"sample_every", cfg.InfluxDB.SampleEvery,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Consumer buffer
	sink, err := shm.Open(shm.Config{
		Path:  cfg.Consumer.Path,
		Slots: cfg.Consumer.Slots,
		Lock:  cfg.Consumer.Lock,
	})
	if err != nil {
		return fmt.Errorf("opening consumer buffer: %w", err)
	}
	defer func() {
		if closeErr := sink.Close(); closeErr != nil {
			log.Error("error closing consumer buffer", "error", closeErr)
		}
	}()
	log.Info("consumer buffer mapped", "path", cfg.Consumer.Path, "slots", cfg.Consumer.Slots)

	// Tracking service
	var launcher mqttsource.Launcher
	if cfg.Tracking.Launch.Binary != "" {
		manager := process.NewManager(process.FromLaunchConfig(cfg.Tracking.Launch))
		manager.SetLogger(log.Component("process"))
		launcher = manager
		defer func() {
			if stopErr := manager.Stop(); stopErr != nil {
				log.Error("error stopping tracking service", "error", stopErr)
			}
		}()
	}

	source, err := mqttsource.New(mqttsource.Options{
		Subscriber:    mqttClient,
		Topics:        topics,
		QoS:           byte(cfg.MQTT.QoS),
		QueueSize:     cfg.Tracking.QueueSize,
		Launcher:      launcher,
		LaunchContext: ctx,
		Logger:        log.Component("tracking"),
	})
	if err != nil {
		return fmt.Errorf("creating tracking source: %w", err)
	}

	// The dispatcher outlives ctx so Cleanup can still run on it.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		if runErr := source.Run(dispatchCtx); runErr != nil {
			log.Error("dispatcher stopped", "error", runErr)
		}
	}()
	defer func() {
		stopDispatch()
		<-dispatchDone
		if dropped := source.Dropped(); dropped > 0 {
			log.Warn("tracking frames dropped on a full queue", "count", dropped)
		}
	}()

	if startErr := source.Start(); startErr != nil {
		return fmt.Errorf("subscribing to tracking topics: %w", startErr)
	}
	defer source.Stop()
	log.Debug("tracking topics subscribed", "topics", mqttClient.Subscriptions())
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
		source.HandleBrokerLost(err)
	})

	// Bridge
	controller, err := bridge.New(bridge.Options{
		Service:     source,
		Pool:        source,
		Consumer:    sink,
		Logger:      log.Component("bridge"),
		Journal:     journalSink,
		Telemetry:   telemetry,
		Overflow:    cfg.OverflowPolicy(),
		SampleEvery: cfg.InfluxDB.SampleEvery,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.Component("api"),
		Bridge:     controller,
		Dispatcher: source,
		Slots:      cfg.Slots.Definitions,
		Version:    version,
	}
	if journalRepo != nil {
		deps.Journal = journalRepo
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	notifier := &connectionNotifier{
		hub:    server.Hub(),
		mqtt:   mqttClient,
		topic:  topics.BridgeConnection(),
		qos:    byte(cfg.MQTT.QoS),
		logger: log,
	}
	mqttClient.SetOnConnect(notifier.republish)

	var initialized bool
	if callErr := source.Call(ctx, func() {
		initialized = controller.Init()
		if !initialized {
			return
		}
		controller.OnConnected(func() {
			notifier.notify(api.NewConnectionEvent(bridge.Connected, controller.SessionID(), "", len(controller.Definitions())))
		})
		controller.OnDisconnected(func() {
			notifier.notify(api.NewConnectionEvent(bridge.Disconnected, controller.SessionID(), "", 0))
		})
		controller.OnConnectionFailed(func(reason string) {
			notifier.notify(api.NewConnectionEvent(bridge.Failed, controller.SessionID(), reason, 0))
		})
	}); callErr != nil {
		return fmt.Errorf("initializing bridge: %w", callErr)
	}
	if !initialized {
		return fmt.Errorf("initializing bridge: consumer buffer unavailable")
	}

	// Registered before the API server so cleanup runs once the server is
	// closed and before any other resource is released.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if callErr := source.Call(cleanupCtx, controller.Cleanup); callErr != nil {
			log.Error("bridge cleanup failed", "error", callErr)
		}
	}()

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if cfg.Slots.AutoConnect {
		defs := cfg.Slots.Definitions
		if submitErr := source.Submit(func() { controller.Connect(defs) }); submitErr != nil {
			return fmt.Errorf("auto-connect: %w", submitErr)
		}
		log.Info("auto-connect requested", "slots", len(defs))
	}

	if hcErr := healthCheck(ctx, db, mqttClient, influxClient); hcErr != nil {
		return fmt.Errorf("health check failed: %w", hcErr)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, bridge cleanup,
	// tracking unsubscribe, dispatcher, tracking service, consumer buffer,
	// InfluxDB, MQTT, journal, database.
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if the journal is disabled)
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
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

// connectionPublisher is the part of the MQTT client the notifier uses.
type connectionPublisher interface {
	PublishAsync(topic string, payload []byte, qos byte, retained bool) error
}

// connectionNotifier fans bridge connection events out to WebSocket clients
// and to the retained bridge connection topic.
type connectionNotifier struct {
	hub    *api.Hub
	mqtt   connectionPublisher
	topic  string
	qos    byte
	logger *logging.Logger

	mu   sync.Mutex
	last []byte
}

func (n *connectionNotifier) notify(ev api.ConnectionEvent) {
	n.hub.BroadcastConnection(ev)

	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("encoding connection event", "error", err)
		return
	}
	n.mu.Lock()
	n.last = payload
	n.mu.Unlock()

	if err := n.mqtt.PublishAsync(n.topic, payload, n.qos, true); err != nil {
		n.logger.Warn("publishing connection event", "error", err, "state", ev.State)
	}
}

// republish re-sends the last connection event after an MQTT reconnect, for
// brokers that lost their retained messages while down.
func (n *connectionNotifier) republish() {
	n.mu.Lock()
	payload := n.last
	n.mu.Unlock()
	if payload == nil {
		return
	}
	if err := n.mqtt.PublishAsync(n.topic, payload, n.qos, true); err != nil {
		n.logger.Warn("republishing connection state", "error", err)
	}
}
