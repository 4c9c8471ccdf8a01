package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/zephyrus-green/ferrycast/internal/api"
	"github.com/zephyrus-green/ferrycast/internal/broadcast"
	"github.com/zephyrus-green/ferrycast/internal/cache"
	"github.com/zephyrus-green/ferrycast/internal/config"
	"github.com/zephyrus-green/ferrycast/internal/dispatcher"
	"github.com/zephyrus-green/ferrycast/internal/geo"
	"github.com/zephyrus-green/ferrycast/internal/handlers"
	"github.com/zephyrus-green/ferrycast/internal/influx"
	"github.com/zephyrus-green/ferrycast/internal/logging"
	"github.com/zephyrus-green/ferrycast/internal/monitor"
	intOtel "github.com/zephyrus-green/ferrycast/internal/otel"
	"github.com/zephyrus-green/ferrycast/internal/sensor"
	"github.com/zephyrus-green/ferrycast/internal/simulator"
	"github.com/zephyrus-green/ferrycast/internal/worker"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion = "0.1.0"
	BuildDate      = "unknown"

	ServiceName = "ferrycast"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "ferrycast: %v\n", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	sessionStart := time.Now()

	// bootstrap logger until the config is read
	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, "info", nil)
	logger := slogManager.Logger()

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}
	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", configDir)
	}

	logLevel := config.GetString("logLevel")
	logsDir := config.GetString("logsDir")

	logFile, err := logging.OpenLogFile(logsDir, ServiceName, sessionStart)
	if err != nil {
		logger.Error("Failed to create/open log file!", "error", err)
	} else {
		defer logFile.Close()
	}

	otelProvider := setupOTel(logger, logsDir, sessionStart)
	var otelLogProvider *sdklog.LoggerProvider
	if otelProvider != nil {
		otelLogProvider = otelProvider.LoggerProvider()
	}

	// Dynamic attributes are filled in once the simulator and hub exist.
	var (
		tickSource   atomic.Pointer[simulator.Simulator]
		clientSource atomic.Pointer[broadcast.Hub]
	)
	opts := []logging.SetupOption{
		logging.WithConsole(),
		logging.WithContext(func() []slog.Attr {
			var attrs []slog.Attr
			if s := tickSource.Load(); s != nil {
				attrs = append(attrs, slog.Uint64("tick", s.Ticks()))
			}
			if h := clientSource.Load(); h != nil {
				attrs = append(attrs, slog.Int("clients", h.Clients()))
			}
			return attrs
		}),
	}
	if config.GetBool("graylog.enabled") {
		gw, err := logging.NewGraylogWriter(config.GetString("graylog.address"), ServiceName)
		if err != nil {
			logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			defer gw.Close()
			opts = append(opts, logging.WithGraylog(gw))
		}
	}

	var fileWriter io.Writer
	if logFile != nil {
		fileWriter = logFile
	}
	slogManager.Setup(fileWriter, logLevel, otelLogProvider, opts...)
	logger = slogManager.Logger()
	slog.SetDefault(logger)
	logger.Info("Starting up...", "version", CurrentVersion, "buildDate", BuildDate)

	var zl zerolog.Logger
	if logFile != nil {
		zl = logging.NewZerologMulti(logLevel, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, logFile)
	} else {
		zl = logging.NewZerolog(nil, logLevel)
	}

	fleet, err := config.GetFleetConfig()
	if err != nil {
		return err
	}
	track, err := geo.NewTrack(fleet.Track)
	if err != nil {
		return fmt.Errorf("invalid track: %w", err)
	}
	logger.Info("Track loaded", "waypoints", track.Len(), "lengthMeters", track.LengthMeters())

	queueCfg := config.GetQueueConfig()
	queues, err := worker.NewQueues(queueCfg.PositionCapacity, queueCfg.VolumeCapacity)
	if err != nil {
		return err
	}

	mmsis := make([]core.MMSI, len(fleet.Vessels))
	for i, v := range fleet.Vessels {
		mmsis[i] = v.MMSI
	}
	table := cache.NewPositionTable(mmsis)

	backend, err := initStorage(logger, zl, fleet, track, sessionStart)
	if err != nil {
		logger.Error("Failed to initialize storage, continuing without history", "error", err)
		backend = nil
	}

	workerManager := worker.NewManager(worker.Dependencies{
		Queues: queues,
		Logger: logger,
	}, backend)

	observers := []simulator.Observer{workerManager}
	influxManager := setupInflux(zl, logsDir, sessionStart)
	if influxManager != nil {
		observers = append(observers, influxManager)
	}

	sim, err := simulator.New(simulator.Config{
		Track:          track,
		Vessels:        fleet.Vessels,
		TickPeriod:     fleet.TickPeriod,
		Terminals:      fleet.Terminals,
		TerminalRadius: fleet.TerminalRadius,
	}, simulator.Dependencies{
		Table:     table,
		Positions: queues,
		Observers: observers,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	tickSource.Store(sim)

	broadcastCfg := config.GetBroadcastConfig()
	hub, err := broadcast.New(broadcast.Config{
		Period:       broadcastCfg.Period,
		ClientBuffer: broadcastCfg.ClientBuffer,
	}, table, logger)
	if err != nil {
		return err
	}
	clientSource.Store(hub)

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	workerManager.RegisterHandlers(eventDispatcher)
	logger.Info("Worker handlers registered with dispatcher")

	mqttClient, subscriber, publisher := setupSensor(logger, eventDispatcher)

	monitorService := monitor.NewService(monitor.Dependencies{
		Table:          table,
		Track:          track,
		Queues:         queues,
		Ticks:          sim,
		Clients:        hub,
		WorkerManager:  workerManager,
		Terminals:      fleet.Terminals,
		TerminalRadius: fleet.TerminalRadius,
		LogsDir:        logsDir,
		Logger:         logger,
	})

	var volumePublisher handlers.VolumePublisher
	if publisher != nil {
		volumePublisher = publisher
	}
	handlerService := handlers.NewService(handlers.Dependencies{
		Queues:    queues,
		Publisher: volumePublisher,
		Status:    monitorService,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              config.GetString("http.addr"),
		Handler:           api.NewRouter(handlerService, hub, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerManager.Go("simulator", sim.Run)
	workerManager.Go("broadcast", hub.Run)
	if err := monitorService.Start(ctx); err != nil {
		logger.Error("Failed to start status monitor", "error", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	if mqttClient != nil {
		subscriber.Unsubscribe(mqttClient)
		mqttClient.Disconnect(250)
	}
	workerManager.Stop()
	monitorService.Stop()
	eventDispatcher.Close()
	closeStorage(logger, backend)
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			logger.Error("Failed to close InfluxDB manager", "error", err)
		}
	}

	logger.Info("Shutdown complete", "ticks", sim.Ticks(), "frames", hub.FramesSent())
	if err := slogManager.Flush(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "log flush failed: %v\n", err)
	}
	if otelProvider != nil {
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "otel shutdown failed: %v\n", err)
		}
	}
	return runErr
}

// setupOTel creates the OTel provider when enabled. Logs go to a dedicated
// file next to the session log; metrics are dumped to their own file.
func setupOTel(logger *slog.Logger, logsDir string, start time.Time) *intOtel.Provider {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return nil
	}

	otelLogFile, err := logging.OpenLogFile(logsDir, ServiceName+".otel", start)
	if err != nil {
		logger.Error("Failed to open OTel log file", "error", err)
		return nil
	}
	metricFile, err := logging.OpenLogFile(logsDir, ServiceName+".metrics", start)
	if err != nil {
		logger.Error("Failed to open OTel metric file", "error", err)
		metricFile = nil
	}

	cfg := intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      otelLogFile,
		MetricInterval: otelCfg.MetricInterval,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	}
	if metricFile != nil {
		cfg.MetricWriter = metricFile
	}

	provider, err := intOtel.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		return nil
	}
	if otelCfg.Endpoint != "" {
		logger.Info("OTel provider initialized", "file", otelLogFile.Name(), "endpoint", otelCfg.Endpoint)
	} else {
		logger.Info("OTel provider initialized", "file", otelLogFile.Name())
	}
	return provider
}

// setupInflux connects the telemetry writer when enabled. An unreachable
// server still yields a manager that writes to the backup file.
func setupInflux(zl zerolog.Logger, logsDir string, start time.Time) *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}

	backupPath := filepath.Join(logsDir, fmt.Sprintf("%s_influx_%s.lp.gz", ServiceName, start.Format("20060102_150405")))
	m := influx.NewManager(cfg, zl, backupPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		zl.Error().Err(err).Msg("Failed to set up InfluxDB telemetry")
		return nil
	}
	return m
}

// setupSensor subscribes to the sensor topic. The broker is optional: on any
// failure the service runs without the MQTT feed and POST /volume answers 503.
func setupSensor(logger *slog.Logger, d *dispatcher.Dispatcher) (mqtt.Client, *sensor.Subscriber, *sensor.Publisher) {
	mqttCfg, err := config.GetMQTTConfig()
	if err != nil {
		logger.Error("Invalid MQTT config, sensor feed disabled", "error", err)
		return nil, nil, nil
	}
	if !mqttCfg.Enabled {
		logger.Info("Sensor feed disabled")
		return nil, nil, nil
	}

	subscriber, err := sensor.NewSubscriber(mqttCfg.Topic, mqttCfg.QoS, d, logger)
	if err != nil {
		logger.Error("Failed to create sensor subscriber", "error", err)
		return nil, nil, nil
	}

	client, err := sensor.Connect(mqttCfg, logger, subscriber.OnConnect)
	switch {
	case errors.Is(err, sensor.ErrConnectTimeout):
		logger.Warn("MQTT broker not reachable yet, retrying in background", "error", err)
	case err != nil:
		logger.Error("Failed to connect to MQTT broker, sensor feed disabled", "error", err)
		return nil, nil, nil
	}

	return client, subscriber, sensor.NewPublisher(client, mqttCfg.Topic, mqttCfg.QoS)
}
