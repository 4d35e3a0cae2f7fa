package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/livepid/tracker/internal/api"
	"github.com/livepid/tracker/internal/config"
	"github.com/livepid/tracker/internal/dispatcher"
	"github.com/livepid/tracker/internal/indicator"
	"github.com/livepid/tracker/internal/influx"
	"github.com/livepid/tracker/internal/logging"
	"github.com/livepid/tracker/internal/monitor"
	intOtel "github.com/livepid/tracker/internal/otel"
	"github.com/livepid/tracker/internal/session"
	"github.com/livepid/tracker/internal/storage"
	"github.com/livepid/tracker/pkg/hostfeed"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.0.1"
	BuildDate               string = "unknown"

	ExtensionName string = "livepid"
)

const shutdownTimeout = 10 * time.Second

// app holds everything started by run, in start order.
type app struct {
	start time.Time

	slogManager *logging.SlogManager
	logger      *slog.Logger
	logFile     *os.File
	logWriter   io.Writer
	logLevel    string
	graylog     io.Closer
	otel        *intOtel.Provider

	backend    storage.Backend
	influx     *influx.Manager
	dispatcher *dispatcher.Dispatcher
	manager    *session.Manager
	api        *api.Server
	monitor    *monitor.Service
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "report":
			os.Exit(runReport(os.Args[2:], os.Stdout))
		case "migratebackups":
			os.Exit(runMigrateBackups(os.Args[2:]))
		case "version":
			fmt.Printf("%s %s (built %s)\n", ExtensionName, CurrentExtensionVersion, BuildDate)
			return
		}
	}
	os.Exit(run(os.Args[1:]))
}

// run tracks one feed until EOF or a signal.
func run(args []string) int {
	flags := pflag.NewFlagSet(ExtensionName, pflag.ContinueOnError)
	configDir := flags.String("config", ".", "directory containing "+config.FileName)
	feedPath := flags.String("feed", "-", "host feed file, - for stdin")
	sessionName := flags.String("session", session.DefaultSessionName, "name of the session started at launch")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{start: time.Now()}
	defer a.shutdown()

	if err := a.setup(ctx, *configDir); err != nil {
		a.logger.Error("Startup failed", "error", err)
		return 1
	}

	if err := a.manager.Start(*sessionName); err != nil {
		a.logger.Error("Session journal unavailable, tracking without it", "error", err)
	}

	feed, closeFeed, err := openFeed(*feedPath)
	if err != nil {
		a.logger.Error("Failed to open feed", "error", err)
		return 1
	}
	defer closeFeed()

	a.logger.Info("Reading host feed", "feed", *feedPath)
	err = hostfeed.Serve(ctx, feed, a.dispatcher, os.Stdout)
	switch {
	case err == nil:
		a.logger.Info("Host feed ended")
	case errors.Is(err, context.Canceled):
		a.logger.Info("Interrupted, shutting down")
	default:
		a.logger.Error("Host feed failed", "error", err)
		return 1
	}
	return 0
}

func (a *app) setup(ctx context.Context, configDir string) error {
	// Initialize slog manager with initial config
	a.slogManager = logging.NewSlogManager()
	a.slogManager.SetContextProvider(func() []slog.Attr {
		if a.manager == nil {
			return nil
		}
		return a.manager.LogContext()
	})
	a.slogManager.Setup(nil, "info", nil, nil)
	a.logger = a.slogManager.Logger()

	// load config
	if err := config.Load(configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFilePath := logging.LogFilePath(logsDir, ExtensionName, a.start)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		a.logger.Error("Failed to create/open log file!", "error", err, "path", logFilePath)
	} else {
		a.logFile = logFile
	}

	a.setupOTel()
	a.setupLogging(logFilePath)

	a.logger.Info("Starting", "version", CurrentExtensionVersion, "build", BuildDate)

	// Storage
	backend, err := initStorage(config.GetStorageConfig(), a.zlog("storage"), a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.backend = backend

	// Metrics
	var metrics session.MetricsSink
	var points monitor.PointWriter
	backupPath := filepath.Join(logsDir, fmt.Sprintf("influx_backup_%s.log.gz", a.start.Format("20060102_150405")))
	a.influx = influx.NewManager(a.zlog("influx"), backupPath)
	switch err := a.influx.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
		a.influx = nil
	case err != nil:
		a.logger.Error("Failed to connect to InfluxDB", "error", err)
		a.influx = nil
	default:
		metrics, points = a.influx, a.influx
	}

	// Dispatcher and session
	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog("dispatcher")))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	a.dispatcher = d

	ic := config.GetIndicatorConfig()
	a.manager = session.NewManager(session.Dependencies{
		Backend: backend,
		Metrics: metrics,
		Indicator: indicator.Settings{
			Mode:                indicator.ParseMode(ic.Mode),
			TextSize:            ic.TextSize,
			HideWhenOutOfCombat: ic.HideWhenOutOfCombat,
		},
		Logger:           a.logger.With("component", "session"),
		ExtensionVersion: CurrentExtensionVersion,
	})
	a.manager.RegisterHandlers(d)
	a.logger.Info("Session handlers registered with dispatcher")

	// Status API
	if apiCfg := config.GetAPIConfig(); apiCfg.Enabled {
		srv := api.NewServer(a.manager, a.logger.With("component", "api"))
		if err := srv.Start(apiCfg.Listen); err != nil {
			a.logger.Error("Failed to start status API", "error", err)
		} else {
			a.api = srv
		}
	}

	// Monitor
	a.monitor = monitor.NewService(monitor.Dependencies{
		Source:     a.manager,
		Logger:     a.logger.With("component", "monitor"),
		Influx:     points,
		StatusFile: filepath.Join(logsDir, "status.txt"),
		Interval:   config.GetDuration("monitor.interval"),
	})
	return a.monitor.Start()
}

func (a *app) setupOTel() {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return
	}

	var logWriter io.Writer
	if a.logFile != nil {
		logWriter = a.logFile
	}
	provider, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logWriter,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		a.logger.Error("Failed to initialize OTel provider", "error", err)
		return
	}
	a.otel = provider
	a.logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
}

// setupLogging re-creates the loggers with file output, OTel and Graylog.
func (a *app) setupLogging(logFilePath string) {
	level := viper.GetString("logLevel")

	var provider *sdklog.LoggerProvider
	if a.otel != nil {
		provider = a.otel.LoggerProvider()
	}

	var gelf io.Writer
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"), viper.GetString("graylog.facility"))
		if err != nil {
			a.logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			gelf, a.graylog = w, w
		}
	}

	var file io.Writer
	if a.logFile != nil {
		file = a.logFile
	}
	a.slogManager.Setup(file, level, provider, gelf)
	a.logger = a.slogManager.Logger()
	a.logWriter, a.logLevel = file, level
	if file != nil {
		a.logger.Info("Logging to file", "path", logFilePath)
	}
}

// zlog builds the zerolog logger for one component, sharing the slog output.
func (a *app) zlog(component string) zerolog.Logger {
	return logging.NewZerolog(a.logWriter, a.logLevel, component)
}

// shutdown stops everything setup started, in reverse order.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.api != nil {
		if err := a.api.Shutdown(ctx); err != nil {
			a.logger.Error("Failed to stop status API", "error", err)
		}
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.manager != nil {
		if err := a.manager.Stop(); err != nil {
			a.logger.Error("Failed to stop session", "error", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("Failed to close storage backend", "error", err)
		}
		if exp, ok := a.backend.(storage.Exportable); ok && exp.ExportedFilePath() != "" {
			a.logger.Info("Session journal written", "path", exp.ExportedFilePath())
		}
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Error("Failed to close InfluxDB client", "error", err)
		}
	}

	if a.logger != nil {
		a.logger.Info("Shutdown complete")
	}
	if a.slogManager != nil {
		if err := a.slogManager.Flush(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
		}
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shut down OTel: %v\n", err)
		}
	}
	if a.graylog != nil {
		a.graylog.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

func openFeed(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}
