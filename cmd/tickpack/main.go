package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/demoview/tickpack/internal/config"
	"github.com/demoview/tickpack/internal/logging"
	intOtel "github.com/demoview/tickpack/internal/otel"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "tickpack"
)

var (
	SessionStartTime = time.Now()

	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	DBLogger     zerolog.Logger
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File
)

func usage() {
	fmt.Fprintf(os.Stderr, `%s %s (%s)

Usage:
  %s encode [flags] <demo.tkss>...   encode demos and store them
  %s synth  [flags] <out.tkss>       write a synthetic demo container
  %s inspect [flags] <demo.tkss>     print the manifest of a demo

Run '%s <command> --help' for the flags of a command.
`, AppName, CurrentVersion, BuildDate, AppName, AppName, AppName, AppName)
}

// globalFlags registers the flags every command understands.
func globalFlags(fs *pflag.FlagSet) *string {
	configDir := fs.String("config-dir", ".", "directory containing "+config.FileName)
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "./tickpacklogs", "directory for session log files")
	return configDir
}

// setup loads config, binds fs and wires logging and OTel. The returned
// function flushes and closes everything.
func setup(fs *pflag.FlagSet, configDir string) (func(), error) {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Debug("No config file loaded, using defaults", "error", err)
	}
	if err := config.BindFlags(fs); err != nil {
		return nil, err
	}

	logLevel := viper.GetString("logLevel")
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		_ = os.Rename(LogFilePath, LogFilePath+".old")
	}
	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	OTelProvider, err = intOtel.New(context.Background(), otelCfg, LogFile)
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
		OTelProvider = nil
	} else if otelCfg.Enabled {
		Logger.Info("OTel provider initialized", "file", LogFilePath, "endpoint", otelCfg.Endpoint)
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(io.MultiWriter(os.Stderr, LogFile), logLevel, otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Debug("Logging to file", "path", LogFilePath)

	DBLogger = logging.Component(logging.NewZerolog(logLevel, LogFile), "database")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := SlogManager.Flush(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
		}
		if OTelProvider != nil {
			if err := OTelProvider.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "otel shutdown: %v\n", err)
			}
		}
		_ = LogFile.Close()
	}, nil
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := os.Args[1]; cmd {
	case "encode":
		err = runEncode(ctx, os.Args[2:])
	case "synth":
		err = runSynth(ctx, os.Args[2:])
	case "inspect":
		err = runInspect(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
		os.Exit(1)
	}
}
