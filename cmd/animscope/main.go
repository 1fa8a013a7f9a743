package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/OCAP2/animscope/internal/animation"
	"github.com/OCAP2/animscope/internal/api"
	"github.com/OCAP2/animscope/internal/cache"
	"github.com/OCAP2/animscope/internal/config"
	"github.com/OCAP2/animscope/internal/devtools"
	"github.com/OCAP2/animscope/internal/logging"
	"github.com/OCAP2/animscope/internal/monitor"
	intOtel "github.com/OCAP2/animscope/internal/otel"
	"github.com/OCAP2/animscope/internal/recorder"
	"github.com/OCAP2/animscope/internal/session"
	"github.com/OCAP2/animscope/internal/storage"
	"github.com/OCAP2/animscope/pkg/core"

	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	BinaryName string = "animscope"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// LogFile receives text logs and OTel dumps
	LogFile *os.File

	StartTime time.Time = time.Now()

	// activeSession feeds the log context once the target is attached.
	activeSession atomic.Pointer[session.Session]
	activeInfo    atomic.Pointer[core.Session]
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "export" {
		os.Exit(runExport(os.Args[2:]))
	}

	configDir := flag.String("config", ".", "directory containing "+config.FileName)
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (built %s)\n", BinaryName, CurrentVersion, BuildDate)
		return
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(logging.SetupOptions{Level: "info"})
	Logger = SlogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "file", filepath.Join(*configDir, config.FileName))
	}

	if err := setupLogging(); err != nil {
		Logger.Error("Failed to set up logging", "error", err)
	}
	defer closeLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		Logger.Error("animscope stopped", "error", err)
		closeLogging()
		os.Exit(1)
	}
}

// setupLogging replaces the bootstrap logger with the configured outputs:
// a log file, the OTel bridge and Graylog when enabled.
func setupLogging() error {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := logging.LogFilePath(logsDir, BinaryName, "", StartTime)
	if _, err := os.Stat(path); err == nil {
		os.Rename(path, path+".old")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", path, err)
	}
	LogFile = f

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      LogFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
			MetricInterval: config.GetMonitorConfig().Interval,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	var extra []slog.Handler
	if viper.GetBool("graylog.enabled") {
		h, err := logging.NewGELFHandler(viper.GetString("graylog.address"), viper.GetString("logLevel"))
		if err != nil {
			Logger.Warn("Graylog disabled", "error", err)
		} else {
			extra = append(extra, h)
		}
	}

	SlogManager.Setup(logging.SetupOptions{
		File:     LogFile,
		Level:    viper.GetString("logLevel"),
		Provider: otelLogProvider,
		Extra:    extra,
		Context: func() []slog.Attr {
			if s := activeSession.Load(); s != nil {
				return s.LogAttrs()
			}
			return nil
		},
	})
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", path, "version", CurrentVersion, "build", BuildDate)
	return nil
}

func closeLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush OTel data", "error", err)
		}
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
		OTelProvider = nil
	}
	if LogFile != nil {
		LogFile.Sync()
		LogFile.Close()
		LogFile = nil
	}
}

// run attaches to the configured target and records until ctx is cancelled
// or the target goes away.
func run(ctx context.Context) error {
	storageCfg := config.GetStorageConfig()
	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing %s storage backend: %w", storageCfg.Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
		if e, ok := backend.(storage.Exporter); ok && e.GetExportedFilePath() != "" {
			Logger.Info("Recording exported", "path", e.GetExportedFilePath())
			if info := activeInfo.Load(); info != nil {
				uploadExport(e.GetExportedFilePath(), *info)
			}
		}
	}()

	browserCfg := config.GetBrowserConfig()
	nodes := cache.NewNodeCache()
	tgt, err := devtools.Connect(ctx, browserCfg, nodes, SlogManager.Component("devtools"))
	if err != nil {
		return fmt.Errorf("attaching to %s: %w", browserCfg.URL, err)
	}
	defer tgt.Close()

	var rec *recorder.Recorder
	sessCfg := session.Config{
		Gateway:   tgt,
		Styler:    tgt,
		InboxSize: viper.GetInt("session.inboxSize"),
		TargetURL: tgt.URL,
		Logger:    SlogManager.Component("session"),
		OnReset: func(reason string) {
			if reason == core.ResetNavigation {
				tgt.ResetNodes()
			}
			rec.RecordReset(reason)
		},
	}
	if capCfg := config.GetCaptureConfig(); capCfg.Enabled {
		sessCfg.Screencaster = tgt
		sessCfg.MaxWindow = capCfg.MaxWindow
		sessCfg.Capture = animation.ScreencastParams{
			Format:        "jpeg",
			Quality:       capCfg.Quality,
			MaxHeight:     capCfg.MaxHeight,
			EveryNthFrame: capCfg.EveryNthFrame,
		}
	}
	sess, err := session.New(sessCfg)
	if err != nil {
		return err
	}
	activeSession.Store(sess)
	defer activeSession.Store(nil)
	activeInfo.Store(sess.Info())

	rec, err = recorder.New(recorder.Config{
		Backend: backend,
		Session: sess.Info(),
		Loop:    sess,
		Logger:  SlogManager.Component("recorder"),
	})
	if err != nil {
		return err
	}
	if err := rec.Start(); err != nil {
		return err
	}
	rec.Attach(sess.Model())

	tgt.Listen(sess)

	monitorService := monitor.NewService(monitor.Dependencies{
		Session:    sess,
		Recorder:   rec,
		Backend:    backend,
		Logger:     SlogManager.Component("monitor"),
		StatusFile: filepath.Join(viper.GetString("logsDir"), "status.json"),
		Interval:   config.GetMonitorConfig().Interval,
	})
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Status monitor not started", "error", err)
	}
	defer monitorService.Stop()

	Logger.Info("Inspecting animations", "target", tgt.ID, "url", tgt.URL, "sessionId", sess.Info().ID)

	// the target context ends when the browser connection is lost
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-tgt.Context().Done():
			Logger.Warn("Target detached")
			cancel()
		case <-runCtx.Done():
		}
	}()

	runErr := sess.Run(runCtx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	if err := endRecording(rec); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

// uploadExport sends the exported file to the presentation server when
// api.uploadExports is set.
func uploadExport(path string, s core.Session) {
	apiCfg := config.GetAPIConfig()
	if !apiCfg.UploadExports {
		return
	}
	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(); err != nil {
		Logger.Warn("Presentation server unreachable, keeping local export", "error", err, "path", path)
		return
	}
	if err := client.Upload(path, s); err != nil {
		Logger.Error("Failed to upload recording", "error", err, "path", path)
		return
	}
	Logger.Info("Recording uploaded", "server", apiCfg.ServerURL, "sessionId", s.ID)
}

func endRecording(rec *recorder.Recorder) error {
	done := make(chan error, 1)
	go func() { done <- rec.End() }()
	select {
	case err := <-done:
		return err
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("recorder did not finish within %s", shutdownTimeout)
	}
}
