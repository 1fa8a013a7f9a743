package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/animscope/internal/config"
	"github.com/OCAP2/animscope/internal/storage"
	influxstorage "github.com/OCAP2/animscope/internal/storage/influx"
	"github.com/OCAP2/animscope/internal/storage/memory"
	mqttstorage "github.com/OCAP2/animscope/internal/storage/mqtt"
	pgstorage "github.com/OCAP2/animscope/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/animscope/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/animscope/internal/storage/websocket"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			Config: config.GetDBConfig(),
			Logger: SlogManager.Component("postgres"),
		}), nil

	case "sqlite":
		dumpPath := filepath.Join(storageCfg.SQLite.OutputDir, fmt.Sprintf("%s_%s.db", BinaryName, StartTime.Format("20060102_150405")))
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
		}, SlogManager.Component("sqlite"))
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		apiCfg := config.GetAPIConfig()
		wsURL := httpToWS(apiCfg.ServerURL) + "/api"
		Logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			APIKey: apiCfg.APIKey,
			Logger: SlogManager.Component("websocket"),
		}), nil

	case "influx":
		influxCfg := config.GetInfluxConfig()
		backupPath := filepath.Join(viper.GetString("logsDir"), fmt.Sprintf("influx_%s.lp.gz", StartTime.Format("20060102_150405")))
		Logger.Info("InfluxDB storage backend initialized", "url", influxstorage.ServerURL(influxCfg))
		return influxstorage.New(influxCfg, backupPath, zerologger("influx")), nil

	case "mqtt":
		mqttCfg := config.GetMQTTConfig()
		Logger.Info("MQTT storage backend initialized", "broker", mqttCfg.Broker)
		return mqttstorage.New(mqttCfg, SlogManager.Component("mqtt")), nil

	default:
		Logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil
	}
}

// zerologger writes to the log file, or stderr before it exists.
func zerologger(component string) zerolog.Logger {
	var out io.Writer = os.Stderr
	if LogFile != nil {
		out = LogFile
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}).
		Level(zerologLevel(viper.GetString("logLevel"))).
		With().Timestamp().Str("component", component).
		Logger()
}

func zerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
