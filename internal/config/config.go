package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "animscope.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds sqlite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	OutputDir    string        `json:"outputDir" mapstructure:"outputDir"`
}

// StorageConfig selects and configures the recording backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// APIConfig holds the streaming server settings
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`

	// UploadExports sends exported recording files to the server.
	UploadExports bool `json:"uploadExports" mapstructure:"uploadExports"`
}

// InfluxConfig holds influxdb settings
type InfluxConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// MQTTConfig holds broker settings
type MQTTConfig struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	ClientID string `json:"clientId" mapstructure:"clientId"`
	Topic    string `json:"topic" mapstructure:"topic"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// CaptureConfig holds screencast settings for group thumbnails
type CaptureConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	MaxWindow     time.Duration `json:"maxWindow" mapstructure:"maxWindow"`
	Quality       int64         `json:"quality" mapstructure:"quality"`
	MaxHeight     int64         `json:"maxHeight" mapstructure:"maxHeight"`
	EveryNthFrame int64         `json:"everyNthFrame" mapstructure:"everyNthFrame"`
}

// BrowserConfig identifies the debugging target
type BrowserConfig struct {
	URL      string `json:"url" mapstructure:"url"`
	TargetID string `json:"targetId" mapstructure:"targetId"`
}

// MonitorConfig holds the status reporter settings
type MonitorConfig struct {
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers default values for every known key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./animscopelogs")

	viper.SetDefault("browser.url", "ws://127.0.0.1:9222")
	viper.SetDefault("browser.targetId", "")

	viper.SetDefault("capture.enabled", true)
	viper.SetDefault("capture.maxWindow", "3s")
	viper.SetDefault("capture.quality", 80)
	viper.SetDefault("capture.maxHeight", 300)
	viper.SetDefault("capture.everyNthFrame", 2)

	viper.SetDefault("session.inboxSize", 10000)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.uploadExports", false)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "animscope")

	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "animscope")
	viper.SetDefault("influx.bucket", "animations")

	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientId", "animscope")
	viper.SetDefault("mqtt.topic", "animscope")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "animscope")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "30s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetStorageConfig returns the storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
		},
	}
}

// GetDBConfig returns the postgres connection settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetAPIConfig returns the streaming server settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL:     viper.GetString("api.serverUrl"),
		APIKey:        viper.GetString("api.apiKey"),
		UploadExports: viper.GetBool("api.uploadExports"),
	}
}

// GetInfluxConfig returns the influxdb settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetMQTTConfig returns the broker settings.
func GetMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:   viper.GetString("mqtt.broker"),
		ClientID: viper.GetString("mqtt.clientId"),
		Topic:    viper.GetString("mqtt.topic"),
		Username: viper.GetString("mqtt.username"),
		Password: viper.GetString("mqtt.password"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetCaptureConfig returns the screencast settings.
func GetCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Enabled:       viper.GetBool("capture.enabled"),
		MaxWindow:     viper.GetDuration("capture.maxWindow"),
		Quality:       viper.GetInt64("capture.quality"),
		MaxHeight:     viper.GetInt64("capture.maxHeight"),
		EveryNthFrame: viper.GetInt64("capture.everyNthFrame"),
	}
}

// GetBrowserConfig returns the debugging target settings.
func GetBrowserConfig() BrowserConfig {
	return BrowserConfig{
		URL:      viper.GetString("browser.url"),
		TargetID: viper.GetString("browser.targetId"),
	}
}

// GetMonitorConfig returns the status reporter settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{Interval: viper.GetDuration("monitor.interval")}
}
