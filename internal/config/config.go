// Package config loads and validates tasklist configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends understood by the server.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Application ApplicationConfig `mapstructure:"application"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Store       StoreConfig       `mapstructure:"store"`
	Firestore   FirestoreConfig   `mapstructure:"firestore"`
	Postgres    PostgresConfig    `mapstructure:"postgres"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Export      ExportConfig      `mapstructure:"export"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                     int `mapstructure:"port"`
	ReadHeaderTimeoutSeconds int `mapstructure:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int `mapstructure:"shutdown_timeout_seconds"`
}

// ApplicationConfig identifies the service to Cloud Trace and Cloud Logging.
type ApplicationConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	ProjectID   string `mapstructure:"project_id"`
	Region      string `mapstructure:"region"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls the tracing bootstrap.
type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTelLogLevel string  `mapstructure:"otel_log_level"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// FirestoreConfig selects the Firestore database and collection.
type FirestoreConfig struct {
	DatabaseID string `mapstructure:"database_id"`
	Collection string `mapstructure:"collection"`
}

// PostgresConfig controls the optional relational backend.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for task event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ExportConfig controls where task snapshots are written.
type ExportConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// Load builds a Config from an optional .env file, an optional config file and the environment.
func Load(path string) (Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TASKLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindPlatformEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Application.ProjectID
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout_seconds", 5)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("application.service_name", "tasklist")
	v.SetDefault("application.version", "dev")
	v.SetDefault("application.project_id", "")
	v.SetDefault("application.region", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.otel_log_level", "info")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("store.backend", BackendFirestore)
	v.SetDefault("firestore.database_id", "(default)")
	v.SetDefault("firestore.collection", "tasks")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "tasks")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("export.gcs_bucket", "")
	v.SetDefault("export.local_dir", "")
	v.SetDefault("export.prefix", "exports")
}

// bindPlatformEnv maps the unprefixed variables set by Cloud Run and the OpenTelemetry
// conventions. The prefixed form wins when both are present.
func bindPlatformEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":              {"TASKLIST_SERVER_PORT", "PORT"},
		"firestore.database_id":    {"TASKLIST_FIRESTORE_DATABASE_ID", "DATABASE_ID"},
		"telemetry.otel_log_level": {"TASKLIST_TELEMETRY_OTEL_LOG_LEVEL", "OTEL_LOG_LEVEL"},
		"application.project_id":   {"TASKLIST_APPLICATION_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Store.Backend {
	case BackendFirestore, BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn must be set when store.backend is postgres")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", c.Store.Backend)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// PubSubEnabled reports whether task events should be published.
func (c Config) PubSubEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.TopicName != ""
}

// ReadHeaderTimeout converts the header timeout to a duration.
func (c Config) ReadHeaderTimeout() time.Duration {
	return time.Duration(c.Server.ReadHeaderTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown, including the trace flush.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
