// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment profiles.
const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvProduction  = "production"
)

// Backend names shared by the queue, result and dump sections.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendS3       = "s3"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Version     string         `mapstructure:"version"`
	Server      ServerConfig   `mapstructure:"server"`
	CORS        CORSConfig     `mapstructure:"cors"`
	Queue       QueueConfig    `mapstructure:"queue"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Results     ResultsConfig  `mapstructure:"results"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	Dump        DumpConfig     `mapstructure:"dump"`
	Worker      WorkerConfig   `mapstructure:"worker"`
	PubSub      PubSubConfig   `mapstructure:"pubsub"`
	Sentry      SentryConfig   `mapstructure:"sentry"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	MaxContentLength  int64         `mapstructure:"max_content_length"`
	// MaxDecompressed caps the decoded size of gzip and bzip2 uploads.
	MaxDecompressed   int64         `mapstructure:"max_decompressed_length"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	TrustProxy        bool          `mapstructure:"trust_proxy"`
	SubmitRPS         float64       `mapstructure:"submit_rps"`
	SubmitBurst       int           `mapstructure:"submit_burst"`
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// QueueConfig selects the task queue.
type QueueConfig struct {
	Backend string `mapstructure:"backend"`
	Depth   int    `mapstructure:"depth"`
	Name    string `mapstructure:"name"`
}

// RedisConfig is shared by the Redis queue and result store.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// ResultsConfig selects where job records and results live.
type ResultsConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// PostgresConfig controls the Postgres result store.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// DumpConfig selects where unparseable uploads are written.
type DumpConfig struct {
	Backend string   `mapstructure:"backend"`
	Dir     string   `mapstructure:"dir"`
	Bucket  string   `mapstructure:"bucket"`
	Prefix  string   `mapstructure:"prefix"`
	S3      S3Config `mapstructure:"s3"`
}

// S3Config holds S3 client settings. Empty keys fall back to the default
// AWS credential chain.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// WorkerConfig governs the snapshot worker pool.
type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Embedded    bool          `mapstructure:"embedded"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// PubSubConfig holds the completion event destination. An empty topic
// disables publishing, as does a topic without a project.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Development reports whether verbose console logging should be used.
func (c Config) Development() bool {
	return c.Environment != EnvProduction
}

// legacyEnv maps keys to the unprefixed variable names deployments already
// set.
var legacyEnv = map[string]string{
	"environment":               "ENVIRONMENT",
	"cors.allowed_origins":      "ALLOWED_ORIGINS",
	"redis.url":                 "REDIS_URL",
	"sentry.dsn":                "SENTRY_DSN",
	"server.max_content_length": "MAX_CONTENT_LENGTH",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEMOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, name := range legacyEnv {
		prefixed := "MEMOTE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
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
	cfg.CORS.AllowedOrigins = splitOrigins(cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("version", "dev")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.max_content_length", 25*1024*1024) // Recon3D
	v.SetDefault("server.max_decompressed_length", 250*1024*1024)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.submit_rps", 0)
	v.SetDefault("server.submit_burst", 5)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("queue.backend", BackendMemory)
	v.SetDefault("queue.depth", 64)
	v.SetDefault("queue.name", "memote:queue:snapshots")
	v.SetDefault("redis.url", "")
	v.SetDefault("results.backend", BackendMemory)
	v.SetDefault("results.ttl", 24*time.Hour)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "snapshot_jobs")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("postgres.min_conns", 0)
	v.SetDefault("postgres.max_conn_lifetime", time.Hour)
	v.SetDefault("postgres.janitor_interval", 10*time.Minute)
	v.SetDefault("dump.backend", BackendLocal)
	v.SetDefault("dump.dir", "dumps")
	v.SetDefault("dump.bucket", "")
	v.SetDefault("dump.prefix", "dumps")
	v.SetDefault("dump.s3.endpoint", "")
	v.SetDefault("dump.s3.region", "us-east-1")
	v.SetDefault("dump.s3.access_key_id", "")
	v.SetDefault("dump.s3.secret_access_key", "")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.embedded", true)
	v.SetDefault("worker.task_timeout", 10*time.Minute)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "memote-webservice")
}

// splitOrigins accepts both list values and a single comma separated string.
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, origin := range strings.Split(item, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if !slices.Contains([]string{EnvDevelopment, EnvTesting, EnvProduction}, c.Environment) {
		return fmt.Errorf("environment must be one of development, testing, production; got %q", c.Environment)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.MaxContentLength <= 0 {
		return fmt.Errorf("server.max_content_length must be > 0")
	}
	if c.Server.MaxDecompressed < c.Server.MaxContentLength {
		return fmt.Errorf("server.max_decompressed_length must be >= server.max_content_length")
	}
	if c.Server.SubmitRPS < 0 {
		return fmt.Errorf("server.submit_rps must be >= 0")
	}
	switch c.Queue.Backend {
	case BackendMemory:
		if c.Queue.Depth <= 0 {
			return fmt.Errorf("queue.depth must be > 0 for the memory queue")
		}
		if !c.Worker.Embedded {
			return fmt.Errorf("worker.embedded must be true with the memory queue")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis queue")
		}
	default:
		return fmt.Errorf("queue.backend %q is not supported", c.Queue.Backend)
	}
	switch c.Results.Backend {
	case BackendMemory:
		if !c.Worker.Embedded {
			return fmt.Errorf("worker.embedded must be true with the memory result store")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis result store")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres result store")
		}
		if c.Postgres.MinConns < 0 || (c.Postgres.MaxConns > 0 && c.Postgres.MinConns > c.Postgres.MaxConns) {
			return fmt.Errorf("postgres.min_conns must be between 0 and postgres.max_conns")
		}
	default:
		return fmt.Errorf("results.backend %q is not supported", c.Results.Backend)
	}
	if c.Results.TTL < 0 {
		return fmt.Errorf("results.ttl must be >= 0")
	}
	switch c.Dump.Backend {
	case BackendMemory:
	case BackendLocal:
		if c.Dump.Dir == "" {
			return fmt.Errorf("dump.dir is required for local dumps")
		}
	case BackendGCS, BackendS3:
		if c.Dump.Bucket == "" {
			return fmt.Errorf("dump.bucket is required for %s dumps", c.Dump.Backend)
		}
	default:
		return fmt.Errorf("dump.backend %q is not supported", c.Dump.Backend)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Worker.TaskTimeout <= 0 {
		return fmt.Errorf("worker.task_timeout must be > 0")
	}
	return nil
}
