package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.True(t, cfg.Development())
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, int64(25*1024*1024), cfg.Server.MaxContentLength)
	assert.Equal(t, int64(250*1024*1024), cfg.Server.MaxDecompressed)
	assert.Equal(t, time.Hour, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, BackendMemory, cfg.Queue.Backend)
	assert.Equal(t, BackendMemory, cfg.Results.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Results.TTL)
	assert.Equal(t, BackendLocal, cfg.Dump.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Worker.TaskTimeout)
	assert.True(t, cfg.Worker.Embedded)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
environment: production
server:
  port: 9090
  max_content_length: 1048576
  read_header_timeout: 5s
  trust_proxy: true
cors:
  allowed_origins: ["https://memote.io", "https://staging.memote.io"]
queue:
  backend: redis
  name: snapshots
redis:
  url: redis://localhost:6379/0
results:
  backend: postgres
  ttl: 1h
postgres:
  dsn: postgres://memote@localhost/memote
  max_conns: 8
  min_conns: 2
  max_conn_lifetime: 30m
dump:
  backend: s3
  bucket: memote-dumps
  s3:
    endpoint: http://localhost:9000
worker:
  concurrency: 6
  embedded: false
  task_timeout: 2m
pubsub:
  project_id: memote
  topic: snapshots-done
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Development())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(1048576), cfg.Server.MaxContentLength)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, []string{"https://memote.io", "https://staging.memote.io"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "snapshots", cfg.Queue.Name)
	assert.Equal(t, time.Hour, cfg.Results.TTL)
	assert.Equal(t, int32(8), cfg.Postgres.MaxConns)
	assert.Equal(t, int32(2), cfg.Postgres.MinConns)
	assert.Equal(t, 30*time.Minute, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, "snapshot_jobs", cfg.Postgres.Table)
	assert.Equal(t, "http://localhost:9000", cfg.Dump.S3.Endpoint)
	assert.Equal(t, "us-east-1", cfg.Dump.S3.Region)
	assert.Equal(t, 6, cfg.Worker.Concurrency)
	assert.Equal(t, 2*time.Minute, cfg.Worker.TaskTimeout)
	assert.Equal(t, "snapshots-done", cfg.PubSub.Topic)
}

func TestLoadLegacyEnvironmentNames(t *testing.T) {
	t.Setenv("ENVIRONMENT", "testing")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MAX_CONTENT_LENGTH", "2048")
	t.Setenv("SENTRY_DSN", "https://key@sentry.example/1")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("MEMOTE_QUEUE_BACKEND", "redis")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.Server.MaxContentLength)
	assert.Equal(t, "https://key@sentry.example/1", cfg.Sentry.DSN)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, BackendRedis, cfg.Queue.Backend)
}

func TestLoadPrefixedNameWins(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://legacy:6379/0")
	t.Setenv("MEMOTE_REDIS_URL", "redis://prefixed:6379/0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis://prefixed:6379/0", cfg.Redis.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Environment: EnvDevelopment,
		Server:      ServerConfig{Port: 8000, MaxContentLength: 1024, MaxDecompressed: 4096},
		Queue:       QueueConfig{Backend: BackendMemory, Depth: 1},
		Results:     ResultsConfig{Backend: BackendMemory},
		Dump:        DumpConfig{Backend: BackendMemory},
		Worker:      WorkerConfig{Concurrency: 1, Embedded: true, TaskTimeout: time.Minute},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "environment", mutate: func(c *Config) { c.Environment = "staging" }, want: "environment"},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "upload limit", mutate: func(c *Config) { c.Server.MaxContentLength = 0 }, want: "server.max_content_length"},
		{name: "queue backend", mutate: func(c *Config) { c.Queue.Backend = "kafka" }, want: "queue.backend"},
		{name: "queue depth", mutate: func(c *Config) { c.Queue.Depth = 0 }, want: "queue.depth"},
		{name: "memory queue without workers", mutate: func(c *Config) { c.Worker.Embedded = false }, want: "worker.embedded"},
		{name: "redis queue url", mutate: func(c *Config) { c.Queue.Backend = BackendRedis }, want: "redis.url"},
		{name: "results backend", mutate: func(c *Config) { c.Results.Backend = "mongo" }, want: "results.backend"},
		{name: "postgres dsn", mutate: func(c *Config) { c.Results.Backend = BackendPostgres }, want: "postgres.dsn"},
		{name: "decompression limit", mutate: func(c *Config) { c.Server.MaxDecompressed = 512 }, want: "server.max_decompressed_length"},
		{name: "postgres min conns", mutate: func(c *Config) {
			c.Results.Backend = BackendPostgres
			c.Postgres = PostgresConfig{DSN: "postgres://localhost/memote", MaxConns: 2, MinConns: 3}
		}, want: "postgres.min_conns"},
		{name: "negative ttl", mutate: func(c *Config) { c.Results.TTL = -time.Second }, want: "results.ttl"},
		{name: "dump backend", mutate: func(c *Config) { c.Dump.Backend = "ftp" }, want: "dump.backend"},
		{name: "dump dir", mutate: func(c *Config) { c.Dump.Backend = BackendLocal }, want: "dump.dir"},
		{name: "dump bucket", mutate: func(c *Config) { c.Dump.Backend = BackendGCS }, want: "dump.bucket"},
		{name: "concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, want: "worker.concurrency"},
		{name: "task timeout", mutate: func(c *Config) { c.Worker.TaskTimeout = 0 }, want: "worker.task_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
