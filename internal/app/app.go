// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the serve and worker commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/getsentry/sentry-go"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/memote-webservice/internal/api"
	"github.com/JakeFAU/memote-webservice/internal/clock/system"
	"github.com/JakeFAU/memote-webservice/internal/config"
	"github.com/JakeFAU/memote-webservice/internal/dispatcher"
	"github.com/JakeFAU/memote-webservice/internal/hash/sha256"
	"github.com/JakeFAU/memote-webservice/internal/id/uuid"
	pubgcp "github.com/JakeFAU/memote-webservice/internal/publisher/pubsub"
	queuememory "github.com/JakeFAU/memote-webservice/internal/queue/memory"
	queueredis "github.com/JakeFAU/memote-webservice/internal/queue/redis"
	"github.com/JakeFAU/memote-webservice/internal/retrieval"
	"github.com/JakeFAU/memote-webservice/internal/snapshot"
	"github.com/JakeFAU/memote-webservice/internal/storage/gcs"
	"github.com/JakeFAU/memote-webservice/internal/storage/local"
	storememory "github.com/JakeFAU/memote-webservice/internal/storage/memory"
	"github.com/JakeFAU/memote-webservice/internal/storage/postgres"
	storeredis "github.com/JakeFAU/memote-webservice/internal/storage/redis"
	"github.com/JakeFAU/memote-webservice/internal/storage/s3"
	"github.com/JakeFAU/memote-webservice/internal/submission"
	"github.com/JakeFAU/memote-webservice/internal/telemetry"
	"github.com/JakeFAU/memote-webservice/internal/worker"
)

const shutdownTimeout = 5 * time.Second

type closer struct {
	name string
	fn   func() error
}

// App holds the shared, long-lived services. It is built once at startup
// from an immutable config.Config.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	jobs      snapshot.JobStore
	queue     snapshot.Queue
	dumps     snapshot.BlobStore
	publisher snapshot.Publisher
	ids       snapshot.IDGenerator
	clock     snapshot.Clock
	hasher    snapshot.Hasher

	redis    *goredis.Client
	postgres *postgres.JobStore

	checks  []api.ReadinessCheck
	closers []closer
	closed  bool
}

// New creates and initializes the App. It fails fast if any configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		ids:    uuid.New(),
		clock:  system.New(),
		hasher: sha256.New(),
	}
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"sentry", a.initSentry},
		{"tracing", a.initTracing},
		{"results", a.initResults},
		{"queue", a.initQueue},
		{"dumps", a.initDumps},
		{"publisher", a.initPublisher},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("init %s: %w", step.name, err)
		}
	}
	logger.Info("application services initialized",
		zap.String("environment", cfg.Environment),
		zap.String("queue", cfg.Queue.Backend),
		zap.String("results", cfg.Results.Backend),
		zap.String("dumps", cfg.Dump.Backend),
	)
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) initSentry(context.Context) error {
	if a.cfg.Sentry.DSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              a.cfg.Sentry.DSN,
		Environment:      a.cfg.Environment,
		Release:          a.cfg.Version,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	a.onClose("sentry", func() error {
		sentry.Flush(shutdownTimeout)
		return nil
	})
	return nil
}

func (a *App) initTracing(ctx context.Context) error {
	if !a.cfg.Tracing.Enabled {
		return nil
	}
	tp, err := telemetry.InitTracerProvider(ctx, a.cfg.Tracing.ServiceName, a.cfg.Version, a.logger)
	if err != nil {
		return err
	}
	a.onClose("tracing", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return tp.Shutdown(shutdownCtx)
	})
	return nil
}

// redisClient connects once and shares the client between the queue and
// the result store.
func (a *App) redisClient(ctx context.Context) (*goredis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := storeredis.NewClient(ctx, a.cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.checks = append(a.checks, api.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}})
	a.onClose("redis", client.Close)
	return client, nil
}

func (a *App) initResults(ctx context.Context) error {
	switch a.cfg.Results.Backend {
	case config.BackendMemory:
		a.jobs = storememory.NewJobStore(a.cfg.Results.TTL)
	case config.BackendRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return err
		}
		store, err := storeredis.NewJobStore(client, a.cfg.Results.TTL)
		if err != nil {
			return err
		}
		a.jobs = store
	case config.BackendPostgres:
		store, err := postgres.NewJobStore(ctx, postgres.JobStoreConfig{
			DSN:             a.cfg.Postgres.DSN,
			Table:           a.cfg.Postgres.Table,
			MaxConns:        a.cfg.Postgres.MaxConns,
			MinConns:        a.cfg.Postgres.MinConns,
			MaxConnLifetime: a.cfg.Postgres.MaxConnLifetime,
			ResultTTL:       a.cfg.Results.TTL,
		})
		if err != nil {
			return err
		}
		a.onClose("postgres", func() error {
			store.Close()
			return nil
		})
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		a.postgres = store
		a.jobs = store
		a.checks = append(a.checks, api.ReadinessCheck{Name: "postgres", Check: store.Ping})
	default:
		return fmt.Errorf("unknown results backend: %s", a.cfg.Results.Backend)
	}
	return nil
}

func (a *App) initQueue(ctx context.Context) error {
	switch a.cfg.Queue.Backend {
	case config.BackendMemory:
		q := queuememory.NewQueue(a.cfg.Queue.Depth)
		a.onClose("queue", func() error {
			q.Close()
			return nil
		})
		a.queue = q
	case config.BackendRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return err
		}
		q, err := queueredis.NewQueue(client, queueredis.Config{Name: a.cfg.Queue.Name}, a.logger.Named("queue"))
		if err != nil {
			return err
		}
		a.queue = q
	default:
		return fmt.Errorf("unknown queue backend: %s", a.cfg.Queue.Backend)
	}
	return nil
}

func (a *App) initDumps(ctx context.Context) error {
	switch a.cfg.Dump.Backend {
	case config.BackendMemory:
		a.dumps = storememory.NewBlobStore()
	case config.BackendLocal:
		store, err := local.New(local.Config{Dir: a.cfg.Dump.Dir})
		if err != nil {
			return err
		}
		a.dumps = store
	case config.BackendGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return err
		}
		a.onClose("gcs", client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Dump.Bucket, Prefix: a.cfg.Dump.Prefix})
		if err != nil {
			return err
		}
		a.dumps = store
	case config.BackendS3:
		client, err := s3.NewClient(ctx, s3.ClientConfig{
			Endpoint:        a.cfg.Dump.S3.Endpoint,
			Region:          a.cfg.Dump.S3.Region,
			AccessKeyID:     a.cfg.Dump.S3.AccessKeyID,
			SecretAccessKey: a.cfg.Dump.S3.SecretAccessKey,
		})
		if err != nil {
			return err
		}
		store, err := s3.New(client, s3.Config{Bucket: a.cfg.Dump.Bucket, Prefix: a.cfg.Dump.Prefix})
		if err != nil {
			return err
		}
		a.dumps = store
	default:
		return fmt.Errorf("unknown dump backend: %s", a.cfg.Dump.Backend)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	switch {
	case a.cfg.PubSub.Topic == "":
		return nil
	case a.cfg.PubSub.ProjectID == "":
		a.logger.Warn("pubsub topic set without a project; completion events disabled",
			zap.String("topic", a.cfg.PubSub.Topic))
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("create pubsub client: %w", err)
	}
	pub := pubgcp.New(client)
	a.onClose("pubsub", pub.Close)
	a.publisher = pub
	return nil
}

// Server builds the HTTP API over the configured backends.
func (a *App) Server() *api.Server {
	loader := submission.NewLoader(a.dumps, a.ids, a.logger.Named("loader"))
	submitter := submission.NewSubmitter(a.jobs, a.queue, a.ids, a.clock, a.logger.Named("submitter"))
	service := submission.NewService(loader, submitter, a.cfg.Server.MaxDecompressed, a.logger.Named("submission"))
	resolver := retrieval.NewResolver(a.jobs, a.logger.Named("retrieval"))
	return api.NewServer(service, resolver, a.checks, a.cfg, a.logger.Named("api"))
}

// Dispatcher builds the worker pool that runs queued snapshot jobs.
func (a *App) Dispatcher() *dispatcher.Dispatcher {
	suite := snapshot.NewSuite(a.clock, a.cfg.Version)
	workerCfg := worker.Config{
		TaskTimeout: a.cfg.Worker.TaskTimeout,
		Topic:       a.cfg.PubSub.Topic,
	}
	workers := make([]dispatcher.Runner, 0, a.cfg.Worker.Concurrency)
	for i := 0; i < a.cfg.Worker.Concurrency; i++ {
		workers = append(workers, worker.New(
			a.queue,
			a.jobs,
			suite,
			a.publisher,
			a.hasher,
			a.clock,
			workerCfg,
			a.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	return dispatcher.New(a.queue, workers, a.logger.Named("dispatcher"))
}

// RunJanitor deletes expired results from Postgres until ctx finishes. The
// other result stores expire entries themselves, so it returns at once.
func (a *App) RunJanitor(ctx context.Context) {
	if a.postgres == nil || a.cfg.Results.TTL <= 0 {
		return
	}
	interval := a.cfg.Postgres.JanitorInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.postgres.DeleteExpired(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					a.logger.Warn("delete expired results failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				a.logger.Info("deleted expired results", zap.Int64("rows", n))
			}
		}
	}
}

// Close shuts down services in reverse order of creation. It is safe to
// call more than once.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
}
