// Package main hosts the memote web service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes POST /submit and GET /report/{uuid} plus health, readiness and
//     metrics endpoints. Uploads are decompressed, classified by MIME type and parsed into a metabolic model
//     before a job is recorded and enqueued.
//   - Queue and workers: jobs flow through a bounded in-memory queue or a Redis list and are picked up by a
//     fixed worker pool sized by worker.concurrency. Each job runs the snapshot suite under worker.task_timeout.
//   - Results: job state and the [metadata, report] result live in memory, Redis or Postgres and expire after
//     results.ttl. Reports are rendered as JSON or HTML according to the Accept header.
//   - Dumps: uploads that fail to parse are written to a local directory, GCS or S3 for later inspection.
//   - Plumbing: Viper reads YAML and MEMOTE_* environment variables (legacy names such as REDIS_URL still work);
//     zap provides structured logging; Prometheus metrics are served on /metrics; Sentry receives unhandled
//     errors when sentry.dsn is set; completion events go to Pub/Sub when a project and topic are configured.
//
// Commands:
//   - memote serve: HTTP API with embedded workers (disable with worker.embedded=false).
//   - memote worker: workers only, for use with the Redis queue.
//
// Quick checklist:
//   - Run locally: go run ./cmd/memote serve --config config.yaml (or rely on env overrides and .env).
//   - Scale out: set queue.backend and results.backend to redis, run serve with worker.embedded=false and one
//     or more worker processes.
package main
