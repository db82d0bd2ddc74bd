// Package main hosts the tasklist service entrypoint.
//
// Architecture overview:
//   - HTTP front end: internal/api.Server renders the task list and the create form as embedded HTML templates and
//     handles the create and delete form posts with 303 redirects back to the list. /ping is a liveness probe and
//     /metrics exposes Prometheus collectors.
//   - Persistence: tasks live in Firestore by default (collection "tasks", database from DATABASE_ID). Postgres and an
//     in-memory store implement the same tasks.Store contract for other deployments and local runs.
//   - Events: when a Pub/Sub topic is configured, task.created and task.deleted events are published after each
//     successful mutation. Publish failures are logged and never affect the HTTP response.
//   - Observability: zap writes Cloud Logging JSON (severity, message, timestamp, trace correlation keys) to stdout.
//     internal/telemetry starts OpenTelemetry before any gRPC client exists and exports spans to Cloud Trace.
//
// Operational notes:
//   - Cloud Run: the server listens on PORT and reacts to SIGTERM by draining requests, closing clients and flushing
//     pending spans within server.shutdown_timeout_seconds.
//   - Export: `tasklist export` writes a JSON snapshot of every task to GCS (export.gcs_bucket) or a local directory
//     (export.local_dir) and prints the object URI.
//
// Quick checklist:
//   - Configure env vars: PORT, GOOGLE_CLOUD_PROJECT, DATABASE_ID, OTEL_LOG_LEVEL, or the TASKLIST_* forms of any
//     config key (TASKLIST_STORE_BACKEND=memory for a local run without credentials).
//   - Run locally: go run ./cmd/tasklist serve --config config.yaml (or rely solely on env overrides).
package main
