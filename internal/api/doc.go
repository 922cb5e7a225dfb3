// Package api hosts the ops HTTP server that runs beside a collection
// session. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/session for the live status of the current session.
//   - GET /v1/runs and /v1/runs/{run_id} for the persisted run ledger via the
//     store.RunRepository interface.
package api
