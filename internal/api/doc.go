// Package api serves the operator status endpoint while a scrape runs.
// Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the current run snapshot.
package api
