// Package api hosts the HTTP server, middleware, and handlers of the
// webservice. Routes:
//   - POST /submit accepts a multipart upload in the "model" field and
//     answers 202 with the job uuid.
//   - GET /report/{uuid} returns the finished report as JSON or HTML,
//     chosen from the Accept header, or 404 while the job is pending.
//   - Uploads over the per-client allowance (server.submit_rps) get 429.
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
package api
