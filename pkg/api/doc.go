// Package api serves the HTTP surface of igloader.
//
// Routes:
//
//	POST /api/v1/download/post  retrieve one post into the download directory
//	GET  /health                liveness probe
//	GET  /metrics               Prometheus metrics, when enabled
//
// The retrieval capability is injected into NewServer as a
// retrieval.Retriever; the handler only resolves the target directory,
// delegates, and maps the returned retrieval.Outcome to a response.
// Retrievals are detached from client cancellation and not bounded by
// a deadline here.
package api
