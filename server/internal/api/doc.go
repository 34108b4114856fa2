// Package api implements the HTTP REST API for sasi-server.
//
// New(store, alerts, limits) returns an http.Handler that serves:
//
//	GET  /api/v1/health               run counts per final state, firing alerts
//	POST /api/v1/evaluate             one evaluation, nothing stored
//	POST /api/v1/runs                 run fixed | schedule | sweep and store it
//	GET  /api/v1/runs                 live runs newest first; ?source=archive&limit=N
//	GET  /api/v1/runs/{id}            one run with diagnostics; 404 if unknown
//	GET  /api/v1/runs/{id}/export     ?format=json|prom|table|markdown
//	GET  /api/v1/alerts               firing and recently resolved alerts
//
// Every POST builds its own runner, so concurrent requests never share a
// history. Errors are JSON bodies of the form {"error": "..."}; wrong methods
// get 405, malformed requests 400 and formula domain errors 422.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
