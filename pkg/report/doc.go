// Package report turns a runner History into flat records and writes them out.
//
// convert.go rounds results into types.Record (3 decimals for the simple
// form, 4 for the sensitivity analysis) and builds the sensitivity envelope.
//
// export.go writes and reads the JSON report files. Reading back a file
// reproduces the same records, so a write/read cycle is idempotent.
//
// render.go prints records as a table, markdown or JSON for the console.
//
// metrics.go writes the final state of a run as Prometheus text exposition
// (node_exporter textfile collector format) and parses it back.
package report
