// Package types defines the flat report record shared by the simulator and
// the server, and the sweep points of the sensitivity report. These are the canonical JSON shapes written to report files and
// returned by the API; rounding is applied before a Record is built.
package types
