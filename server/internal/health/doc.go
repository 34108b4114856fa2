// Package health serves the standard gRPC health protocol for sasi-server.
//
// Two services are reported:
//
//	""                 SERVING while the process is up
//	"sasi.viability"   NOT_SERVING while the newest run ended in
//	                   STRUCTURAL_COLLAPSE, SERVING otherwise
//
// Reporter.Run refreshes the viability status from the run store on an
// interval. NewServer builds the gRPC server with the API key interceptors
// from package auth.
package health
