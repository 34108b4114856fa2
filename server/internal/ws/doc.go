// Package ws implements the WebSocket hub for sasi-server.
//
// Hub pushes the live run list to every connected client on connect and then
// on a fixed interval (server.stream_interval, default 5s). The server mounts
// it at /ws/stream.
//
// Message format:
//
//	{
//	  "event": "runs",
//	  "data":  { /* same schema as GET /api/v1/runs */ }
//	}
//
// The upgrader accepts all origins; restrict them at the reverse proxy.
package ws
