// Package config loads the server-side configuration from the `server:` section
// of the config file (a `sim:` key in the same file is ignored by the server).
//
// Config fields:
//   - GRPCPort       port for the gRPC health service (default 50051)
//   - HTTPPort       port for the REST API and WebSocket hub (default 8080)
//   - Auth.Mode      "apikey" or "none"
//   - Auth.KeyEnv    environment variable holding the expected API key
//   - Auth.Header    gRPC metadata/HTTP header name (default "x-api-key")
//   - Runs.TTL       how long a run stays in memory (default 30m)
//   - Runs.MaxSteps  cap on schedule steps and fixed inputs (default 10000)
//   - Runs.MaxValues cap on sweep probe values (default 1000)
//   - Storage        sqlite archive backend and path
//   - Alerts         rules over a run's final record and webhook targets
//   - Agents.KeyEnv  environment variable holding the decision-stub key
//   - StreamInterval WebSocket push interval (default 5s)
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
