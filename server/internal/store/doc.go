// Package store holds completed runs in memory with TTL eviction and can
// mirror them to a SQLite archive that outlives eviction and restarts.
package store
