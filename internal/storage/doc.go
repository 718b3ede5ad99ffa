// Package storage persists watches, stream snapshots, audit records, and
// per-guild logging configuration in SQLite.
package storage
