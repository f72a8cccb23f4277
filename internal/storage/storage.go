// Package storage defines the asynchronous key-value partitions the engine
// persists through. The browser side provides three partitions: local/sync
// survive restarts, session is volatile and cleared independently of the
// persisted data. Components depend only on these interfaces, never on a
// concrete backing store.
package storage

import "context"

// Partition is a flat key-value namespace. Get returns common.ErrNotFound
// for a missing key; Delete of a missing key is a no-op.
type Partition interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// SessionStore holds volatile data: the decrypted vault session and
// request/response channels. It must never share a backing medium with the
// persisted partitions.
type SessionStore interface {
	Partition
}

// SyncStore holds the persisted vault and its backups.
type SyncStore interface {
	Partition
}

// SettingsStore holds extension settings (reckless mode, prompt options).
type SettingsStore interface {
	Partition
}
