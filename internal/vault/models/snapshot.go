package models

import "time"

// SnapshotReason records why a snapshot was taken. Automatic snapshots are
// subject to eviction; manual and pre-restore snapshots are exempt.
type SnapshotReason string

const (
	SnapshotAutomatic  SnapshotReason = "automatic"
	SnapshotManual     SnapshotReason = "manual"
	SnapshotPreRestore SnapshotReason = "pre-restore"
)

// Snapshot is a read-only copy of the persisted vault used for backup and
// restore. Data stays ciphertext; a snapshot is exactly as safe at rest as
// the vault it was taken from.
type Snapshot struct {
	ID            string         `json:"id"`
	FileName      string         `json:"fileName"`
	CreatedAt     time.Time      `json:"createdAt"`
	Data          Store          `json:"data"`
	IdentityCount int            `json:"identityCount"`
	Reason        SnapshotReason `json:"reason"`
}
