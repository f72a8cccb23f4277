// Package backup manages vault snapshots: read-only copies of the persisted,
// still-encrypted vault kept in the sync partition for export and restore.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nostrvault/nostrvault/internal/logging"
	"github.com/nostrvault/nostrvault/internal/storage"
	"github.com/nostrvault/nostrvault/internal/vault/models"
)

const keyPrefix = "backup:"

// Manager stores snapshots in the sync partition under "backup:<id>" keys.
// The collection is capped: past maxAutomatic, the oldest automatic
// snapshots are evicted. Manual and pre-restore snapshots are exempt.
type Manager struct {
	store        storage.SyncStore
	maxAutomatic int
	log          logging.Logger
	now          func() time.Time
}

func NewManager(store storage.SyncStore, maxAutomatic int, log logging.Logger) *Manager {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Manager{store: store, maxAutomatic: maxAutomatic, log: log, now: time.Now}
}

// Create stores a snapshot of the given vault store and evicts old automatic
// snapshots past the cap.
func (m *Manager) Create(ctx context.Context, data *models.Store, reason models.SnapshotReason) (*models.Snapshot, error) {
	createdAt := m.now().UTC()
	snap := &models.Snapshot{
		ID:            uuid.NewString(),
		FileName:      fmt.Sprintf("vault-backup-%s.json", createdAt.Format("2006-01-02-150405")),
		CreatedAt:     createdAt,
		Data:          *data,
		IdentityCount: len(data.Identities),
		Reason:        reason,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, keyPrefix+snap.ID, raw); err != nil {
		return nil, err
	}
	if err := m.evict(ctx); err != nil {
		return nil, err
	}
	m.log.Info(ctx, "snapshot created", "id", snap.ID, "reason", string(reason))
	return snap, nil
}

// List returns all snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]models.Snapshot, error) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var snaps []models.Snapshot
	for _, k := range keys {
		if !strings.HasPrefix(k, keyPrefix) {
			continue
		}
		raw, err := m.store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		var s models.Snapshot
		if err := json.Unmarshal(raw, &s); err != nil {
			m.log.Warn(ctx, "skipping unreadable snapshot", "key", k)
			continue
		}
		snaps = append(snaps, s)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })
	return snaps, nil
}

// Get returns a snapshot by id.
func (m *Manager) Get(ctx context.Context, id string) (*models.Snapshot, error) {
	raw, err := m.store.Get(ctx, keyPrefix+id)
	if err != nil {
		return nil, err
	}
	var s models.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes a snapshot by id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.store.Get(ctx, keyPrefix+id); err != nil {
		return err
	}
	return m.store.Delete(ctx, keyPrefix+id)
}

// Restore returns the vault store held by snapshot id, after first taking a
// pre-restore snapshot of current so the operation can be undone. current
// may be nil when no vault exists yet.
func (m *Manager) Restore(ctx context.Context, id string, current *models.Store) (*models.Store, error) {
	snap, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current != nil {
		if _, err := m.Create(ctx, current, models.SnapshotPreRestore); err != nil {
			return nil, err
		}
	}
	data := snap.Data
	return &data, nil
}

func (m *Manager) evict(ctx context.Context) error {
	if m.maxAutomatic <= 0 {
		return nil
	}
	snaps, err := m.List(ctx)
	if err != nil {
		return err
	}
	var automatic []models.Snapshot
	for _, s := range snaps {
		if s.Reason == models.SnapshotAutomatic {
			automatic = append(automatic, s)
		}
	}
	// List is newest-first, so the tail holds the oldest snapshots.
	for i := m.maxAutomatic; i < len(automatic); i++ {
		if err := m.store.Delete(ctx, keyPrefix+automatic[i].ID); err != nil {
			return err
		}
		m.log.Info(ctx, "snapshot evicted", "id", automatic[i].ID)
	}
	return nil
}
