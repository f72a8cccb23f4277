package vault

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostrvault/nostrvault/internal/common"
	"github.com/nostrvault/nostrvault/internal/cryptox"
	"github.com/nostrvault/nostrvault/internal/logging"
	"github.com/nostrvault/nostrvault/internal/storage"
	"github.com/nostrvault/nostrvault/internal/vault/models"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemoryPartition, *storage.MemoryPartition) {
	t.Helper()
	syncStore := storage.NewMemoryPartition()
	sessionStore := storage.NewMemoryPartition()
	return NewManager(syncStore, sessionStore, logging.NopLogger{}), syncStore, sessionStore
}

func intPtr(i int) *int { return &i }

// buildV1Vault writes a legacy vault containing one identity directly into
// the sync partition.
func buildV1Vault(t *testing.T, syncStore storage.SyncStore, password string) models.Identity {
	t.Helper()
	ctx := context.Background()

	iv := cryptox.GenerateIV()
	ectx := cryptox.NewV1Context(iv, password)

	ident := models.Identity{ID: "legacy-id", Nickname: "Legacy", PrivateKeyHex: "deadbeef"}
	session := &Session{ctx: ectx, SelectedIdentityID: ident.ID, Identities: []models.Identity{ident}}

	st, err := encryptStore(session, ectx, 1, nil, cryptox.HashPassword(password))
	require.NoError(t, err)
	require.Empty(t, st.Salt, "v1 vaults carry no salt")

	raw, err := json.Marshal(st)
	require.NoError(t, err)
	require.NoError(t, syncStore.Set(ctx, storeKey, raw))
	return ident
}

// flakyStore passes writes through to a memory partition until failSet is
// armed.
type flakyStore struct {
	*storage.MemoryPartition
	failSet error
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet != nil {
		return f.failSet
	}
	return f.MemoryPartition.Set(ctx, key, value)
}

func TestManager_FailedPersistDiscardsMutation(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{MemoryPartition: storage.NewMemoryPartition()}
	m := NewManager(flaky, storage.NewMemoryPartition(), logging.NopLogger{})
	require.NoError(t, m.Initialize(ctx, "pw"))

	flaky.failSet = errors.New("disk full")
	_, err := m.AddIdentity(ctx, "Alice", "aa11")
	require.Error(t, err)

	// The session mirror must not keep a change the persisted vault never
	// saw.
	idents, err := m.Identities()
	require.NoError(t, err)
	assert.Empty(t, idents)
	sel, err := m.SelectedIdentity()
	require.NoError(t, err)
	assert.Nil(t, sel)

	flaky.failSet = nil
	_, err = m.AddIdentity(ctx, "Alice", "aa11")
	require.NoError(t, err)
	idents, err = m.Identities()
	require.NoError(t, err)
	require.Len(t, idents, 1)
	sel, err = m.SelectedIdentity()
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, "Alice", sel.Nickname)
}

func TestManager_InitializeAndUnlock(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	require.NoError(t, m.Initialize(ctx, "correct-horse"))
	assert.Equal(t, Unlocked, m.State())

	require.NoError(t, m.Lock(ctx))
	assert.Equal(t, Locked, m.State())

	err := m.Unlock(ctx, "wrong-horse")
	assert.ErrorIs(t, err, common.ErrInvalidPassword)
	assert.Equal(t, Locked, m.State())

	require.NoError(t, m.Unlock(ctx, "correct-horse"))
	assert.Equal(t, Unlocked, m.State())
}

func TestManager_Initialize_AlreadyExists(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	require.NoError(t, m.Initialize(ctx, "pw"))
	assert.ErrorIs(t, m.Initialize(ctx, "pw"), common.ErrVaultExists)
}

func TestManager_Unlock_NoVault(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.Unlock(context.Background(), "pw")
	assert.ErrorIs(t, err, common.ErrVaultNotFound)
}

func TestManager_MutationsUpdateStoreAndSession(t *testing.T) {
	ctx := context.Background()
	m, syncStore, sessionStore := newTestManager(t)
	require.NoError(t, m.Initialize(ctx, "correct-horse"))

	ident, err := m.AddIdentity(ctx, "Alice", "aa11")
	require.NoError(t, err)

	_, err = m.AddPermission(ctx, models.Permission{
		IdentityID: ident.ID,
		Host:       "Example.COM",
		Method:     models.MethodSignEvent,
		Action:     models.ActionAllow,
		Kind:       intPtr(1),
	})
	require.NoError(t, err)

	// Both partitions hold the new records.
	raw, err := syncStore.Get(ctx, storeKey)
	require.NoError(t, err)
	var st models.Store
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Len(t, st.Identities, 1)
	assert.Len(t, st.Permissions, 1)
	assert.Equal(t, ident.ID, st.Identities[0].ID)
	assert.NotEqual(t, "Alice", st.Identities[0].Nickname, "nickname must be ciphertext at rest")

	rawSession, err := sessionStore.Get(ctx, sessionKey)
	require.NoError(t, err)
	var rec sessionRecord
	require.NoError(t, json.Unmarshal(rawSession, &rec))
	require.Len(t, rec.Permissions, 1)
	assert.Equal(t, "example.com", rec.Permissions[0].Host, "host is normalized at write time")

	// Round-trip: lock, unlock, everything is still there.
	require.NoError(t, m.Lock(ctx))
	require.NoError(t, m.Unlock(ctx, "correct-horse"))

	identities, err := m.Identities()
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "Alice", identities[0].Nickname)
	assert.Equal(t, "aa11", identities[0].PrivateKeyHex)

	perms, err := m.Permissions()
	require.NoError(t, err)
	require.Len(t, perms, 1)
	require.NotNil(t, perms[0].Kind)
	assert.Equal(t, 1, *perms[0].Kind)
}

func TestManager_MutationsRequireUnlocked(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Initialize(ctx, "pw"))
	require.NoError(t, m.Lock(ctx))

	_, err := m.AddIdentity(ctx, "Alice", "aa11")
	assert.ErrorIs(t, err, common.ErrVaultNotUnlocked)
	_, err = m.Identities()
	assert.ErrorIs(t, err, common.ErrVaultNotUnlocked)
}

func TestManager_AddIdentity_DuplicateKey(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Initialize(ctx, "pw"))

	_, err := m.AddIdentity(ctx, "Alice", "aa11")
	require.NoError(t, err)
	_, err = m.AddIdentity(ctx, "Alice again", "aa11")
	assert.ErrorIs(t, err, common.ErrDuplicateKeyMaterial)
}

func TestManager_AddRelay_DuplicateURL(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Initialize(ctx, "pw"))
	ident, err := m.AddIdentity(ctx, "Alice", "aa11")
	require.NoError(t, err)

	_, err = m.AddRelay(ctx, ident.ID, "wss://relay.example.com", true, true)
	require.NoError(t, err)
	_, err = m.AddRelay(ctx, ident.ID, "WSS://Relay.Example.com", true, false)
	assert.ErrorIs(t, err, common.ErrDuplicateRelayURL)
}

func TestManager_DeleteIdentity_Cascades(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Initialize(ctx, "pw"))

	ident, err := m.AddIdentity(ctx, "Alice", "aa11")
	require.NoError(t, err)
	other, err := m.AddIdentity(ctx, "Bob", "bb22")
	require.NoError(t, err)

	_, err = m.AddPermission(ctx, models.Permission{IdentityID: ident.ID, Host: "example.com", Method: models.MethodGetPublicKey, Action: models.ActionAllow})
	require.NoError(t, err)
	_, err = m.AddRelay(ctx, ident.ID, "wss://r1", true, true)
	require.NoError(t, err)
	_, err = m.AddPermission(ctx, models.Permission{IdentityID: other.ID, Host: "example.com", Method: models.MethodGetPublicKey, Action: models.ActionAllow})
	require.NoError(t, err)

	require.NoError(t, m.DeleteIdentity(ctx, ident.ID))

	perms, err := m.Permissions()
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, other.ID, perms[0].IdentityID)

	relays, err := m.Relays(ident.ID)
	require.NoError(t, err)
	assert.Empty(t, relays)

	// Alice was selected (first identity added); deleting her clears the
	// selection rather than guessing a replacement.
	sel, err := m.SelectedIdentity()
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestManager_V1Migration(t *testing.T) {
	ctx := context.Background()
	m, syncStore, _ := newTestManager(t)
	buildV1Vault(t, syncStore, "correct-horse")

	require.NoError(t, m.Unlock(ctx, "correct-horse"))

	// Persisted vault is now v2 with a salt, same password.
	raw, err := syncStore.Get(ctx, storeKey)
	require.NoError(t, err)
	var st models.Store
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, 2, st.Version)
	assert.NotEmpty(t, st.Salt)
	assert.Equal(t, cryptox.HashPassword("correct-horse"), st.VaultHash, "password hash unchanged by migration")

	identities, err := m.Identities()
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "Legacy", identities[0].Nickname)

	// Post-migration writes use the new context.
	_, err = m.AddIdentity(ctx, "PostMigration", "cc33")
	require.NoError(t, err)

	// Second unlock (migration retry) is a clean no-op and loses nothing.
	require.NoError(t, m.Lock(ctx))
	require.NoError(t, m.Unlock(ctx, "correct-horse"))
	identities, err = m.Identities()
	require.NoError(t, err)
	assert.Len(t, identities, 2)
}

func TestManager_UnlockSingleFlight(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Initialize(ctx, "pw"))
	require.NoError(t, m.Lock(ctx))

	m.mu.Lock()
	m.state = Unlocking
	m.mu.Unlock()

	err := m.Unlock(ctx, "pw")
	assert.ErrorIs(t, err, common.ErrUnlockInProgress)

	m.mu.Lock()
	m.state = Locked
	m.mu.Unlock()
	require.NoError(t, m.Unlock(ctx, "pw"))
}

func TestManager_CorruptRecordIsSkipped(t *testing.T) {
	ctx := context.Background()
	m, syncStore, _ := newTestManager(t)
	require.NoError(t, m.Initialize(ctx, "pw"))
	_, err := m.AddIdentity(ctx, "Alice", "aa11")
	require.NoError(t, err)
	ident2, err := m.AddIdentity(ctx, "Bob", "bb22")
	require.NoError(t, err)
	_, err = m.AddPermission(ctx, models.Permission{IdentityID: ident2.ID, Host: "example.com", Method: models.MethodGetPublicKey, Action: models.ActionAllow})
	require.NoError(t, err)
	require.NoError(t, m.Lock(ctx))

	// Corrupt Bob's permission record at rest.
	raw, err := syncStore.Get(ctx, storeKey)
	require.NoError(t, err)
	var st models.Store
	require.NoError(t, json.Unmarshal(raw, &st))
	st.Permissions[0].Policy = "AAAA" + st.Permissions[0].Policy[4:]
	raw, err = json.Marshal(&st)
	require.NoError(t, err)
	require.NoError(t, syncStore.Set(ctx, storeKey, raw))

	// Unlock succeeds; the corrupt record is dropped, everything else loads.
	require.NoError(t, m.Unlock(ctx, "pw"))
	identities, err := m.Identities()
	require.NoError(t, err)
	assert.Len(t, identities, 2)
	perms, err := m.Permissions()
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestManager_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Initialize(ctx, "correct-horse"))
	_, err := m.AddIdentity(ctx, "Alice", "aa11")
	require.NoError(t, err)

	exported, err := m.ExportJSON(ctx)
	require.NoError(t, err)

	// Import into a fresh manager; unlocking with the same password works.
	m2, _, _ := newTestManager(t)
	m2.syncStore.Set(ctx, storeKey, []byte("{}")) // preexisting garbage is replaced
	require.NoError(t, m2.ImportJSON(ctx, exported))
	assert.Equal(t, Locked, m2.State())

	require.NoError(t, m2.Unlock(ctx, "correct-horse"))
	identities, err := m2.Identities()
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "Alice", identities[0].Nickname)
}

func TestManager_ImportRejectsBadHeader(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	err := m.ImportJSON(ctx, `{"version":3,"iv":"aa","vaultHash":"bb","selectedIdentityId":null,"identities":[],"permissions":[],"relays":[]}`)
	assert.Error(t, err)

	err = m.ImportJSON(ctx, `{"version":2,"iv":"","vaultHash":"","selectedIdentityId":null,"identities":[],"permissions":[],"relays":[]}`)
	assert.Error(t, err)
}

func TestManager_Resume(t *testing.T) {
	ctx := context.Background()
	m, syncStore, sessionStore := newTestManager(t)
	require.NoError(t, m.Initialize(ctx, "pw"))
	_, err := m.AddIdentity(ctx, "Alice", "aa11")
	require.NoError(t, err)

	// Simulate a background restart with a surviving browser session.
	m2 := NewManager(syncStore, sessionStore, logging.NopLogger{})
	ok, err := m2.Resume(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Unlocked, m2.State())

	identities, err := m2.Identities()
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "Alice", identities[0].Nickname)

	// After a lock the session partition is empty and resume declines.
	require.NoError(t, m2.Lock(ctx))
	ok, err = m2.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
