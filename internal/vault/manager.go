// Package vault owns the encrypted vault: its persisted store, the decrypted
// in-memory session, the Locked/Unlocking/Unlocked lifecycle, and the
// automatic v1→v2 re-encryption migration.
package vault

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nostrvault/nostrvault/internal/common"
	"github.com/nostrvault/nostrvault/internal/cryptox"
	"github.com/nostrvault/nostrvault/internal/logging"
	"github.com/nostrvault/nostrvault/internal/storage"
	"github.com/nostrvault/nostrvault/internal/vault/models"
)

// State is the vault lifecycle state.
type State int

const (
	Locked State = iota
	Unlocking
	Unlocked
)

func (s State) String() string {
	switch s {
	case Unlocking:
		return "unlocking"
	case Unlocked:
		return "unlocked"
	default:
		return "locked"
	}
}

// Storage keys inside their respective partitions.
const (
	storeKey   = "vault"
	sessionKey = "vaultSession"
)

// Manager owns the vault. The persisted store lives in the sync partition,
// the decrypted session in the volatile session partition; every mutation
// writes the store first and the session mirror second so the two can never
// drift. Only one unlock derivation runs at a time.
type Manager struct {
	mu      sync.Mutex
	state   State
	session *Session
	store   *models.Store

	syncStore    storage.SyncStore
	sessionStore storage.SessionStore
	log          logging.Logger
}

func NewManager(syncStore storage.SyncStore, sessionStore storage.SessionStore, log logging.Logger) *Manager {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &Manager{syncStore: syncStore, sessionStore: sessionStore, log: log}
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Exists reports whether a persisted vault is present.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	_, err := m.syncStore.Get(ctx, storeKey)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Initialize creates a fresh, empty v2 vault protected by password and
// leaves it unlocked. It fails if a vault already exists.
func (m *Manager) Initialize(ctx context.Context, password string) error {
	exists, err := m.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrVaultExists
	}

	salt := cryptox.GenerateSalt()
	iv := cryptox.GenerateIV()
	key := cryptox.DeriveKeyV2(password, salt)
	ectx := cryptox.NewV2Context(iv, key)

	session := &Session{ctx: ectx}
	st, err := encryptStore(session, ectx, 2, salt, cryptox.HashPassword(password))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.persistLocked(ctx, st, session); err != nil {
		return err
	}
	m.state = Unlocked
	m.log.Info(ctx, "vault initialized", "version", 2)
	return nil
}

// Unlock verifies the password against the persisted header, derives the key
// for the vault's version, decrypts the content into a session, and, for v1
// vaults, migrates to v2 before reporting success. A second Unlock while one
// is in flight fails with common.ErrUnlockInProgress; the expensive
// derivation never runs twice in parallel.
func (m *Manager) Unlock(ctx context.Context, password string) error {
	m.mu.Lock()
	switch m.state {
	case Unlocked:
		m.mu.Unlock()
		return nil
	case Unlocking:
		m.mu.Unlock()
		return common.ErrUnlockInProgress
	}
	m.state = Unlocking
	m.mu.Unlock()

	st, session, err := m.unlock(ctx, password)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = Locked
		return err
	}
	m.store = st
	m.session = session
	m.state = Unlocked
	m.log.Info(ctx, "vault unlocked", "identities", len(session.Identities))
	return nil
}

// unlock does the slow part outside the manager lock.
func (m *Manager) unlock(ctx context.Context, password string) (*models.Store, *Session, error) {
	st, err := m.loadStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	candidate := cryptox.HashPassword(password)
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(st.VaultHash)) == 0 {
		return nil, nil, common.ErrInvalidPassword
	}

	iv, err := decodeB64(st.IV)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding vault iv: %w", err)
	}

	var ectx cryptox.Context
	switch st.Version {
	case 1:
		ectx = cryptox.NewV1Context(iv, password)
	case 2:
		salt, err := decodeB64(st.Salt)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding vault salt: %w", err)
		}
		ectx = cryptox.NewV2Context(iv, cryptox.DeriveKeyV2(password, salt))
	default:
		return nil, nil, fmt.Errorf("unsupported vault version %d", st.Version)
	}

	session, err := decryptStore(ctx, st, ectx, m.log)
	if err != nil {
		return nil, nil, err
	}

	if st.Version == 1 {
		st, err = m.migrate(ctx, session, password, st.VaultHash)
		if err != nil {
			return nil, nil, fmt.Errorf("v1 migration: %w", err)
		}
	}

	if err := m.persistSession(ctx, session); err != nil {
		return nil, nil, err
	}
	return st, session, nil
}

// migrate re-encrypts the whole vault under a fresh salt, IV, and argon2id
// key. The new store is built completely in memory and persisted in a single
// write; any failure leaves the old v1 vault untouched. The password hash is
// carried over unchanged, only the derivation path changes.
func (m *Manager) migrate(ctx context.Context, session *Session, password, vaultHash string) (*models.Store, error) {
	salt := cryptox.GenerateSalt()
	iv := cryptox.GenerateIV()
	key := cryptox.DeriveKeyV2(password, salt)
	ectx := cryptox.NewV2Context(iv, key)

	st, err := encryptStore(session, ectx, 2, salt, vaultHash)
	if err != nil {
		return nil, err
	}
	if err := m.saveStore(ctx, st); err != nil {
		return nil, err
	}
	session.ctx = ectx
	m.log.Info(ctx, "vault migrated", "from", 1, "to", 2)
	return st, nil
}

// Lock clears the volatile session partition and drops the in-memory
// session. The persisted store is untouched.
func (m *Manager) Lock(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sessionStore.Clear(ctx); err != nil {
		return err
	}
	if m.session != nil {
		m.session.wipe()
		m.session = nil
	}
	m.store = nil
	m.state = Locked
	m.log.Info(ctx, "vault locked")
	return nil
}

// Resume restores an unlocked session from the volatile partition, e.g.
// after the background process was torn down and restarted while the browser
// session survived. Returns false if no session is stored.
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	raw, err := m.sessionStore.Get(ctx, sessionKey)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return false, err
	}
	st, err := m.loadStore(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = sessionFromRecord(&rec)
	m.store = st
	m.state = Unlocked
	m.log.Info(ctx, "vault session resumed")
	return true, nil
}

func (m *Manager) loadStore(ctx context.Context) (*models.Store, error) {
	raw, err := m.syncStore.Get(ctx, storeKey)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrVaultNotFound
	}
	if err != nil {
		return nil, err
	}
	var st models.Store
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshalling vault: %w", err)
	}
	return &st, nil
}

func (m *Manager) saveStore(ctx context.Context, st *models.Store) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return m.syncStore.Set(ctx, storeKey, raw)
}

func (m *Manager) persistSession(ctx context.Context, s *Session) error {
	rec, ok := s.record()
	if !ok {
		// v1 sessions are migrated before they are ever persisted.
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.sessionStore.Set(ctx, sessionKey, raw)
}

// persistLocked writes store then session and updates the in-memory mirror.
// Caller holds m.mu.
func (m *Manager) persistLocked(ctx context.Context, st *models.Store, s *Session) error {
	if err := m.saveStore(ctx, st); err != nil {
		return err
	}
	if err := m.persistSession(ctx, s); err != nil {
		return err
	}
	m.store = st
	m.session = s
	return nil
}

// requireUnlocked returns the live session or common.ErrVaultNotUnlocked.
// Caller holds m.mu.
func (m *Manager) requireUnlocked() (*Session, error) {
	if m.state != Unlocked || m.session == nil {
		return nil, common.ErrVaultNotUnlocked
	}
	return m.session, nil
}

// mutate applies fn to a clone of the session, re-encrypts the changed
// state, and persists store-then-session. The clone becomes the live mirror
// only after both writes succeed; a failed write discards it, so the session
// never holds a change the persisted vault rejected.
func (m *Manager) mutate(ctx context.Context, fn func(s *Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	live, err := m.requireUnlocked()
	if err != nil {
		return err
	}
	next := live.clone()
	if err := fn(next); err != nil {
		return err
	}

	st, err := encryptStore(next, next.ctx, m.store.Version, m.storeSalt(), m.store.VaultHash)
	if err != nil {
		return err
	}
	return m.persistLocked(ctx, st, next)
}

func (m *Manager) storeSalt() []byte {
	if m.store == nil || m.store.Salt == "" {
		return nil
	}
	salt, err := decodeB64(m.store.Salt)
	if err != nil {
		return nil
	}
	return salt
}

// AddIdentity stores a new identity. Fails with ErrDuplicateKeyMaterial when
// the private key already exists in the vault.
func (m *Manager) AddIdentity(ctx context.Context, nickname, privateKeyHex string) (*models.Identity, error) {
	ident := models.Identity{
		ID:            uuid.NewString(),
		Nickname:      nickname,
		PrivateKeyHex: privateKeyHex,
		CreatedAt:     time.Now().UTC(),
	}
	err := m.mutate(ctx, func(s *Session) error {
		for _, existing := range s.Identities {
			if existing.PrivateKeyHex == privateKeyHex {
				return common.ErrDuplicateKeyMaterial
			}
		}
		s.Identities = append(s.Identities, ident)
		if s.SelectedIdentityID == "" {
			s.SelectedIdentityID = ident.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

// DeleteIdentity removes an identity and cascades to its permission, relay,
// wallet-connection, and mint records.
func (m *Manager) DeleteIdentity(ctx context.Context, id string) error {
	return m.mutate(ctx, func(s *Session) error {
		if s.identityByID(id) == nil {
			return common.ErrNotFound
		}
		s.Identities = deleteWhere(s.Identities, func(i models.Identity) bool { return i.ID == id })
		s.Permissions = deleteWhere(s.Permissions, func(p models.Permission) bool { return p.IdentityID == id })
		s.Relays = deleteWhere(s.Relays, func(r models.Relay) bool { return r.IdentityID == id })
		s.NWCConnections = deleteWhere(s.NWCConnections, func(c models.WalletConnection) bool { return c.IdentityID == id })
		s.CashuMints = deleteWhere(s.CashuMints, func(c models.CashuMint) bool { return c.IdentityID == id })
		if s.SelectedIdentityID == id {
			s.SelectedIdentityID = ""
		}
		return nil
	})
}

// SelectIdentity makes id the selected identity.
func (m *Manager) SelectIdentity(ctx context.Context, id string) error {
	return m.mutate(ctx, func(s *Session) error {
		if s.identityByID(id) == nil {
			return common.ErrNotFound
		}
		s.SelectedIdentityID = id
		return nil
	})
}

// AddPermission stores a new permission rule. Permissions are immutable:
// changing a rule is a delete plus a new AddPermission.
func (m *Manager) AddPermission(ctx context.Context, p models.Permission) (*models.Permission, error) {
	p.ID = uuid.NewString()
	p.Host = common.NormalizeHost(p.Host)
	err := m.mutate(ctx, func(s *Session) error {
		if s.identityByID(p.IdentityID) == nil {
			return common.ErrNotFound
		}
		s.Permissions = append(s.Permissions, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePermission removes a single rule by id.
func (m *Manager) DeletePermission(ctx context.Context, id string) error {
	return m.mutate(ctx, func(s *Session) error {
		before := len(s.Permissions)
		s.Permissions = deleteWhere(s.Permissions, func(p models.Permission) bool { return p.ID == id })
		if len(s.Permissions) == before {
			return common.ErrNotFound
		}
		return nil
	})
}

// AddRelay stores a relay list entry for an identity.
func (m *Manager) AddRelay(ctx context.Context, identityID, url string, read, write bool) (*models.Relay, error) {
	relay := models.Relay{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		URL:        url,
		Read:       read,
		Write:      write,
	}
	err := m.mutate(ctx, func(s *Session) error {
		if s.identityByID(identityID) == nil {
			return common.ErrNotFound
		}
		for _, existing := range s.Relays {
			if existing.IdentityID == identityID && common.NormalizeHost(existing.URL) == common.NormalizeHost(url) {
				return common.ErrDuplicateRelayURL
			}
		}
		s.Relays = append(s.Relays, relay)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &relay, nil
}

// AddWalletConnection stores a NIP-47 pairing for an identity.
func (m *Manager) AddWalletConnection(ctx context.Context, identityID, name, pairingURI string) (*models.WalletConnection, error) {
	conn := models.WalletConnection{ID: uuid.NewString(), IdentityID: identityID, Name: name, PairingURI: pairingURI}
	err := m.mutate(ctx, func(s *Session) error {
		if s.identityByID(identityID) == nil {
			return common.ErrNotFound
		}
		s.NWCConnections = append(s.NWCConnections, conn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// AddCashuMint stores an ecash mint for an identity.
func (m *Manager) AddCashuMint(ctx context.Context, identityID, url, unit string) (*models.CashuMint, error) {
	mint := models.CashuMint{ID: uuid.NewString(), IdentityID: identityID, URL: url, Unit: unit}
	err := m.mutate(ctx, func(s *Session) error {
		if s.identityByID(identityID) == nil {
			return common.ErrNotFound
		}
		s.CashuMints = append(s.CashuMints, mint)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &mint, nil
}

// Identities returns a copy of the decrypted identities.
func (m *Manager) Identities() ([]models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.requireUnlocked()
	if err != nil {
		return nil, err
	}
	out := make([]models.Identity, len(s.Identities))
	copy(out, s.Identities)
	return out, nil
}

// Permissions returns a copy of the decrypted permission records.
func (m *Manager) Permissions() ([]models.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.requireUnlocked()
	if err != nil {
		return nil, err
	}
	out := make([]models.Permission, len(s.Permissions))
	copy(out, s.Permissions)
	return out, nil
}

// Relays returns a copy of an identity's relay list.
func (m *Manager) Relays(identityID string) ([]models.Relay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.requireUnlocked()
	if err != nil {
		return nil, err
	}
	var out []models.Relay
	for _, r := range s.Relays {
		if r.IdentityID == identityID {
			out = append(out, r)
		}
	}
	return out, nil
}

// SelectedIdentity returns a copy of the selected identity, or nil when none
// is selected.
func (m *Manager) SelectedIdentity() (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.requireUnlocked()
	if err != nil {
		return nil, err
	}
	ident := s.identityByID(s.SelectedIdentityID)
	if ident == nil {
		return nil, nil
	}
	out := *ident
	return &out, nil
}

// Identity returns a copy of the identity with the given id.
func (m *Manager) Identity(id string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.requireUnlocked()
	if err != nil {
		return nil, err
	}
	ident := s.identityByID(id)
	if ident == nil {
		return nil, common.ErrNotFound
	}
	out := *ident
	return &out, nil
}

// CurrentStore returns the persisted store as last written, for backups.
func (m *Manager) CurrentStore(ctx context.Context) (*models.Store, error) {
	return m.loadStore(ctx)
}

// ReplaceStore overwrites the persisted vault (used by restore/import) and
// locks, since the session no longer mirrors the store.
func (m *Manager) ReplaceStore(ctx context.Context, st *models.Store) error {
	if err := validateStore(st); err != nil {
		return err
	}
	m.mu.Lock()
	if err := m.saveStore(ctx, st); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	return m.Lock(ctx)
}

// ExportJSON serializes the persisted vault to its stable JSON form.
func (m *Manager) ExportJSON(ctx context.Context) (string, error) {
	st, err := m.loadStore(ctx)
	if err != nil {
		return "", err
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ImportJSON replaces the persisted vault with the given export and locks.
func (m *Manager) ImportJSON(ctx context.Context, data string) error {
	var st models.Store
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return fmt.Errorf("unmarshalling vault json: %w", err)
	}
	return m.ReplaceStore(ctx, &st)
}

func validateStore(st *models.Store) error {
	if st.Version != 1 && st.Version != 2 {
		return fmt.Errorf("unsupported vault version %d", st.Version)
	}
	if st.IV == "" || st.VaultHash == "" {
		return errors.New("vault header incomplete")
	}
	if st.Version == 2 && st.Salt == "" {
		return errors.New("v2 vault missing salt")
	}
	return nil
}

func deleteWhere[T any](in []T, match func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if !match(v) {
			out = append(out, v)
		}
	}
	return out
}
