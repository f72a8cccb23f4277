package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/nostrvault/nostrvault/internal/cryptox"
	"github.com/nostrvault/nostrvault/internal/logging"
	"github.com/nostrvault/nostrvault/internal/vault/models"
)

// createdAtLayout is the plaintext form identity timestamps cross the
// encryption boundary in.
const createdAtLayout = time.RFC3339

func encodeB64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decodeB64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

// decryptStore decrypts every content collection of a persisted store into a
// Session. Collections are decrypted independently: a record whose fields
// fail to decrypt is dropped with a warning so one corrupt row cannot
// invalidate the whole vault. The selected-identity pointer is the single
// critical field; failing on it aborts the unlock.
func decryptStore(ctx context.Context, st *models.Store, ectx cryptox.Context, log logging.Logger) (*Session, error) {
	s := &Session{ctx: ectx}
	skipped := 0

	if st.SelectedIdentityID != nil {
		id, err := cryptox.DecryptField(*st.SelectedIdentityID, ectx)
		if err != nil {
			return nil, fmt.Errorf("decrypting selected identity: %w", err)
		}
		s.SelectedIdentityID = id
	}

	for _, e := range st.Identities {
		ident, err := decryptIdentity(e, ectx)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable identity", "id", e.ID)
			skipped++
			continue
		}
		s.Identities = append(s.Identities, *ident)
	}

	for _, e := range st.Permissions {
		p, err := decryptPermission(e, ectx)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable permission", "id", e.ID)
			skipped++
			continue
		}
		s.Permissions = append(s.Permissions, *p)
	}

	for _, e := range st.Relays {
		r, err := decryptRelay(e, ectx)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable relay", "id", e.ID)
			skipped++
			continue
		}
		s.Relays = append(s.Relays, *r)
	}

	for _, e := range st.NWCConnections {
		c, err := decryptWalletConnection(e, ectx)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable wallet connection", "id", e.ID)
			skipped++
			continue
		}
		s.NWCConnections = append(s.NWCConnections, *c)
	}

	for _, e := range st.CashuMints {
		m, err := decryptCashuMint(e, ectx)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable cashu mint", "id", e.ID)
			skipped++
			continue
		}
		s.CashuMints = append(s.CashuMints, *m)
	}

	if skipped > 0 {
		log.Warn(ctx, "vault loaded with skipped records", "skipped", skipped)
	}
	return s, nil
}

// encryptStore builds a complete persisted store from a session. It is
// all-or-nothing: the result is assembled fully in memory and only returned
// on success, so a failing field can never leave a half-written vault.
func encryptStore(s *Session, ectx cryptox.Context, version int, salt []byte, vaultHash string) (*models.Store, error) {
	st := &models.Store{
		Version:     version,
		IV:          encodeB64(ectx.IV()),
		VaultHash:   vaultHash,
		Identities:  []models.EncryptedIdentity{},
		Permissions: []models.EncryptedPermission{},
		Relays:      []models.EncryptedRelay{},
	}
	if len(salt) > 0 {
		st.Salt = encodeB64(salt)
	}

	if s.SelectedIdentityID != "" {
		ct, err := cryptox.EncryptField(s.SelectedIdentityID, ectx)
		if err != nil {
			return nil, err
		}
		st.SelectedIdentityID = &ct
	}

	for _, ident := range s.Identities {
		e, err := encryptIdentity(ident, ectx)
		if err != nil {
			return nil, err
		}
		st.Identities = append(st.Identities, *e)
	}
	for _, p := range s.Permissions {
		e, err := encryptPermission(p, ectx)
		if err != nil {
			return nil, err
		}
		st.Permissions = append(st.Permissions, *e)
	}
	for _, r := range s.Relays {
		e, err := encryptRelay(r, ectx)
		if err != nil {
			return nil, err
		}
		st.Relays = append(st.Relays, *e)
	}
	for _, c := range s.NWCConnections {
		e, err := encryptWalletConnection(c, ectx)
		if err != nil {
			return nil, err
		}
		st.NWCConnections = append(st.NWCConnections, *e)
	}
	for _, m := range s.CashuMints {
		e, err := encryptCashuMint(m, ectx)
		if err != nil {
			return nil, err
		}
		st.CashuMints = append(st.CashuMints, *e)
	}

	return st, nil
}

func encryptIdentity(i models.Identity, ectx cryptox.Context) (*models.EncryptedIdentity, error) {
	nickname, err := cryptox.EncryptField(i.Nickname, ectx)
	if err != nil {
		return nil, err
	}
	key, err := cryptox.EncryptField(i.PrivateKeyHex, ectx)
	if err != nil {
		return nil, err
	}
	createdAt, err := cryptox.EncryptField(i.CreatedAt.UTC().Format(createdAtLayout), ectx)
	if err != nil {
		return nil, err
	}
	return &models.EncryptedIdentity{ID: i.ID, Nickname: nickname, PrivateKey: key, CreatedAt: createdAt}, nil
}

func decryptIdentity(e models.EncryptedIdentity, ectx cryptox.Context) (*models.Identity, error) {
	nickname, err := cryptox.DecryptField(e.Nickname, ectx)
	if err != nil {
		return nil, err
	}
	key, err := cryptox.DecryptField(e.PrivateKey, ectx)
	if err != nil {
		return nil, err
	}
	createdAtStr, err := cryptox.DecryptField(e.CreatedAt, ectx)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(createdAtLayout, createdAtStr)
	if err != nil {
		return nil, err
	}
	return &models.Identity{ID: e.ID, Nickname: nickname, PrivateKeyHex: key, CreatedAt: createdAt}, nil
}

func encryptPermission(p models.Permission, ectx cryptox.Context) (*models.EncryptedPermission, error) {
	host, err := cryptox.EncryptField(p.Host, ectx)
	if err != nil {
		return nil, err
	}
	method, err := cryptox.EncryptField(string(p.Method), ectx)
	if err != nil {
		return nil, err
	}
	action, err := cryptox.EncryptField(string(p.Action), ectx)
	if err != nil {
		return nil, err
	}
	e := &models.EncryptedPermission{ID: p.ID, IdentityID: p.IdentityID, Host: host, Method: method, Policy: action}
	if p.Kind != nil {
		kind, err := cryptox.EncryptField(strconv.Itoa(*p.Kind), ectx)
		if err != nil {
			return nil, err
		}
		e.Kind = kind
	}
	return e, nil
}

func decryptPermission(e models.EncryptedPermission, ectx cryptox.Context) (*models.Permission, error) {
	host, err := cryptox.DecryptField(e.Host, ectx)
	if err != nil {
		return nil, err
	}
	method, err := cryptox.DecryptField(e.Method, ectx)
	if err != nil {
		return nil, err
	}
	action, err := cryptox.DecryptField(e.Policy, ectx)
	if err != nil {
		return nil, err
	}
	p := &models.Permission{
		ID:         e.ID,
		IdentityID: e.IdentityID,
		Host:       host,
		Method:     models.Method(method),
		Action:     models.Action(action),
	}
	if e.Kind != "" {
		kindStr, err := cryptox.DecryptField(e.Kind, ectx)
		if err != nil {
			return nil, err
		}
		kind, err := strconv.Atoi(kindStr)
		if err != nil {
			return nil, err
		}
		p.Kind = &kind
	}
	return p, nil
}

func encryptRelay(r models.Relay, ectx cryptox.Context) (*models.EncryptedRelay, error) {
	url, err := cryptox.EncryptField(r.URL, ectx)
	if err != nil {
		return nil, err
	}
	read, err := cryptox.EncryptField(strconv.FormatBool(r.Read), ectx)
	if err != nil {
		return nil, err
	}
	write, err := cryptox.EncryptField(strconv.FormatBool(r.Write), ectx)
	if err != nil {
		return nil, err
	}
	return &models.EncryptedRelay{ID: r.ID, IdentityID: r.IdentityID, URL: url, Read: read, Write: write}, nil
}

func decryptRelay(e models.EncryptedRelay, ectx cryptox.Context) (*models.Relay, error) {
	url, err := cryptox.DecryptField(e.URL, ectx)
	if err != nil {
		return nil, err
	}
	readStr, err := cryptox.DecryptField(e.Read, ectx)
	if err != nil {
		return nil, err
	}
	writeStr, err := cryptox.DecryptField(e.Write, ectx)
	if err != nil {
		return nil, err
	}
	read, err := strconv.ParseBool(readStr)
	if err != nil {
		return nil, err
	}
	write, err := strconv.ParseBool(writeStr)
	if err != nil {
		return nil, err
	}
	return &models.Relay{ID: e.ID, IdentityID: e.IdentityID, URL: url, Read: read, Write: write}, nil
}

func encryptWalletConnection(c models.WalletConnection, ectx cryptox.Context) (*models.EncryptedWalletConnection, error) {
	name, err := cryptox.EncryptField(c.Name, ectx)
	if err != nil {
		return nil, err
	}
	uri, err := cryptox.EncryptField(c.PairingURI, ectx)
	if err != nil {
		return nil, err
	}
	return &models.EncryptedWalletConnection{ID: c.ID, IdentityID: c.IdentityID, Name: name, PairingURI: uri}, nil
}

func decryptWalletConnection(e models.EncryptedWalletConnection, ectx cryptox.Context) (*models.WalletConnection, error) {
	name, err := cryptox.DecryptField(e.Name, ectx)
	if err != nil {
		return nil, err
	}
	uri, err := cryptox.DecryptField(e.PairingURI, ectx)
	if err != nil {
		return nil, err
	}
	return &models.WalletConnection{ID: e.ID, IdentityID: e.IdentityID, Name: name, PairingURI: uri}, nil
}

func encryptCashuMint(m models.CashuMint, ectx cryptox.Context) (*models.EncryptedCashuMint, error) {
	url, err := cryptox.EncryptField(m.URL, ectx)
	if err != nil {
		return nil, err
	}
	unit, err := cryptox.EncryptField(m.Unit, ectx)
	if err != nil {
		return nil, err
	}
	return &models.EncryptedCashuMint{ID: m.ID, IdentityID: m.IdentityID, URL: url, Unit: unit}, nil
}

func decryptCashuMint(e models.EncryptedCashuMint, ectx cryptox.Context) (*models.CashuMint, error) {
	url, err := cryptox.DecryptField(e.URL, ectx)
	if err != nil {
		return nil, err
	}
	unit, err := cryptox.DecryptField(e.Unit, ectx)
	if err != nil {
		return nil, err
	}
	return &models.CashuMint{ID: e.ID, IdentityID: e.IdentityID, URL: url, Unit: unit}, nil
}
