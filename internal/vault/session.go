package vault

import (
	"github.com/nostrvault/nostrvault/internal/common"
	"github.com/nostrvault/nostrvault/internal/cryptox"
	"github.com/nostrvault/nostrvault/internal/vault/models"
)

// Session is the fully decrypted, in-memory mirror of the persisted vault
// plus the live encryption context needed to re-encrypt on write. It exists
// only while the vault is unlocked and is zeroed on lock.
type Session struct {
	ctx cryptox.Context

	SelectedIdentityID string
	Identities         []models.Identity
	Permissions        []models.Permission
	Relays             []models.Relay
	NWCConnections     []models.WalletConnection
	CashuMints         []models.CashuMint
}

// clone returns a copy with fresh backing arrays, so a speculative mutation
// can be discarded without touching the live mirror. The encryption context
// is shared; it is immutable after unlock.
func (s *Session) clone() *Session {
	return &Session{
		ctx:                s.ctx,
		SelectedIdentityID: s.SelectedIdentityID,
		Identities:         append([]models.Identity(nil), s.Identities...),
		Permissions:        append([]models.Permission(nil), s.Permissions...),
		Relays:             append([]models.Relay(nil), s.Relays...),
		NWCConnections:     append([]models.WalletConnection(nil), s.NWCConnections...),
		CashuMints:         append([]models.CashuMint(nil), s.CashuMints...),
	}
}

// identityByID returns a pointer into the session's identity slice, or nil.
func (s *Session) identityByID(id string) *models.Identity {
	for i := range s.Identities {
		if s.Identities[i].ID == id {
			return &s.Identities[i]
		}
	}
	return nil
}

// wipe drops key material. The slices are left for the GC; the derived key
// is overwritten in place.
func (s *Session) wipe() {
	if v2, ok := s.ctx.(*cryptox.V2Context); ok {
		common.WipeByteArray(v2.Key())
	}
	s.ctx = nil
	s.Identities = nil
	s.Permissions = nil
	s.Relays = nil
	s.NWCConnections = nil
	s.CashuMints = nil
	s.SelectedIdentityID = ""
}

// sessionRecord is the JSON form persisted to the volatile session
// partition. After unlock the context is always v2, so only the derived key
// and IV need to survive a background restart.
type sessionRecord struct {
	IV  []byte `json:"iv"`
	Key []byte `json:"key"`

	SelectedIdentityID string                    `json:"selectedIdentityId"`
	Identities         []models.Identity         `json:"identities"`
	Permissions        []models.Permission       `json:"permissions"`
	Relays             []models.Relay            `json:"relays"`
	NWCConnections     []models.WalletConnection `json:"nwcConnections,omitempty"`
	CashuMints         []models.CashuMint        `json:"cashuMints,omitempty"`
}

func (s *Session) record() (*sessionRecord, bool) {
	v2, ok := s.ctx.(*cryptox.V2Context)
	if !ok {
		return nil, false
	}
	return &sessionRecord{
		IV:                 v2.IV(),
		Key:                v2.Key(),
		SelectedIdentityID: s.SelectedIdentityID,
		Identities:         s.Identities,
		Permissions:        s.Permissions,
		Relays:             s.Relays,
		NWCConnections:     s.NWCConnections,
		CashuMints:         s.CashuMints,
	}, true
}

func sessionFromRecord(r *sessionRecord) *Session {
	return &Session{
		ctx:                cryptox.NewV2Context(r.IV, r.Key),
		SelectedIdentityID: r.SelectedIdentityID,
		Identities:         r.Identities,
		Permissions:        r.Permissions,
		Relays:             r.Relays,
		NWCConnections:     r.NWCConnections,
		CashuMints:         r.CashuMints,
	}
}
