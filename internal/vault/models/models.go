// Package models defines the vault data model: decrypted record types held
// in the in-memory session and their per-field-encrypted persisted mirrors.
package models

import "time"

// Method is one of the standardized capability names a web page may request.
type Method string

const (
	MethodGetPublicKey Method = "getPublicKey"
	MethodSignEvent    Method = "signEvent"
	MethodGetRelays    Method = "getRelays"
	MethodNIP04Encrypt Method = "nip04.encrypt"
	MethodNIP04Decrypt Method = "nip04.decrypt"
	MethodNIP44Encrypt Method = "nip44.encrypt"
	MethodNIP44Decrypt Method = "nip44.decrypt"
)

// Action is the stored outcome of a permission rule.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Identity is a decrypted Nostr identity. One identity owns zero or more
// Permission and Relay records; at most one identity is selected at a time.
type Identity struct {
	ID            string
	Nickname      string
	PrivateKeyHex string
	CreatedAt     time.Time
}

// Permission is a stored, host+method(+kind)-scoped allow/deny decision.
// Records are immutable once created; a change is represented by deletion
// plus recreation. Kind is only meaningful for MethodSignEvent; nil means the
// rule is a blanket one applying to all kinds.
//
// Multiple records may exist for the same (identity, host, method, kind)
// tuple, so evaluation relies on rule specificity, never on slice order.
type Permission struct {
	ID         string
	IdentityID string
	Host       string
	Method     Method
	Action     Action
	Kind       *int
}

// Relay is a per-identity relay list entry.
type Relay struct {
	ID         string
	IdentityID string
	URL        string
	Read       bool
	Write      bool
}

// WalletConnection is a NIP-47 wallet-connect pairing owned by an identity.
type WalletConnection struct {
	ID         string
	IdentityID string
	Name       string
	PairingURI string
}

// CashuMint is an ecash mint an identity holds balances with.
type CashuMint struct {
	ID         string
	IdentityID string
	URL        string
	Unit       string
}
