package capability

import (
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
	"github.com/nbd-wtf/go-nostr/nip44"
)

// NostrProvider implements Provider with go-nostr.
type NostrProvider struct{}

func NewNostrProvider() *NostrProvider { return &NostrProvider{} }

// GeneratePrivateKey returns a fresh random private key in hex, used when
// the user asks for a randomly generated identity.
func GeneratePrivateKey() string {
	return nostr.GeneratePrivateKey()
}

func (p *NostrProvider) PublicKey(privateKeyHex string) (string, error) {
	pub, err := nostr.GetPublicKey(privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("deriving public key: %w", err)
	}
	return pub, nil
}

func (p *NostrProvider) SignEvent(privateKeyHex string, t EventTemplate) (*SignedEvent, error) {
	tags := make(nostr.Tags, 0, len(t.Tags))
	for _, tag := range t.Tags {
		tags = append(tags, nostr.Tag(tag))
	}
	evt := nostr.Event{
		CreatedAt: nostr.Timestamp(t.CreatedAt),
		Kind:      t.Kind,
		Tags:      tags,
		Content:   t.Content,
	}
	if evt.CreatedAt == 0 {
		evt.CreatedAt = nostr.Now()
	}
	if err := evt.Sign(privateKeyHex); err != nil {
		return nil, fmt.Errorf("signing event: %w", err)
	}
	return &SignedEvent{
		ID:        evt.ID,
		PubKey:    evt.PubKey,
		CreatedAt: int64(evt.CreatedAt),
		Kind:      evt.Kind,
		Tags:      t.Tags,
		Content:   evt.Content,
		Sig:       evt.Sig,
	}, nil
}

func (p *NostrProvider) NIP04Encrypt(privateKeyHex, peerPubKey, plaintext string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(peerPubKey, privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("computing shared secret: %w", err)
	}
	return nip04.Encrypt(plaintext, shared)
}

func (p *NostrProvider) NIP04Decrypt(privateKeyHex, peerPubKey, ciphertext string) (string, error) {
	shared, err := nip04.ComputeSharedSecret(peerPubKey, privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("computing shared secret: %w", err)
	}
	return nip04.Decrypt(ciphertext, shared)
}

func (p *NostrProvider) NIP44Encrypt(privateKeyHex, peerPubKey, plaintext string) (string, error) {
	ck, err := nip44.GenerateConversationKey(peerPubKey, privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("generating conversation key: %w", err)
	}
	return nip44.Encrypt(plaintext, ck)
}

func (p *NostrProvider) NIP44Decrypt(privateKeyHex, peerPubKey, ciphertext string) (string, error) {
	ck, err := nip44.GenerateConversationKey(peerPubKey, privateKeyHex)
	if err != nil {
		return "", fmt.Errorf("generating conversation key: %w", err)
	}
	return nip44.Decrypt(ciphertext, ck)
}
