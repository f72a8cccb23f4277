package coordinator

import (
	"strconv"

	"github.com/nostrvault/nostrvault/internal/capability"
	"github.com/nostrvault/nostrvault/internal/common"
	"github.com/nostrvault/nostrvault/internal/vault/models"
)

// Request is an inbound capability request from a web page, already
// attributed to an origin host by the content-script bridge.
type Request struct {
	// IdentityID selects the acting identity; empty means the currently
	// selected one.
	IdentityID string
	Host       string
	Method     models.Method

	// Event is the unsigned template for MethodSignEvent.
	Event *capability.EventTemplate
	// PeerPubKey is the counterparty for the encrypt/decrypt methods.
	PeerPubKey string
	// Text is the plaintext (encrypt) or ciphertext (decrypt).
	Text string
}

// Result is a fulfilled capability request. Exactly one field is set,
// matching the method.
type Result struct {
	PublicKey string
	Event     *capability.SignedEvent
	Text      string
	Relays    []models.Relay
}

// Decision is one of the six verdicts a user can give on a prompt. The
// "-once" variants never persist a rule; the plain variants persist a
// host+method+kind-scoped rule; the "-all" variants persist a blanket rule
// with no kind.
type Decision string

const (
	DecisionApproveOnce Decision = "approve-once"
	DecisionApprove     Decision = "approve"
	DecisionApproveAll  Decision = "approve-all"
	DecisionRejectOnce  Decision = "reject-once"
	DecisionReject      Decision = "reject"
	DecisionRejectAll   Decision = "reject-all"
)

func (d Decision) approved() bool {
	switch d {
	case DecisionApproveOnce, DecisionApprove, DecisionApproveAll:
		return true
	}
	return false
}

// eventKind extracts the kind dimension of a signEvent request.
func eventKind(req Request) *int {
	if req.Method == models.MethodSignEvent && req.Event != nil {
		k := req.Event.Kind
		return &k
	}
	return nil
}

// dedupeKey computes the stable identity of "the same logical request": two
// tabs racing for the same authorization collapse into one user decision.
// The discriminant is the event kind for signing and the peer pubkey for the
// encrypt/decrypt methods.
func dedupeKey(req Request) string {
	disc := ""
	switch req.Method {
	case models.MethodSignEvent:
		if req.Event != nil {
			disc = strconv.Itoa(req.Event.Kind)
		}
	case models.MethodNIP04Encrypt, models.MethodNIP04Decrypt,
		models.MethodNIP44Encrypt, models.MethodNIP44Decrypt:
		disc = req.PeerPubKey
	}
	return common.NormalizeHost(req.Host) + "|" + string(req.Method) + "|" + disc
}
