// Package policy implements the pure permission evaluator. Given the
// decrypted Permission records of an identity and a request tuple it returns
// an allow/deny/unknown verdict; it never touches storage or prompts.
package policy

import (
	"github.com/nostrvault/nostrvault/internal/common"
	"github.com/nostrvault/nostrvault/internal/vault/models"
)

// Verdict is the outcome of evaluating a request against stored rules.
type Verdict int

const (
	// Unknown means no stored rule decides the request; the coordinator
	// must ask the user.
	Unknown Verdict = iota
	Allow
	Deny
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// Evaluate resolves a request tuple against the stored permission records.
//
// For signEvent requests carrying a kind, rule specificity decides,
// independent of record order: an explicit deny of this exact kind wins over
// everything, then an explicit allow of this kind, then a blanket allow, then
// a blanket deny. This exact order is load-bearing: users grant "sign any
// note" broadly and later forbid one sensitive kind, or the reverse.
//
// For every other method the verdict is a conjunction: allow only if every
// matching record allows; a single deny among matches forces deny.
//
// No matching records yields Unknown.
func Evaluate(perms []models.Permission, identityID, host string, method models.Method, kind *int) Verdict {
	host = common.NormalizeHost(host)

	var matches []models.Permission
	for _, p := range perms {
		if p.IdentityID == identityID && common.NormalizeHost(p.Host) == host && p.Method == method {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return Unknown
	}

	if method == models.MethodSignEvent && kind != nil {
		return evaluateKind(matches, *kind)
	}

	for _, p := range matches {
		if p.Action == models.ActionDeny {
			return Deny
		}
	}
	return Allow
}

func evaluateKind(matches []models.Permission, kind int) Verdict {
	var kindAllow, blanketAllow, blanketDeny bool
	for _, p := range matches {
		switch {
		case p.Kind != nil && *p.Kind == kind:
			if p.Action == models.ActionDeny {
				return Deny
			}
			kindAllow = true
		case p.Kind == nil && p.Action == models.ActionAllow:
			blanketAllow = true
		case p.Kind == nil && p.Action == models.ActionDeny:
			blanketDeny = true
		}
	}
	switch {
	case kindAllow:
		return Allow
	case blanketAllow:
		return Allow
	case blanketDeny:
		return Deny
	default:
		return Unknown
	}
}
