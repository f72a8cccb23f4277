package policy

import "github.com/nostrvault/nostrvault/internal/common"

// Reckless is the global auto-approve override. When enabled with an empty
// allowlist every request from every host is approved without consulting the
// evaluator; with a non-empty allowlist only listed hosts are auto-approved
// and all others fall through to normal evaluation.
type Reckless struct {
	Enabled      bool     `json:"enabled"`
	AllowedHosts []string `json:"allowedHosts,omitempty"`
}

// Approves reports whether the request from host is short-circuited.
func (r Reckless) Approves(host string) bool {
	if !r.Enabled {
		return false
	}
	if len(r.AllowedHosts) == 0 {
		return true
	}
	host = common.NormalizeHost(host)
	for _, h := range r.AllowedHosts {
		if common.NormalizeHost(h) == host {
			return true
		}
	}
	return false
}
