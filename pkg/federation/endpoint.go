// pkg/federation/endpoint.go
package federation

import "net/url"

// Allowlist guards outbound calls to external signing endpoints.
// The outbound client is only ever handed literal configured URLs; this
// check is a verification gate, not a routing decision.
type Allowlist []string

// IsAllowed reports whether raw is an https URL that exactly matches a
// member of the allowlist. Any parse failure is a refusal.
func (a Allowlist) IsAllowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "https" {
		return false
	}
	for _, allowed := range a {
		if raw == allowed {
			return true
		}
	}
	return false
}
