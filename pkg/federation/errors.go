// pkg/federation/errors.go
package federation

import "errors"

var (
	// ErrCredential means the upstream issuer returned no usable credentials.
	ErrCredential = errors.New("federation: credential issuer returned no credentials")

	// ErrSecurity means an outbound endpoint failed the allowlist check.
	// Never retried; indicates a code or config defect, not a transient fault.
	ErrSecurity = errors.New("federation: endpoint failed allowlist validation")

	// ErrFederation means the signing endpoint rejected the exchange or
	// returned a malformed response. Retryable by the caller.
	ErrFederation = errors.New("federation: signing endpoint exchange failed")
)
